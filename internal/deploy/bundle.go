package deploy

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
)

// Bundle maps slash separated relative paths to file contents
type Bundle map[string][]byte

// TenantConfig is written into every bundle for the site to read at build time
type TenantConfig struct {
	BusinessID   uint   `json:"business_id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Location     string `json:"location"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Website      string `json:"website"`
	LogoURL      string `json:"logo_url"`
	PrimaryColor string `json:"primary_color"`
	Currency     string `json:"currency"`
	APIURL       string `json:"api_url"`
	ChatbotURL   string `json:"chatbot_url"`
	Greeting     string `json:"chatbot_greeting,omitempty"`
	Chatbot      bool   `json:"chatbot_enabled"`
}

// NewTenantConfig derives the site configuration of a business
func NewTenantConfig(b *model.Business, apiURL string) TenantConfig {
	apiURL = strings.TrimRight(apiURL, "/")
	return TenantConfig{
		BusinessID:   b.ID,
		Name:         b.Name,
		Slug:         b.Slug,
		Description:  b.Description,
		Category:     b.Category,
		Location:     b.Location,
		Phone:        b.Phone,
		Email:        b.Email,
		Website:      b.Website,
		LogoURL:      b.LogoURL,
		PrimaryColor: b.PrimaryColor,
		Currency:     b.Currency,
		APIURL:       apiURL + "/public/sites/" + b.Slug,
		ChatbotURL:   apiURL + "/public/chat/" + b.Slug + "/messages",
		Greeting:     b.ChatbotGreeting,
		Chatbot:      b.ChatbotEnabled,
	}
}

// TemplateVars are the values substituted for {{KEY}} placeholders
func TemplateVars(b *model.Business, apiURL string) map[string]string {
	return map[string]string{
		"BUSINESS_NAME": b.Name,
		"BUSINESS_SLUG": b.Slug,
		"BUSINESS_ID":   strconv.FormatUint(uint64(b.ID), 10),
		"API_URL":       strings.TrimRight(apiURL, "/"),
		"PRIMARY_COLOR": b.PrimaryColor,
		"LOGO_URL":      b.LogoURL,
		"DESCRIPTION":   b.Description,
		"CURRENCY":      b.Currency,
	}
}

func replacer(m *Manifest, vars map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(m.Placeholders))
	for k := range m.Placeholders {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		v := vars[k]
		if v == "" {
			v = m.Placeholders[k]
		}
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...)
}

// BuildBundle walks the template, substitutes placeholders in text files
// and adds the tenant configuration file
func BuildBundle(dir string, m *Manifest, vars map[string]string, cfg TenantConfig) (Bundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("template directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template path %s is not a directory", dir)
	}

	r := replacer(m, vars)
	bundle := Bundle{}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if m.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		if m.isText(rel) {
			data = []byte(r.Replace(string(data)))
		}
		bundle[rel] = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tenant config: %w", err)
	}
	bundle[m.ConfigPath] = append(raw, '\n')

	return bundle, nil
}

// Paths returns the bundle paths in a stable order
func (b Bundle) Paths() []string {
	paths := make([]string, 0, len(b))
	for p := range b {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Zip archives the bundle
func (b Bundle) Zip() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range b.Paths() {
		w, err := zw.Create(p)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", p, err)
		}
		if _, err := w.Write(b[p]); err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}
