// Package deploy publishes a tenant's public site to the hosting provider.
package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile sits at the root of the template directory
const ManifestFile = "tourismos.template.yaml"

// Manifest describes how a template directory is turned into a tenant bundle
type Manifest struct {
	Name      string `yaml:"name"`
	Framework string `yaml:"framework"`
	// Placeholders maps each {{KEY}} the template uses to the value used when the tenant has none
	Placeholders   map[string]string `yaml:"placeholders"`
	Ignore         []string          `yaml:"ignore"`
	TextExtensions []string          `yaml:"text_extensions"`
	ConfigPath     string            `yaml:"config_path"`
}

// DefaultManifest is used when the template ships no manifest
func DefaultManifest() *Manifest {
	return &Manifest{
		Name:      "tourismos-site",
		Framework: "nextjs",
		Placeholders: map[string]string{
			"BUSINESS_NAME": "",
			"BUSINESS_SLUG": "",
			"BUSINESS_ID":   "",
			"API_URL":       "",
			"PRIMARY_COLOR": "#0ea5e9",
			"LOGO_URL":      "",
			"DESCRIPTION":   "",
			"CURRENCY":      "usd",
		},
		Ignore:         []string{"node_modules", ".git", ".next", ".vercel", ".env*", ManifestFile},
		TextExtensions: []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".json", ".html", ".css", ".md", ".txt", ".svg", ".xml", ".yml", ".yaml"},
		ConfigPath:     "tenant.config.json",
	}
}

// LoadManifest reads the manifest of dir, falling back to the default when absent
func LoadManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultManifest(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ManifestFile, err)
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}

	def := DefaultManifest()
	if m.Framework == "" {
		m.Framework = def.Framework
	}
	if m.Placeholders == nil {
		m.Placeholders = def.Placeholders
	}
	if len(m.TextExtensions) == 0 {
		m.TextExtensions = def.TextExtensions
	}
	if m.ConfigPath == "" {
		m.ConfigPath = def.ConfigPath
	}
	// the manifest never ships with the site
	m.Ignore = append(m.Ignore, ManifestFile)

	for i, ext := range m.TextExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.TextExtensions[i] = ext
	}
	return m, nil
}

func (m *Manifest) isText(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range m.TextExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ignored matches the patterns against the relative path and the base name
func (m *Manifest) ignored(rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range m.Ignore {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
