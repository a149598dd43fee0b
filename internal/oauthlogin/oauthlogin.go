// Package oauthlogin implements social login with Google and GitHub.
package oauthlogin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	Google = "google"
	GitHub = "github"
)

var (
	ErrUnknownProvider = errors.New("unknown or unconfigured login provider")
	ErrNoEmail         = errors.New("provider did not return a verified email address")
)

// Profile is the identity returned by a provider
type Profile struct {
	Provider          string
	ProviderAccountID string
	Email             string
	Name              string
	AvatarURL         string
}

// Provider is one configured login provider
type Provider struct {
	Name    string
	config  *oauth2.Config
	apiBase string
	profile func(ctx context.Context, client *http.Client, apiBase string) (*Profile, error)
}

// Registry holds the providers that have credentials
type Registry map[string]*Provider

// NewRegistry builds providers for every configured client id
func NewRegistry(cfg config.OAuthConfig) Registry {
	base := strings.TrimRight(cfg.RedirectBaseURL, "/")
	r := Registry{}
	if cfg.Google.ClientID != "" {
		r[Google] = &Provider{
			Name: Google,
			config: &oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Endpoint:     endpoints.Google,
				RedirectURL:  base + "/auth/oauth/google/callback",
				Scopes:       []string{"openid", "email", "profile"},
			},
			apiBase: "https://openidconnect.googleapis.com",
			profile: googleProfile,
		}
	}
	if cfg.GitHub.ClientID != "" {
		r[GitHub] = &Provider{
			Name: GitHub,
			config: &oauth2.Config{
				ClientID:     cfg.GitHub.ClientID,
				ClientSecret: cfg.GitHub.ClientSecret,
				Endpoint:     endpoints.GitHub,
				RedirectURL:  base + "/auth/oauth/github/callback",
				Scopes:       []string{"read:user", "user:email"},
			},
			apiBase: "https://api.github.com",
			profile: githubProfile,
		}
	}
	return r
}

// Get returns a configured provider
func (r Registry) Get(name string) (*Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// AuthCodeURL is the consent page to redirect the user to
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for a token and fetches the profile
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, *Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to exchange %s code: %w", p.Name, err)
	}
	profile, err := p.profile(ctx, p.config.Client(ctx, token), p.apiBase)
	if err != nil {
		return nil, nil, err
	}
	if profile.Email == "" {
		return nil, nil, ErrNoEmail
	}
	profile.Provider = p.Name
	profile.Email = strings.ToLower(profile.Email)
	return token, profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("profile request returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode profile: %w", err)
	}
	return nil
}

func googleProfile(ctx context.Context, client *http.Client, apiBase string) (*Profile, error) {
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, client, apiBase+"/v1/userinfo", &info); err != nil {
		return nil, err
	}
	p := &Profile{ProviderAccountID: info.Sub, Name: info.Name, AvatarURL: info.Picture}
	if info.EmailVerified {
		p.Email = info.Email
	}
	return p, nil
}

func githubProfile(ctx context.Context, client *http.Client, apiBase string) (*Profile, error) {
	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, apiBase+"/user", &user); err != nil {
		return nil, err
	}

	p := &Profile{
		ProviderAccountID: strconv.FormatInt(user.ID, 10),
		Name:              user.Name,
		AvatarURL:         user.AvatarURL,
	}
	if p.Name == "" {
		p.Name = user.Login
	}

	// the public email may be hidden, the emails endpoint lists the primary one
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, apiBase+"/user/emails", &emails); err != nil {
		return nil, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			p.Email = e.Email
			break
		}
	}
	return p, nil
}
