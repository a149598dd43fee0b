package deploy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
)

// Remote ready states reported by the hosting API
const (
	StateQueued       = "QUEUED"
	StateInitializing = "INITIALIZING"
	StateBuilding     = "BUILDING"
	StateReady        = "READY"
	StateError        = "ERROR"
	StateCanceled     = "CANCELED"
)

var (
	ErrHostingNotConfigured = errors.New("hosting: HOSTING_TOKEN not set")
	ErrDomainNotFound       = errors.New("hosting: domain not found")
)

// RemoteDeployment is the provider's view of a deployment
type RemoteDeployment struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ReadyState   string `json:"readyState"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// DomainVerification is a DNS record the owner must create
type DomainVerification struct {
	Type   string `json:"type"`
	Domain string `json:"domain"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Domain is a custom domain attached to a project
type Domain struct {
	Name         string               `json:"name"`
	ProjectID    string               `json:"projectId,omitempty"`
	Verified     bool                 `json:"verified"`
	Verification []DomainVerification `json:"verification,omitempty"`
}

// Provider is the hosting API used by the workflow and the domain handlers
type Provider interface {
	CreateDeployment(ctx context.Context, project, framework string, files Bundle) (*RemoteDeployment, error)
	GetDeployment(ctx context.Context, id string) (*RemoteDeployment, error)
	AddDomain(ctx context.Context, project, domain string) (*Domain, error)
	GetDomain(ctx context.Context, project, domain string) (*Domain, error)
	RemoveDomain(ctx context.Context, project, domain string) error
}

// VercelClient implements Provider against the Vercel REST API
type VercelClient struct {
	baseURL string
	token   string
	teamID  string
	client  *http.Client
}

// NewVercelClient creates a client from the hosting configuration
func NewVercelClient(cfg config.HostingConfig) *VercelClient {
	return &VercelClient{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.Token,
		teamID:  cfg.TeamID,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type deploymentFile struct {
	File     string `json:"file"`
	Data     string `json:"data"`
	Encoding string `json:"encoding"`
}

type createDeploymentRequest struct {
	Name            string            `json:"name"`
	Target          string            `json:"target"`
	Files           []deploymentFile  `json:"files"`
	ProjectSettings map[string]string `json:"projectSettings,omitempty"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateDeployment uploads the bundle inline and starts a production build
func (c *VercelClient) CreateDeployment(ctx context.Context, project, framework string, files Bundle) (*RemoteDeployment, error) {
	req := createDeploymentRequest{
		Name:   project,
		Target: "production",
		Files:  make([]deploymentFile, 0, len(files)),
	}
	if framework != "" {
		req.ProjectSettings = map[string]string{"framework": framework}
	}
	for _, p := range files.Paths() {
		req.Files = append(req.Files, deploymentFile{
			File:     p,
			Data:     base64.StdEncoding.EncodeToString(files[p]),
			Encoding: "base64",
		})
	}

	var out RemoteDeployment
	if err := c.do(ctx, http.MethodPost, "/v13/deployments", req, &out); err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}
	return &out, nil
}

// GetDeployment fetches the current state of a deployment
func (c *VercelClient) GetDeployment(ctx context.Context, id string) (*RemoteDeployment, error) {
	var out RemoteDeployment
	if err := c.do(ctx, http.MethodGet, "/v13/deployments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get deployment %s: %w", id, err)
	}
	return &out, nil
}

// AddDomain attaches a domain to the project
func (c *VercelClient) AddDomain(ctx context.Context, project, domain string) (*Domain, error) {
	var out Domain
	path := "/v10/projects/" + url.PathEscape(project) + "/domains"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"name": domain}, &out); err != nil {
		return nil, fmt.Errorf("failed to add domain %s: %w", domain, err)
	}
	return &out, nil
}

// GetDomain returns the verification state of a project domain
func (c *VercelClient) GetDomain(ctx context.Context, project, domain string) (*Domain, error) {
	var out Domain
	if err := c.do(ctx, http.MethodGet, domainPath(project, domain), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get domain %s: %w", domain, err)
	}
	return &out, nil
}

// RemoveDomain detaches a domain from the project
func (c *VercelClient) RemoveDomain(ctx context.Context, project, domain string) error {
	if err := c.do(ctx, http.MethodDelete, domainPath(project, domain), nil, nil); err != nil {
		return fmt.Errorf("failed to remove domain %s: %w", domain, err)
	}
	return nil
}

func domainPath(project, domain string) string {
	return "/v9/projects/" + url.PathEscape(project) + "/domains/" + url.PathEscape(domain)
}

func (c *VercelClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.token == "" {
		return ErrHostingNotConfigured
	}

	u := c.baseURL + path
	if c.teamID != "" {
		u += "?teamId=" + url.QueryEscape(c.teamID)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound && strings.Contains(path, "/domains/") {
		return ErrDomainNotFound
	}
	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("hosting API error (status %d, %s): %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("hosting API error (status %d): %s", resp.StatusCode, string(raw))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
