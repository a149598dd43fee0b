package deploy

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"package.json":            `{"name":"{{BUSINESS_SLUG}}-site"}`,
		"app/page.tsx":            `export const title = "{{BUSINESS_NAME}}"; const api = "{{API_URL}}"; const logo = "{{LOGO_URL}}";`,
		"public/logo.png":         "{{BUSINESS_NAME}} binary",
		"node_modules/x/index.js": "ignored",
		".env.local":              "SECRET=1",
		"styles/theme.css":        ":root { --primary: {{PRIMARY_COLOR}}; }",
	}
	if manifest != "" {
		files[ManifestFile] = manifest
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func testBusiness() *model.Business {
	return &model.Business{ID: 7, Name: "Reef Tours", Slug: "reef", PrimaryColor: "#ff0000", Currency: "aud", ChatbotEnabled: true}
}

func TestLoadManifest(t *testing.T) {
	dir := writeTemplate(t, "framework: vite\nplaceholders:\n  BUSINESS_NAME: Our Business\n  LOGO_URL: /default-logo.png\nignore: [node_modules]\ntext_extensions: [tsx, json]\n")
	m, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "vite", m.Framework)
	assert.Equal(t, []string{".tsx", ".json"}, m.TextExtensions)
	assert.Contains(t, m.Ignore, ManifestFile)
	assert.Equal(t, "tenant.config.json", m.ConfigPath)

	m, err = LoadManifest(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "nextjs", m.Framework)

	bad := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bad, ManifestFile), []byte("placeholders: [oops"), 0o644))
	_, err = LoadManifest(bad)
	assert.Error(t, err)
}

func TestBuildBundle(t *testing.T) {
	dir := writeTemplate(t, "")
	m, err := LoadManifest(dir)
	require.NoError(t, err)

	b := testBusiness()
	bundle, err := BuildBundle(dir, m, TemplateVars(b, "https://api.example.com/"), NewTenantConfig(b, "https://api.example.com"))
	require.NoError(t, err)

	assert.Equal(t, `{"name":"reef-site"}`, string(bundle["package.json"]))
	assert.Equal(t, `export const title = "Reef Tours"; const api = "https://api.example.com"; const logo = "";`, string(bundle["app/page.tsx"]))
	assert.Equal(t, ":root { --primary: #ff0000; }", string(bundle["styles/theme.css"]))
	assert.Equal(t, "{{BUSINESS_NAME}} binary", string(bundle["public/logo.png"]), "binary files are copied untouched")
	assert.NotContains(t, bundle, "node_modules/x/index.js")
	assert.NotContains(t, bundle, ".env.local")

	var cfg TenantConfig
	require.NoError(t, json.Unmarshal(bundle["tenant.config.json"], &cfg))
	assert.Equal(t, uint(7), cfg.BusinessID)
	assert.Equal(t, "https://api.example.com/public/sites/reef", cfg.APIURL)
	assert.Equal(t, "https://api.example.com/public/chat/reef/messages", cfg.ChatbotURL)

	raw, err := bundle.Zip()
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	assert.Len(t, zr.File, len(bundle))
}

func TestPlaceholderDefaults(t *testing.T) {
	dir := writeTemplate(t, "placeholders:\n  LOGO_URL: /default-logo.png\n")
	m, err := LoadManifest(dir)
	require.NoError(t, err)

	b := testBusiness()
	bundle, err := BuildBundle(dir, m, TemplateVars(b, "https://api"), NewTenantConfig(b, "https://api"))
	require.NoError(t, err)
	// only listed placeholders are substituted
	assert.Contains(t, string(bundle["app/page.tsx"]), `const logo = "/default-logo.png"`)
	assert.Contains(t, string(bundle["app/page.tsx"]), `"{{BUSINESS_NAME}}"`)
	assert.NotContains(t, bundle, ManifestFile)
}

func TestNormalizeDomain(t *testing.T) {
	d, err := NormalizeDomain(" Tours.Example.COM. ")
	require.NoError(t, err)
	assert.Equal(t, "tours.example.com", d)

	for _, bad := range []string{"", "localhost", "-bad.com", "exa mple.com", "1.2.3.4", "http://x.com"} {
		_, err := NormalizeDomain(bad)
		assert.ErrorIs(t, err, ErrInvalidDomain, bad)
	}
}

func TestVercelClient(t *testing.T) {
	var created createDeploymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "team_1", r.URL.Query().Get("teamId"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v13/deployments":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_, _ = w.Write([]byte(`{"id":"dpl_1","url":"reef.vercel.app","readyState":"QUEUED"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v13/deployments/dpl_1":
			_, _ = w.Write([]byte(`{"id":"dpl_1","url":"reef.vercel.app","readyState":"READY"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v10/projects/tourismos-reef/domains":
			_, _ = w.Write([]byte(`{"name":"tours.example.com","verified":false,"verification":[{"type":"TXT","domain":"_vercel.example.com","value":"vc-1"}]}`))
		case r.URL.Path == "/v9/projects/tourismos-reef/domains/missing.example.com":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"gone"}}`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":"forbidden","message":"no access"}}`))
		}
	}))
	defer srv.Close()

	c := NewVercelClient(config.HostingConfig{APIURL: srv.URL + "/", Token: "tok", TeamID: "team_1"})
	ctx := context.Background()

	remote, err := c.CreateDeployment(ctx, "tourismos-reef", "nextjs", Bundle{"b.txt": []byte("B"), "a.txt": []byte("A")})
	require.NoError(t, err)
	assert.Equal(t, "dpl_1", remote.ID)
	assert.Equal(t, "tourismos-reef", created.Name)
	assert.Equal(t, "nextjs", created.ProjectSettings["framework"])
	require.Len(t, created.Files, 2)
	assert.Equal(t, "a.txt", created.Files[0].File)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("A")), created.Files[0].Data)

	remote, err = c.GetDeployment(ctx, "dpl_1")
	require.NoError(t, err)
	assert.Equal(t, StateReady, remote.ReadyState)

	domain, err := c.AddDomain(ctx, "tourismos-reef", "tours.example.com")
	require.NoError(t, err)
	assert.False(t, domain.Verified)
	require.Len(t, domain.Verification, 1)

	_, err = c.GetDomain(ctx, "tourismos-reef", "missing.example.com")
	assert.ErrorIs(t, err, ErrDomainNotFound)

	assert.NoError(t, c.RemoveDomain(ctx, "tourismos-reef", "tours.example.com"))

	_, err = c.GetDeployment(ctx, "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access")

	_, err = NewVercelClient(config.HostingConfig{APIURL: srv.URL}).GetDeployment(ctx, "dpl_1")
	assert.ErrorIs(t, err, ErrHostingNotConfigured)
}

// fakeProvider replays a fixed sequence of ready states
type fakeProvider struct {
	mu        sync.Mutex
	states    []string
	polls     int
	createErr error
	errorMsg  string
	project   string
}

func (f *fakeProvider) CreateDeployment(_ context.Context, project, _ string, files Bundle) (*RemoteDeployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.project = project
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &RemoteDeployment{ID: "dpl_x", URL: "reef.vercel.app", ReadyState: StateQueued}, nil
}

func (f *fakeProvider) GetDeployment(_ context.Context, id string) (*RemoteDeployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.states[len(f.states)-1]
	if f.polls < len(f.states) {
		state = f.states[f.polls]
	}
	f.polls++
	return &RemoteDeployment{ID: id, URL: "reef.vercel.app", ReadyState: state, ErrorMessage: f.errorMsg}, nil
}

func (f *fakeProvider) AddDomain(context.Context, string, string) (*Domain, error) {
	return &Domain{}, nil
}
func (f *fakeProvider) GetDomain(context.Context, string, string) (*Domain, error) {
	return &Domain{}, nil
}
func (f *fakeProvider) RemoveDomain(context.Context, string, string) error { return nil }

type fakeArchiver struct {
	keys []string
}

func (a *fakeArchiver) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	a.keys = append(a.keys, key)
	return key, nil
}

func hostingConfig(dir string) config.HostingConfig {
	return config.HostingConfig{
		ProjectPrefix: "tourismos",
		TemplateDir:   dir,
		PollInterval:  5 * time.Millisecond,
		DeployTimeout: 2 * time.Second,
	}
}

func TestDeployReady(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	provider := &fakeProvider{states: []string{StateBuilding, StateBuilding, StateReady}}
	archiver := &fakeArchiver{}
	d := NewDeployer(db, provider, archiver, nil, hostingConfig(writeTemplate(t, "")), "https://api.example.com")

	dep, err := d.Deploy(context.Background(), biz.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentReady, dep.Status)
	assert.Equal(t, "https://reef.vercel.app", dep.URL)
	assert.Equal(t, "tourismos-reef", provider.project)

	var stored model.Deployment
	require.NoError(t, db.First(&stored, dep.ID).Error)
	assert.Equal(t, model.DeploymentReady, stored.Status)
	assert.Equal(t, "dpl_x", stored.ProviderDeploymentID)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, []string{stored.BundleKey}, archiver.keys)

	var notes []model.Notification
	require.NoError(t, db.Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "Your site is live", notes[0].Title)
}

func TestDeployTimeout(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	cfg := hostingConfig(writeTemplate(t, ""))
	cfg.DeployTimeout = 50 * time.Millisecond
	d := NewDeployer(db, &fakeProvider{states: []string{StateBuilding}}, nil, nil, cfg, "https://api")

	dep, err := d.Deploy(context.Background(), biz.ID)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, model.DeploymentTimeout, dep.Status)

	var stored model.Deployment
	require.NoError(t, db.First(&stored, dep.ID).Error)
	assert.Equal(t, model.DeploymentTimeout, stored.Status)
}

func TestDeployRemoteError(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	provider := &fakeProvider{states: []string{StateError}, errorMsg: "Command \"npm run build\" exited with 1"}
	d := NewDeployer(db, provider, nil, nil, hostingConfig(writeTemplate(t, "")), "https://api")

	dep, err := d.Deploy(context.Background(), biz.ID)
	assert.Error(t, err)
	assert.Equal(t, model.DeploymentError, dep.Status)
	assert.Contains(t, dep.ErrorMessage, "npm run build")
}

func TestDeployCanceled(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	d := NewDeployer(db, &fakeProvider{states: []string{StateCanceled}}, nil, nil, hostingConfig(writeTemplate(t, "")), "https://api")

	dep, err := d.Deploy(context.Background(), biz.ID)
	assert.Error(t, err)
	assert.Equal(t, model.DeploymentCanceled, dep.Status)
}

func TestDeployMissingTemplate(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	d := NewDeployer(db, &fakeProvider{states: []string{StateReady}}, nil, nil, hostingConfig(filepath.Join(t.TempDir(), "missing")), "https://api")

	dep, err := d.Deploy(context.Background(), biz.ID)
	assert.Error(t, err)
	assert.Equal(t, model.DeploymentError, dep.Status)
}

func TestStartRejectsConcurrentDeployments(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	d := NewDeployer(db, &fakeProvider{states: []string{StateReady}}, nil, nil, hostingConfig(t.TempDir()), "https://api")
	ctx := context.Background()

	dep, err := d.Start(ctx, biz.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentPending, dep.Status)

	_, err = d.Start(ctx, biz.ID)
	assert.ErrorIs(t, err, ErrInProgress)

	_, err = d.Start(ctx, 9999)
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestStartExpiresAbandonedDeployments(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	d := NewDeployer(db, &fakeProvider{states: []string{StateReady}}, nil, nil, hostingConfig(t.TempDir()), "https://api")
	ctx := context.Background()

	abandoned := model.Deployment{
		BusinessID:  biz.ID,
		ProjectName: "tourismos-reef",
		Status:      model.DeploymentBuilding,
		CreatedAt:   time.Now().AddDate(0, 0, -30),
	}
	require.NoError(t, db.Create(&abandoned).Error)

	dep, err := d.Start(ctx, biz.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentPending, dep.Status)

	var stored model.Deployment
	require.NoError(t, db.First(&stored, abandoned.ID).Error)
	assert.Equal(t, model.DeploymentTimeout, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.NotEmpty(t, stored.ErrorMessage)

	// the fresh pending row is not stale and still blocks
	_, err = d.Start(ctx, biz.ID)
	assert.ErrorIs(t, err, ErrInProgress)
}

func TestShutdownInterruptsBackgroundRuns(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")
	cfg := hostingConfig(writeTemplate(t, ""))
	cfg.DeployTimeout = time.Minute
	d := NewDeployer(db, &fakeProvider{states: []string{StateBuilding}}, nil, nil, cfg, "https://api")
	ctx := context.Background()

	dep, err := d.Start(ctx, biz.ID)
	require.NoError(t, err)
	d.RunAsync(ctx, dep.ID)

	require.Eventually(t, func() bool {
		var current model.Deployment
		return db.First(&current, dep.ID).Error == nil && current.Status == model.DeploymentBuilding
	}, 2*time.Second, 10*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(shutdownCtx))

	var stored model.Deployment
	require.NoError(t, db.First(&stored, dep.ID).Error)
	assert.Equal(t, model.DeploymentCanceled, stored.Status)
	assert.Equal(t, ErrInterrupted.Error(), stored.ErrorMessage)

	// nothing is left in flight, so the next deploy can start
	_, err = d.Start(ctx, biz.ID)
	assert.NoError(t, err)
}
