package deploy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/events"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/notify"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// consecutive status check failures tolerated while polling
	maxPollErrors = 3
	// used for stale detection when no deploy timeout is configured
	defaultDeployTimeout = 10 * time.Minute
	// an unfinished row older than the timeout plus this slack was abandoned
	staleSlack = 5 * time.Minute
)

var (
	ErrTimeout            = errors.New("deployment timed out")
	ErrInProgress         = errors.New("a deployment is already in progress")
	ErrBusinessNotFound   = errors.New("business not found")
	ErrDeploymentNotFound = errors.New("deployment not found")
	ErrInvalidDomain      = errors.New("invalid domain name")
	ErrInterrupted        = errors.New("deployment interrupted by shutdown")
)

var hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// NormalizeDomain lowercases and validates a hostname
func NormalizeDomain(domain string) (string, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if len(domain) > 253 || !hostnamePattern.MatchString(domain) || net.ParseIP(domain) != nil {
		return "", ErrInvalidDomain
	}
	return domain, nil
}

// ProjectName is the hosting project of a business
func ProjectName(prefix, slug string) string {
	if prefix == "" {
		return slug
	}
	return prefix + "-" + slug
}

// Archiver stores bundle archives
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Deployer runs the site deployment workflow
type Deployer struct {
	db        *gorm.DB
	provider  Provider
	archiver  Archiver
	publisher events.Publisher
	cfg       config.HostingConfig
	apiURL    string
	now       func() time.Time

	runs    sync.WaitGroup
	stop    context.Context
	stopAll context.CancelFunc
}

// NewDeployer wires the workflow. archiver and publisher may be nil.
func NewDeployer(db *gorm.DB, provider Provider, archiver Archiver, publisher events.Publisher, cfg config.HostingConfig, apiURL string) *Deployer {
	stop, stopAll := context.WithCancel(context.Background())
	return &Deployer{
		db:        db,
		provider:  provider,
		archiver:  archiver,
		publisher: publisher,
		cfg:       cfg,
		apiURL:    apiURL,
		now:       time.Now,
		stop:      stop,
		stopAll:   stopAll,
	}
}

func (d *Deployer) timeout() time.Duration {
	if d.cfg.DeployTimeout > 0 {
		return d.cfg.DeployTimeout
	}
	return defaultDeployTimeout
}

// Provider exposes the hosting client for domain management
func (d *Deployer) Provider() Provider {
	return d.provider
}

// Project returns the hosting project name of a business
func (d *Deployer) Project(b *model.Business) string {
	return ProjectName(d.cfg.ProjectPrefix, b.Slug)
}

// Start records a pending deployment. Only one deployment per business runs at a time.
func (d *Deployer) Start(ctx context.Context, businessID uint) (*model.Deployment, error) {
	var dep *model.Deployment
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var business model.Business
		if err := tx.First(&business, businessID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBusinessNotFound
			}
			return err
		}

		// rows left unfinished by a crash or restart would block the business forever
		now := d.now()
		expired := tx.Model(&model.Deployment{}).
			Where("business_id = ? AND status IN ? AND created_at < ?", businessID,
				[]string{model.DeploymentPending, model.DeploymentBuilding}, now.Add(-(d.timeout() + staleSlack))).
			Updates(map[string]interface{}{
				"status":        model.DeploymentTimeout,
				"error_message": "deployment was abandoned before it finished",
				"completed_at":  now,
			})
		if expired.Error != nil {
			return expired.Error
		}
		if expired.RowsAffected > 0 {
			logger.Ctx(ctx).Warn("Expired abandoned deployments",
				zap.Uint("business_id", businessID), zap.Int64("count", expired.RowsAffected))
		}

		var running int64
		if err := tx.Model(&model.Deployment{}).
			Where("business_id = ? AND status IN ?", businessID, []string{model.DeploymentPending, model.DeploymentBuilding}).
			Count(&running).Error; err != nil {
			return err
		}
		if running > 0 {
			return ErrInProgress
		}

		dep = &model.Deployment{
			BusinessID:  businessID,
			Provider:    "vercel",
			ProjectName: d.Project(&business),
			Status:      model.DeploymentPending,
		}
		return tx.Create(dep).Error
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// RunAsync runs the workflow in the background, detached from the request.
// Shutdown interrupts and waits for these runs.
func (d *Deployer) RunAsync(ctx context.Context, deploymentID uint) {
	d.runs.Add(1)
	go func() {
		defer d.runs.Done()
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		release := context.AfterFunc(d.stop, cancel)
		defer release()

		if _, err := d.Run(runCtx, deploymentID); err != nil {
			logger.Ctx(ctx).Warn("Deployment finished unsuccessfully",
				zap.Uint("deployment_id", deploymentID), zap.Error(err))
		}
	}()
}

// Shutdown cancels background runs, which record a canceled status, and
// waits for them until ctx is done
func (d *Deployer) Shutdown(ctx context.Context) error {
	d.stopAll()
	done := make(chan struct{})
	go func() {
		d.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// interrupted picks the terminal status for a run whose context ended
func (d *Deployer) interrupted() (string, error) {
	if d.stop.Err() != nil {
		return model.DeploymentCanceled, ErrInterrupted
	}
	return model.DeploymentTimeout, ErrTimeout
}

// Deploy starts and runs a deployment synchronously
func (d *Deployer) Deploy(ctx context.Context, businessID uint) (*model.Deployment, error) {
	dep, err := d.Start(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, dep.ID)
}

// Run executes a pending deployment under the configured timeout and
// always leaves the row in a terminal status
func (d *Deployer) Run(ctx context.Context, deploymentID uint) (*model.Deployment, error) {
	started := d.now()
	prometheus.DeploymentsInFlightGauge.Inc()
	defer prometheus.DeploymentsInFlightGauge.Dec()

	var dep model.Deployment
	if err := d.db.WithContext(ctx).First(&dep, deploymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("failed to load deployment: %w", err)
	}
	var business model.Business
	if err := d.db.WithContext(ctx).First(&business, dep.BusinessID).Error; err != nil {
		return d.finish(ctx, &dep, started, model.DeploymentError, "", "business not found", ErrBusinessNotFound)
	}

	log := logger.Ctx(ctx).With(
		zap.Uint("deployment_id", dep.ID),
		zap.Uint("business_id", business.ID),
		zap.String("project", dep.ProjectName))

	runCtx := ctx
	if d.cfg.DeployTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.cfg.DeployTimeout)
		defer cancel()
	}

	manifest, err := LoadManifest(d.cfg.TemplateDir)
	if err != nil {
		return d.finish(ctx, &dep, started, model.DeploymentError, "", err.Error(), err)
	}
	bundle, err := BuildBundle(d.cfg.TemplateDir, manifest, TemplateVars(&business, d.apiURL), NewTenantConfig(&business, d.apiURL))
	if err != nil {
		return d.finish(ctx, &dep, started, model.DeploymentError, "", err.Error(), err)
	}
	log.Info("Bundle built", zap.Int("files", len(bundle)))

	if key, err := d.archive(runCtx, &dep, bundle); err != nil {
		log.Warn("Failed to archive bundle", zap.Error(err))
	} else if key != "" {
		dep.BundleKey = key
	}

	remote, err := d.provider.CreateDeployment(runCtx, dep.ProjectName, manifest.Framework, bundle)
	if err != nil {
		if runCtx.Err() != nil {
			status, cause := d.interrupted()
			return d.finish(ctx, &dep, started, status, "", cause.Error(), cause)
		}
		return d.finish(ctx, &dep, started, model.DeploymentError, "", err.Error(), err)
	}

	now := d.now()
	dep.ProviderDeploymentID = remote.ID
	dep.Status = model.DeploymentBuilding
	dep.StartedAt = &now
	if err := d.db.WithContext(ctx).Model(&dep).Updates(map[string]interface{}{
		"provider_deployment_id": remote.ID,
		"status":                 model.DeploymentBuilding,
		"started_at":             now,
		"bundle_key":             dep.BundleKey,
	}).Error; err != nil {
		log.Error("Failed to mark deployment building", zap.Error(err))
	}
	log.Info("Remote deployment created", zap.String("remote_id", remote.ID))

	final, err := d.poll(runCtx, remote)
	switch {
	case errors.Is(err, ErrTimeout):
		status, cause := d.interrupted()
		return d.finish(ctx, &dep, started, status, "", cause.Error(), cause)
	case err != nil:
		return d.finish(ctx, &dep, started, model.DeploymentError, "", err.Error(), err)
	}

	switch final.ReadyState {
	case StateReady:
		return d.finish(ctx, &dep, started, model.DeploymentReady, siteURL(final.URL), "", nil)
	case StateCanceled:
		return d.finish(ctx, &dep, started, model.DeploymentCanceled, "", "deployment was canceled", fmt.Errorf("deployment %s was canceled", final.ID))
	default:
		msg := final.ErrorMessage
		if msg == "" {
			msg = "build failed"
		}
		return d.finish(ctx, &dep, started, model.DeploymentError, "", msg, errors.New(msg))
	}
}

// poll waits for a terminal ready state or the context deadline
func (d *Deployer) poll(ctx context.Context, remote *RemoteDeployment) (*RemoteDeployment, error) {
	interval := d.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	current := remote
	failures := 0
	for {
		switch current.ReadyState {
		case StateReady, StateError, StateCanceled:
			return current, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrTimeout
		case <-ticker.C:
		}

		next, err := d.provider.GetDeployment(ctx, remote.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrTimeout
			}
			failures++
			logger.Ctx(ctx).Warn("Deployment status check failed",
				zap.String("remote_id", remote.ID), zap.Int("failures", failures), zap.Error(err))
			if failures >= maxPollErrors {
				return nil, err
			}
			continue
		}
		failures = 0
		current = next
	}
}

func (d *Deployer) archive(ctx context.Context, dep *model.Deployment, bundle Bundle) (string, error) {
	if d.archiver == nil {
		return "", nil
	}
	data, err := bundle.Zip()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("deployments/%d/%d.zip", dep.BusinessID, dep.ID)
	return d.archiver.Put(ctx, key, data, "application/zip")
}

// finish writes the terminal status with a context that outlives the deadline
func (d *Deployer) finish(ctx context.Context, dep *model.Deployment, started time.Time, status, url, message string, cause error) (*model.Deployment, error) {
	ctx = context.WithoutCancel(ctx)
	log := logger.Ctx(ctx).With(zap.Uint("deployment_id", dep.ID), zap.String("status", status))

	now := d.now()
	dep.Status = status
	dep.URL = url
	dep.ErrorMessage = message
	dep.CompletedAt = &now

	if err := d.db.WithContext(ctx).Model(dep).Updates(map[string]interface{}{
		"status":        status,
		"url":           url,
		"error_message": message,
		"completed_at":  now,
		"bundle_key":    dep.BundleKey,
	}).Error; err != nil {
		log.Error("Failed to save deployment result", zap.Error(err))
	}

	prometheus.RecordDeployment(status, now.Sub(started))
	if cause != nil {
		log.Warn("Deployment failed", zap.String("reason", message))
	} else {
		log.Info("Deployment ready", zap.String("url", url))
	}

	title := "Your site is live"
	body := "Your website was deployed to " + url
	if status != model.DeploymentReady {
		title = "Site deployment " + status
		body = "Deployment did not complete: " + message
	}
	notify.Owner(ctx, d.db, dep.BusinessID, notify.TypeDeployment, title, body, fmt.Sprintf("/deployments/%d", dep.ID))

	events.Emit(ctx, d.publisher, events.DeploymentFinished, dep.BusinessID, map[string]interface{}{
		"deployment_id": dep.ID,
		"status":        status,
		"url":           url,
	})

	return dep, cause
}

func siteURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return "https://" + u
}
