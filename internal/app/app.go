// Package app wires the platform services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/billing"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/deploy"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/events"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/handler"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/llm"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/mailer"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/oauthlogin"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/cache"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services is everything built on top of the database connection
type Services struct {
	Cache     *cache.Redis
	LLM       *llm.Client
	Chatbot   *chatbot.Service
	Billing   *billing.Service
	Deployer  *deploy.Deployer
	Mailer    mailer.Sender
	Publisher events.Publisher
	OAuth     oauthlogin.Registry
}

// Build connects the external services. Redis is required; object storage,
// Kafka, SMTP, Stripe and the hosting provider fall back to disabled.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (*Services, error) {
	redis, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))

	var archiver deploy.Archiver
	if cfg.Storage.Endpoint != "" {
		store, err := storage.NewObjectStore(ctx, cfg.Storage)
		if err != nil {
			log.Warn("Object storage unavailable, bundles will not be archived", zap.Error(err))
		} else {
			archiver = store
			log.Info("Object storage ready", zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	publisher := events.New(cfg.Events)
	if len(cfg.Events.Brokers) == 0 {
		log.Info("No Kafka brokers configured, events are logged only")
	}

	mail := mailer.New(cfg.Mail)
	if cfg.Mail.Host == "" {
		log.Info("No SMTP host configured, emails are logged only")
	}

	completer := llm.NewClient(cfg.LLM)

	var gateway billing.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	} else {
		log.Info("Stripe is not configured, billing endpoints are disabled")
	}

	var provider deploy.Provider
	if cfg.Hosting.Token != "" {
		provider = deploy.NewVercelClient(cfg.Hosting)
	} else {
		log.Info("Hosting token is not configured, deployments are disabled")
	}

	return &Services{
		Cache:     redis,
		LLM:       completer,
		Chatbot:   chatbot.NewService(db, completer, redis, cfg.Chatbot),
		Billing:   billing.NewService(db, gateway, cfg.Stripe, cfg.Server.FrontendURL, publisher),
		Deployer:  deploy.NewDeployer(db, provider, archiver, publisher, cfg.Hosting, cfg.Server.PublicURL),
		Mailer:    mail,
		Publisher: publisher,
		OAuth:     oauthlogin.NewRegistry(cfg.OAuth),
	}, nil
}

// HandlerDeps adapts the services for the HTTP handlers
func (s *Services) HandlerDeps(cfg *config.Config) handler.Deps {
	return handler.Deps{
		Config:    cfg,
		Cache:     s.Cache,
		LLM:       s.LLM,
		Chatbot:   s.Chatbot,
		Billing:   s.Billing,
		Deployer:  s.Deployer,
		Mailer:    s.Mailer,
		Publisher: s.Publisher,
		OAuth:     s.OAuth,
	}
}

// Close waits for background deployments until ctx is done, then flushes
// the publisher and closes the cache connection
func (s *Services) Close(ctx context.Context) error {
	return errors.Join(s.Deployer.Shutdown(ctx), s.Publisher.Close(), s.Cache.Close())
}
