package chatbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/cache"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BusinessContext is the tenant data a reply is grounded on
type BusinessContext struct {
	Business  model.Business        `json:"business"`
	Offerings []model.Offering      `json:"offerings"`
	Knowledge []model.KnowledgeBase `json:"knowledge"`
}

// ContextLoader reads offerings and knowledge rows, through the cache when one is set
type ContextLoader struct {
	db    *gorm.DB
	store cache.Store
	ttl   time.Duration
}

// NewContextLoader creates a loader. store may be nil.
func NewContextLoader(db *gorm.DB, store cache.Store, ttl time.Duration) *ContextLoader {
	return &ContextLoader{db: db, store: store, ttl: ttl}
}

func contextKey(businessID uint) string {
	return fmt.Sprintf("chatctx:%d", businessID)
}

// Load returns the offerings and knowledge of business. The business row itself
// is always the one passed in, never a cached copy.
func (l *ContextLoader) Load(ctx context.Context, business model.Business) (*BusinessContext, error) {
	log := logger.Ctx(ctx)
	key := contextKey(business.ID)

	if l.store != nil {
		var cached BusinessContext
		err := cache.GetJSON(ctx, l.store, key, &cached)
		if err == nil {
			cached.Business = business
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn("Chat context cache read failed", zap.Uint("business_id", business.ID), zap.Error(err))
		}
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	bc := &BusinessContext{Business: business}
	if err := l.db.WithContext(ctx).
		Where("business_id = ? AND active = ?", business.ID, true).
		Order("id").
		Find(&bc.Offerings).Error; err != nil {
		return nil, fmt.Errorf("failed to load offerings: %w", err)
	}
	if err := l.db.WithContext(ctx).
		Where("business_id = ? AND active = ?", business.ID, true).
		Order("id").
		Find(&bc.Knowledge).Error; err != nil {
		return nil, fmt.Errorf("failed to load knowledge base: %w", err)
	}

	if l.store != nil {
		if err := cache.SetJSON(ctx, l.store, key, bc, l.ttl); err != nil {
			log.Warn("Chat context cache write failed", zap.Uint("business_id", business.ID), zap.Error(err))
		}
	}

	return bc, nil
}

// Invalidate drops the cached context of a business. Safe to call with a nil store.
func Invalidate(ctx context.Context, store cache.Store, businessID uint) {
	if store == nil {
		return
	}
	if err := store.Delete(ctx, contextKey(businessID)); err != nil {
		logger.Ctx(ctx).Warn("Chat context cache invalidation failed",
			zap.Uint("business_id", businessID), zap.Error(err))
	}
}
