// Package notify writes in-app notifications for dashboard users.
package notify

import (
	"context"
	"fmt"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notification types
const (
	TypeBooking    = "booking"
	TypeDeployment = "deployment"
	TypeBilling    = "billing"
	TypeTeam       = "team"
)

// Owner notifies the owner of a business. Failures are logged, not returned.
func Owner(ctx context.Context, db *gorm.DB, businessID uint, kind, title, message, link string) {
	if err := owner(ctx, db, businessID, kind, title, message, link); err != nil {
		logger.Ctx(ctx).Warn("Failed to notify owner",
			zap.Uint("business_id", businessID), zap.String("type", kind), zap.Error(err))
	}
}

func owner(ctx context.Context, db *gorm.DB, businessID uint, kind, title, message, link string) error {
	var business model.Business
	if err := db.WithContext(ctx).Select("id", "owner_id").First(&business, businessID).Error; err != nil {
		return fmt.Errorf("failed to load business: %w", err)
	}
	bid := business.ID
	return db.WithContext(ctx).Create(&model.Notification{
		UserID:     business.OwnerID,
		BusinessID: &bid,
		Type:       kind,
		Title:      title,
		Message:    message,
		Link:       link,
	}).Error
}
