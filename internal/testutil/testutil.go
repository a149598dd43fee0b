// Package testutil holds helpers shared by DB-backed tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database private to the test
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// keep the shared memory database alive for the whole test
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedBusiness creates an owner, an active business with a free subscription and the owner membership
func SeedBusiness(t *testing.T, db *gorm.DB, slug string) (model.User, model.Business) {
	t.Helper()

	user := model.User{Email: slug + "-owner@example.com", Name: "Owner " + slug}
	require.NoError(t, db.Create(&user).Error)

	business := model.Business{
		OwnerID:        user.ID,
		Name:           "Biz " + slug,
		Slug:           slug,
		Currency:       "usd",
		ChatbotEnabled: true,
		Active:         true,
	}
	require.NoError(t, db.Create(&business).Error)

	userID := user.ID
	require.NoError(t, db.Create(&model.TeamMember{
		BusinessID:  business.ID,
		UserID:      &userID,
		Email:       user.Email,
		Role:        model.RoleOwner,
		Status:      model.MemberActive,
		InviteToken: uuid.NewString(),
	}).Error)
	require.NoError(t, db.Create(&model.Subscription{
		BusinessID: business.ID,
		Plan:       model.PlanFree,
		Status:     model.SubscriptionActive,
	}).Error)

	return user, business
}
