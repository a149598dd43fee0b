package oauthlogin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// LinkAccount finds or creates the user for a provider identity and stores the tokens
func LinkAccount(ctx context.Context, db *gorm.DB, profile *Profile, token *oauth2.Token) (*model.User, error) {
	var user model.User
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account model.OAuthAccount
		err := tx.Where("provider = ? AND provider_account_id = ?", profile.Provider, profile.ProviderAccountID).
			First(&account).Error
		switch {
		case err == nil:
			if err := tx.First(&user, account.UserID).Error; err != nil {
				return fmt.Errorf("failed to load linked user: %w", err)
			}
			return tx.Model(&account).Updates(tokenColumns(token)).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		err = tx.Where("email = ?", strings.ToLower(profile.Email)).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = model.User{
				Email:     strings.ToLower(profile.Email),
				Name:      profile.Name,
				AvatarURL: profile.AvatarURL,
			}
			err = tx.Create(&user).Error
		}
		if err != nil {
			return fmt.Errorf("failed to resolve user: %w", err)
		}

		account = model.OAuthAccount{
			UserID:            user.ID,
			Provider:          profile.Provider,
			ProviderAccountID: profile.ProviderAccountID,
		}
		applyToken(&account, token)
		return tx.Create(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func applyToken(a *model.OAuthAccount, token *oauth2.Token) {
	if token == nil {
		return
	}
	a.AccessToken = token.AccessToken
	a.RefreshToken = token.RefreshToken
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		a.ExpiresAt = &expiry
	}
}

func tokenColumns(token *oauth2.Token) map[string]interface{} {
	var a model.OAuthAccount
	applyToken(&a, token)
	cols := map[string]interface{}{
		"access_token": a.AccessToken,
	}
	if a.RefreshToken != "" {
		cols["refresh_token"] = a.RefreshToken
	}
	if a.ExpiresAt != nil {
		cols["expires_at"] = *a.ExpiresAt
	}
	return cols
}
