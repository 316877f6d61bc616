package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"bsc-invest-platform/internal/database"
)

const adminBcryptCost = 12

// SeedAdminUser ensures an admin account exists. Credentials come from
// ADMIN_EMAIL / ADMIN_PASSWORD; when either is unset, seeding is skipped.
func SeedAdminUser(ctx context.Context, repo *database.Repository, logger zerolog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		logger.Debug().Msg("admin credentials not configured, skipping admin seed")
		return nil
	}

	_, err := repo.GetProfileByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrProfileMissing) {
		return fmt.Errorf("failed to check for admin profile: %w", err)
	}

	hash, err := (&PasswordManager{cost: adminBcryptCost}).HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &database.Profile{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		IsAdmin:      true,
		ReferralCode: newReferralCode(),
	}
	if err := repo.CreateProfile(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin profile: %w", err)
	}

	logger.Info().Str("admin_id", admin.ID.String()).Msg("admin profile created")
	return nil
}
