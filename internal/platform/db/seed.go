package db

import (
	"context"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/platform/config"
	"reviewflow/internal/platform/querier"
)

// Seed creates the configured administrator account when it is missing.
func Seed(ctx context.Context, db querier.Querier, cfg config.Config) error {
	users := auth.NewService(auth.NewStore(db), cfg.JWTSecret, cfg.TokenTTL)
	return users.EnsureUser(ctx, auth.User{
		Email: cfg.SeedAdminEmail,
		Name:  "Administrator",
		Role:  auth.RoleAdmin,
	}, cfg.SeedAdminPassword)
}
