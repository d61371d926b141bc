// Package users declares the user store contract and its PostgreSQL and
// in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/notekeeper/internal/server/models"
)

// Repository is the user store. Emails are passed already normalized.
type Repository interface {
	// Create inserts user. A duplicate email yields *common.ConflictError.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByEmail returns common.ErrorNotFound when no user matches.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID returns common.ErrorNotFound when no user matches.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}
