package repositories

import (
	"context"

	"medigo/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Update writes every mutable field of user.
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}
