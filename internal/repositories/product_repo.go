package repositories

import (
	"context"

	"medigo/internal/models"
)

// ProductFilter narrows a product search. Zero values mean "no filter".
type ProductFilter struct {
	Search          string
	Category        string
	PharmacyID      string
	MinPrice        *float64
	MaxPrice        *float64
	IncludeInactive bool
	LowStockOnly    bool
	Offset          int
	Limit           int
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	SetStock(ctx context.Context, id string, quantity int) (*models.Product, error)
	// SetActive flips only the active flag; stock is left to concurrent orders.
	SetActive(ctx context.Context, id string, active bool) error
	// Search returns one page of matches, newest first, and the total count.
	Search(ctx context.Context, f ProductFilter) ([]models.Product, int64, error)
}
