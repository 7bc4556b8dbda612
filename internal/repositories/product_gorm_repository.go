package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medigo/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", translateGORM(err))
	}
	return nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("product with ID %s: %w", id, translateGORM(err))
	}
	return &product, nil
}

// Update writes all fields of an existing product.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(product).Select("*").Omit("id", "pharmacy_id", "created_at").Updates(product)
	if res.Error != nil {
		return fmt.Errorf("failed to update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrNotFound)
	}
	return nil
}

// SetStock overwrites the stock quantity and returns the updated product.
func (r *GORMProductRepository) SetStock(ctx context.Context, id string, quantity int) (*models.Product, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{"stock_quantity": quantity, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to set stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *GORMProductRepository) SetActive(ctx context.Context, id string, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"is_active": active, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to set product active flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// Search runs a filtered, paginated query newest first.
func (r *GORMProductRepository) Search(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if !f.IncludeInactive {
			db = db.Where("is_active = ?", true)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			db = db.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?)", like, like, like)
		}
		if f.Category != "" {
			db = db.Where("category = ?", f.Category)
		}
		if f.PharmacyID != "" {
			db = db.Where("pharmacy_id = ?", f.PharmacyID)
		}
		if f.MinPrice != nil {
			db = db.Where("pricing_price >= ?", *f.MinPrice)
		}
		if f.MaxPrice != nil {
			db = db.Where("pricing_price <= ?", *f.MaxPrice)
		}
		if f.LowStockOnly {
			db = db.Where("stock_quantity <= stock_low_stock_threshold")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	q := r.db.WithContext(ctx).Scopes(filter).Order("created_at DESC").Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search products: %w", err)
	}
	return products, total, nil
}
