package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"medigo/internal/events"
	"medigo/internal/logger"
	"medigo/internal/models"
	"medigo/internal/repositories"

	"go.uber.org/zap"
)

var categories = map[string]bool{
	models.CategoryPrescription:     true,
	models.CategoryOTC:              true,
	models.CategorySupplement:       true,
	models.CategoryMedicalEquipment: true,
	models.CategoryPersonalCare:     true,
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	publisher events.Publisher
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, publisher events.Publisher) *ProductService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ProductService{repo: repo, publisher: publisher}
}

// ProductQuery is the public catalog filter.
type ProductQuery struct {
	Search     string
	Category   string
	PharmacyID string
	MinPrice   *float64
	MaxPrice   *float64
	Pagination
}

// List returns active products matching q, newest first.
func (s *ProductService) List(ctx context.Context, q ProductQuery) (*Page[models.Product], error) {
	p := q.Pagination.normalize()
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, invalid("minPrice cannot exceed maxPrice")
	}
	items, total, err := s.repo.Search(ctx, repositories.ProductFilter{
		Search:     q.Search,
		Category:   q.Category,
		PharmacyID: q.PharmacyID,
		MinPrice:   q.MinPrice,
		MaxPrice:   q.MaxPrice,
		Offset:     p.offset(),
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return newPage(items, total, p), nil
}

// Get returns an active product. Deleted products are not found.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "product")
	}
	if !product.IsActive {
		return nil, fmt.Errorf("product: %w", ErrNotFound)
	}
	return product, nil
}

// ProductInput is the writable part of a product. On update a nil Images
// keeps the current images.
type ProductInput struct {
	Name                 string
	Description          string
	Category             string
	Manufacturer         string
	Pricing              models.Pricing
	Stock                models.Stock
	RequiresPrescription bool
	Tags                 []string
	Images               []string
	Specifications       map[string]string
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name is required")
	}
	if !categories[in.Category] {
		return invalid("unknown category %q", in.Category)
	}
	if in.Pricing.Price < 0 {
		return invalid("price cannot be negative")
	}
	if d := in.Pricing.DiscountPrice; d != nil && (*d < 0 || *d > in.Pricing.Price) {
		return invalid("discountPrice must be between 0 and price")
	}
	if in.Stock.Quantity < 0 || in.Stock.LowStockThreshold < 0 {
		return invalid("stock quantities cannot be negative")
	}
	return nil
}

// Create adds a product owned by the calling pharmacy.
func (s *ProductService) Create(ctx context.Context, pharmacy *models.User, in ProductInput) (*models.Product, error) {
	if pharmacy.Role != models.RolePharmacy {
		return nil, forbidden("only pharmacies can add products")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{PharmacyID: pharmacy.ID, IsActive: true}
	apply(product, in)
	if product.Images == nil {
		product.Images = []string{}
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, translate(err, "product")
	}
	logger.FromCtx(ctx).Info("product created",
		zap.String("product_id", product.ID),
		zap.String("pharmacy_id", pharmacy.ID),
	)
	return product, nil
}

func apply(p *models.Product, in ProductInput) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Category = in.Category
	p.Manufacturer = in.Manufacturer
	p.Pricing = in.Pricing
	p.Stock = in.Stock
	p.RequiresPrescription = in.RequiresPrescription || in.Category == models.CategoryPrescription
	p.Tags = in.Tags
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if in.Images != nil {
		p.Images = in.Images
	}
	p.Specifications = in.Specifications
}

// owned loads a product and checks the caller owns it.
func (s *ProductService) owned(ctx context.Context, pharmacy *models.User, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "product")
	}
	if product.PharmacyID != pharmacy.ID {
		return nil, forbidden("product belongs to another pharmacy")
	}
	return product, nil
}

// Update replaces the writable fields of a product the caller owns.
func (s *ProductService) Update(ctx context.Context, pharmacy *models.User, id string, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	product, err := s.owned(ctx, pharmacy, id)
	if err != nil {
		return nil, err
	}
	apply(product, in)
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, translate(err, "product")
	}
	s.checkLowStock(ctx, product)
	return product, nil
}

// Delete deactivates a product. Past orders keep their snapshots.
func (s *ProductService) Delete(ctx context.Context, pharmacy *models.User, id string) error {
	if _, err := s.owned(ctx, pharmacy, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return translate(err, "product")
	}
	return nil
}

// MyProducts lists the caller's products, inactive ones included.
func (s *ProductService) MyProducts(ctx context.Context, pharmacy *models.User, lowStockOnly bool, page Pagination) (*Page[models.Product], error) {
	p := page.normalize()
	items, total, err := s.repo.Search(ctx, repositories.ProductFilter{
		PharmacyID:      pharmacy.ID,
		IncludeInactive: true,
		LowStockOnly:    lowStockOnly,
		Offset:          p.offset(),
		Limit:           p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return newPage(items, total, p), nil
}

// UpdateStock sets the on-hand quantity of a product the caller owns.
func (s *ProductService) UpdateStock(ctx context.Context, pharmacy *models.User, id string, quantity int) (*models.Product, error) {
	if quantity < 0 {
		return nil, invalid("quantity cannot be negative")
	}
	if _, err := s.owned(ctx, pharmacy, id); err != nil {
		return nil, err
	}
	product, err := s.repo.SetStock(ctx, id, quantity)
	if err != nil {
		return nil, translate(err, "product")
	}
	s.checkLowStock(ctx, product)
	return product, nil
}

// checkLowStock publishes product.low_stock when an active product is at
// or below its threshold. Failures are logged, never returned.
func (s *ProductService) checkLowStock(ctx context.Context, product *models.Product) {
	publishLowStock(ctx, s.publisher, product)
}

func publishLowStock(ctx context.Context, publisher events.Publisher, product *models.Product) {
	if !product.IsActive || !product.IsLowStock() {
		return
	}
	e := events.New(events.ProductLowStock, map[string]string{
		events.KeyPharmacyID: product.PharmacyID,
		events.KeyQuantity:   strconv.Itoa(product.Stock.Quantity),
		events.KeyThreshold:  strconv.Itoa(product.Stock.LowStockThreshold),
	})
	e.ProductID = product.ID
	if err := publisher.Publish(ctx, e); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish event",
			zap.String("event", e.Type),
			zap.String("product_id", product.ID),
			zap.Error(err),
		)
	}
}
