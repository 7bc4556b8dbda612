package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medigo/internal/cart"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRecord is the row a cart snapshot is stored in.
type CartRecord struct {
	OwnerID   string        `gorm:"primaryKey;type:varchar(36)"`
	Snapshot  cart.Snapshot `gorm:"serializer:json;type:text"`
	UpdatedAt time.Time
}

func (CartRecord) TableName() string { return "carts" }

// GORMCartRepository persists carts as one JSON row per owner. It
// implements cart.Persister.
type GORMCartRepository struct {
	db *gorm.DB
}

func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

func (r *GORMCartRepository) Load(ctx context.Context, ownerID string) (cart.Snapshot, error) {
	var rec CartRecord
	err := r.db.WithContext(ctx).First(&rec, "owner_id = ?", ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cart.Clear(), nil
	}
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("failed to load cart: %w", err)
	}
	if rec.Snapshot.Items == nil {
		rec.Snapshot.Items = []cart.Item{}
	}
	return rec.Snapshot, nil
}

func (r *GORMCartRepository) Save(ctx context.Context, ownerID string, s cart.Snapshot) error {
	rec := CartRecord{OwnerID: ownerID, Snapshot: s, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *GORMCartRepository) Delete(ctx context.Context, ownerID string) error {
	if err := r.db.WithContext(ctx).Delete(&CartRecord{}, "owner_id = ?", ownerID).Error; err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
