// Package cart keeps a customer's shopping cart. The reducers are pure
// functions over Snapshot; Store applies them and persists the result
// through a Persister.
package cart

import (
	"context"
	"errors"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Item is one product line in a cart.
type Item struct {
	ProductID            string   `json:"productId" bson:"productId"`
	PharmacyID           string   `json:"pharmacyId" bson:"pharmacyId"`
	Name                 string   `json:"name" bson:"name"`
	Price                float64  `json:"price" bson:"price"`
	DiscountPrice        *float64 `json:"discountPrice,omitempty" bson:"discountPrice,omitempty"`
	RequiresPrescription bool     `json:"requiresPrescription" bson:"requiresPrescription"`
	Quantity             int      `json:"quantity" bson:"quantity"`
}

// UnitPrice mirrors models.Product.UnitPrice.
func (i Item) UnitPrice() float64 {
	if i.DiscountPrice != nil {
		return *i.DiscountPrice
	}
	return i.Price
}

// Snapshot is the whole cart. All items share PharmacyID.
type Snapshot struct {
	PharmacyID string `json:"pharmacyId,omitempty" bson:"pharmacyId,omitempty"`
	Items      []Item `json:"items" bson:"items"`
}

// Total is the sum of unit price times quantity over all lines.
func (s Snapshot) Total() float64 {
	var total float64
	for _, it := range s.Items {
		total += it.UnitPrice() * float64(it.Quantity)
	}
	return total
}

// Count is the number of units in the cart.
func (s Snapshot) Count() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

func (s Snapshot) clone() Snapshot {
	items := make([]Item, len(s.Items))
	copy(items, s.Items)
	return Snapshot{PharmacyID: s.PharmacyID, Items: items}
}

// Add puts item into the cart, merging quantities with an existing line for
// the same product. An item from a different pharmacy replaces the cart.
func Add(s Snapshot, item Item) (Snapshot, error) {
	if item.Quantity < 1 {
		return s, ErrInvalidQuantity
	}
	next := s.clone()
	if next.PharmacyID != "" && next.PharmacyID != item.PharmacyID {
		next.Items = nil
	}
	next.PharmacyID = item.PharmacyID

	for i := range next.Items {
		if next.Items[i].ProductID == item.ProductID {
			next.Items[i].Quantity += item.Quantity
			return next, nil
		}
	}
	next.Items = append(next.Items, item)
	return next, nil
}

// UpdateQuantity sets the quantity of a line. A quantity below one removes
// the line. Unknown products leave the cart unchanged.
func UpdateQuantity(s Snapshot, productID string, quantity int) Snapshot {
	if quantity < 1 {
		return Remove(s, productID)
	}
	next := s.clone()
	for i := range next.Items {
		if next.Items[i].ProductID == productID {
			next.Items[i].Quantity = quantity
		}
	}
	return next
}

// Remove drops the line for productID.
func Remove(s Snapshot, productID string) Snapshot {
	next := Snapshot{PharmacyID: s.PharmacyID}
	for _, it := range s.Items {
		if it.ProductID != productID {
			next.Items = append(next.Items, it)
		}
	}
	if len(next.Items) == 0 {
		return Clear()
	}
	return next
}

// Clear returns an empty cart.
func Clear() Snapshot {
	return Snapshot{Items: []Item{}}
}

// Persister reads and writes cart snapshots keyed by owner.
type Persister interface {
	Load(ctx context.Context, ownerID string) (Snapshot, error)
	Save(ctx context.Context, ownerID string, s Snapshot) error
	Delete(ctx context.Context, ownerID string) error
}

// Store applies reducers to persisted carts.
type Store struct {
	persister Persister
}

func NewStore(p Persister) *Store {
	return &Store{persister: p}
}

func (st *Store) Get(ctx context.Context, ownerID string) (Snapshot, error) {
	return st.persister.Load(ctx, ownerID)
}

func (st *Store) Add(ctx context.Context, ownerID string, item Item) (Snapshot, error) {
	cur, err := st.persister.Load(ctx, ownerID)
	if err != nil {
		return Snapshot{}, err
	}
	next, err := Add(cur, item)
	if err != nil {
		return cur, err
	}
	return next, st.persister.Save(ctx, ownerID, next)
}

func (st *Store) UpdateQuantity(ctx context.Context, ownerID, productID string, quantity int) (Snapshot, error) {
	cur, err := st.persister.Load(ctx, ownerID)
	if err != nil {
		return Snapshot{}, err
	}
	next := UpdateQuantity(cur, productID, quantity)
	return next, st.persister.Save(ctx, ownerID, next)
}

func (st *Store) Remove(ctx context.Context, ownerID, productID string) (Snapshot, error) {
	cur, err := st.persister.Load(ctx, ownerID)
	if err != nil {
		return Snapshot{}, err
	}
	next := Remove(cur, productID)
	return next, st.persister.Save(ctx, ownerID, next)
}

func (st *Store) Clear(ctx context.Context, ownerID string) error {
	return st.persister.Delete(ctx, ownerID)
}
