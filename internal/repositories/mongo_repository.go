package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medigo/internal/cart"
	"medigo/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names in the Mongo database.
const (
	UsersCollection    = "users"
	ProductsCollection = "products"
	OrdersCollection   = "orders"
	CartsCollection    = "carts"
)

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

// MongoUserRepository is a MongoDB implementation of UserRepository.
type MongoUserRepository struct {
	users *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{users: db.Collection(UsersCollection)}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	if _, err := r.users.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", translateMongo(err))
	}
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, fmt.Errorf("user with ID %s: %w", id, translateMongo(err))
	}
	return &user, nil
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, fmt.Errorf("user with email %s: %w", email, translateMongo(err))
	}
	return &user, nil
}

func (r *MongoUserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"fullName":        user.FullName,
		"phone":           user.Phone,
		"profileImage":    user.ProfileImage,
		"isActive":        user.IsActive,
		"isVerified":      user.IsVerified,
		"customerDetails": user.CustomerDetails,
		"pharmacyDetails": user.PharmacyDetails,
		"driverDetails":   user.DriverDetails,
		"updatedAt":       user.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user with ID %s: %w", user.ID, ErrNotFound)
	}
	return nil
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"password": hash, "updatedAt": time.Now()}})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MongoUserRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	cur, err := r.users.Find(ctx, bson.M{"role": role}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s users: %w", role, err)
	}
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// MongoProductRepository is a MongoDB implementation of ProductRepository.
// Free-text search relies on the text index created by EnsureMongoIndexes.
type MongoProductRepository struct {
	products *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{products: db.Collection(ProductsCollection)}
}

func (r *MongoProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now()
	}
	product.UpdatedAt = product.CreatedAt
	if _, err := r.products.InsertOne(ctx, product); err != nil {
		return fmt.Errorf("failed to create product: %w", translateMongo(err))
	}
	return nil
}

func (r *MongoProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, fmt.Errorf("product with ID %s: %w", id, translateMongo(err))
	}
	return &p, nil
}

func (r *MongoProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	res, err := r.products.UpdateOne(ctx, bson.M{"_id": product.ID}, bson.M{"$set": bson.M{
		"name":                 product.Name,
		"description":          product.Description,
		"category":             product.Category,
		"manufacturer":         product.Manufacturer,
		"pricing":              product.Pricing,
		"stock":                product.Stock,
		"requiresPrescription": product.RequiresPrescription,
		"tags":                 product.Tags,
		"images":               product.Images,
		"specifications":       product.Specifications,
		"isActive":             product.IsActive,
		"updatedAt":            product.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrNotFound)
	}
	return nil
}

func (r *MongoProductRepository) SetStock(ctx context.Context, id string, quantity int) (*models.Product, error) {
	var p models.Product
	err := r.products.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"stock.quantity": quantity, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		return nil, fmt.Errorf("product with ID %s: %w", id, translateMongo(err))
	}
	return &p, nil
}

func (r *MongoProductRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.products.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"isActive": active, "updatedAt": time.Now()}})
	if err != nil {
		return fmt.Errorf("failed to set product active flag: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *MongoProductRepository) Search(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	filter := bson.M{}
	if !f.IncludeInactive {
		filter["isActive"] = true
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		filter["$text"] = bson.M{"$search": s}
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.PharmacyID != "" {
		filter["pharmacyId"] = f.PharmacyID
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["pricing.price"] = price
	}
	if f.LowStockOnly {
		filter["$expr"] = bson.M{"$lte": bson.A{"$stock.quantity", "$stock.lowStockThreshold"}}
	}

	total, err := r.products.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := r.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search products: %w", err)
	}
	products := []models.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, total, nil
}

// MongoOrderRepository is a MongoDB implementation of OrderRepository.
//
// Standalone Mongo deployments have no multi-document transactions, so
// checkout uses a compensating log: the order is inserted in the
// OrderStatusReserving state, each stock decrement is a conditional $inc,
// and on the first failure the applied decrements are reversed and the
// order removed. Only a fully reserved order is flipped to its real status.
type MongoOrderRepository struct {
	orders   *mongo.Collection
	products *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		orders:   db.Collection(OrdersCollection),
		products: db.Collection(ProductsCollection),
	}
}

// visible hides orders whose reservation has not completed.
func visible(filter bson.M) bson.M {
	filter["status"] = bson.M{"$ne": models.OrderStatusReserving}
	return filter
}

func (r *MongoOrderRepository) CreateWithReservation(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	final := order.Status
	order.Status = models.OrderStatusReserving
	_, err := r.orders.InsertOne(ctx, order)
	order.Status = final
	if err != nil {
		return fmt.Errorf("failed to create order: %w", translateMongo(err))
	}

	var applied []models.OrderItem
	for _, item := range order.Items {
		res, err := r.products.UpdateOne(ctx,
			bson.M{"_id": item.ProductID, "isActive": true, "stock.quantity": bson.M{"$gte": item.Quantity}},
			bson.M{"$inc": bson.M{"stock.quantity": -item.Quantity}},
		)
		if err == nil && res.ModifiedCount == 0 {
			err = fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}
		if err != nil {
			if cerr := r.compensate(ctx, order.ID, applied); cerr != nil {
				return fmt.Errorf("%w (compensation failed: %v)", err, cerr)
			}
			return err
		}
		applied = append(applied, item)
	}

	if _, err := r.orders.UpdateOne(ctx, bson.M{"_id": order.ID}, bson.M{"$set": bson.M{"status": final}}); err != nil {
		if cerr := r.compensate(ctx, order.ID, applied); cerr != nil {
			return fmt.Errorf("failed to commit order: %w (compensation failed: %v)", err, cerr)
		}
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// compensate reverses applied decrements and drops the reserving order.
func (r *MongoOrderRepository) compensate(ctx context.Context, orderID string, applied []models.OrderItem) error {
	var errs []error
	for _, item := range applied {
		_, err := r.products.UpdateOne(ctx, bson.M{"_id": item.ProductID},
			bson.M{"$inc": bson.M{"stock.quantity": item.Quantity}})
		if err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", item.ProductID, err))
		}
	}
	if _, err := r.orders.DeleteOne(ctx, bson.M{"_id": orderID}); err != nil {
		errs = append(errs, fmt.Errorf("delete order %s: %w", orderID, err))
	}
	return errors.Join(errs...)
}

func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := r.orders.FindOne(ctx, visible(bson.M{"_id": id})).Decode(&o); err != nil {
		return nil, fmt.Errorf("order with ID %s: %w", id, translateMongo(err))
	}
	return &o, nil
}

func (r *MongoOrderRepository) FindByIdempotencyKey(ctx context.Context, customerID, key string) (*models.Order, error) {
	var o models.Order
	err := r.orders.FindOne(ctx, visible(bson.M{"customerId": customerID, "idempotencyKey": key})).Decode(&o)
	if err != nil {
		return nil, fmt.Errorf("order with idempotency key %s: %w", key, translateMongo(err))
	}
	return &o, nil
}

func (r *MongoOrderRepository) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	filter := visible(bson.M{})
	if f.CustomerID != "" {
		filter["customerId"] = f.CustomerID
	}
	if f.PharmacyID != "" {
		filter["pharmacyId"] = f.PharmacyID
	}
	if f.DriverID != "" {
		filter["driverId"] = f.DriverID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Unassigned {
		filter["driverId"] = bson.M{"$in": bson.A{nil, ""}}
	}

	total, err := r.orders.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := r.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := []models.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, total, nil
}

// ApplyStatusChange performs the status write, history append and side
// fields as one conditional findAndModify. Stock restoration follows as
// per-product $inc writes; any that fail are reported in the error.
func (r *MongoOrderRepository) ApplyStatusChange(ctx context.Context, id string, change StatusChange) (*models.Order, error) {
	now := time.Now()
	set := bson.M{"status": change.Status, "updatedAt": now}
	if change.DriverID != "" {
		set["driverId"] = change.DriverID
	}
	if change.CancelledBy != "" {
		set["cancelledBy"] = change.CancelledBy
		set["cancellationReason"] = change.CancellationReason
	}
	if change.DeliveredAt != nil {
		set["actualDeliveryTime"] = *change.DeliveredAt
	}
	if change.PaymentStatus != "" {
		set["paymentStatus"] = change.PaymentStatus
	}

	filter := bson.M{"_id": id, "status": change.Expected}
	if change.RequireNoDriver {
		filter["driverId"] = bson.M{"$in": bson.A{nil, ""}}
	}

	var o models.Order
	err := r.orders.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": set, "$push": bson.M{"statusHistory": change.Entry}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("order %s: %w", id, ErrStaleState)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", id, err)
	}

	if change.RestoreStock {
		var errs []error
		for _, item := range o.Items {
			_, err := r.products.UpdateOne(ctx, bson.M{"_id": item.ProductID},
				bson.M{"$inc": bson.M{"stock.quantity": item.Quantity}})
			if err != nil {
				errs = append(errs, fmt.Errorf("restore %s x%d: %w", item.ProductID, item.Quantity, err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			return &o, fmt.Errorf("order %s cancelled but stock restore incomplete: %w", id, err)
		}
	}
	return &o, nil
}

type mongoCart struct {
	OwnerID    string      `bson:"_id"`
	PharmacyID string      `bson:"pharmacyId,omitempty"`
	Items      []cart.Item `bson:"items"`
	UpdatedAt  time.Time   `bson:"updatedAt"`
}

// MongoCartRepository persists carts as one document per owner. It
// implements cart.Persister.
type MongoCartRepository struct {
	carts *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{carts: db.Collection(CartsCollection)}
}

func (r *MongoCartRepository) Load(ctx context.Context, ownerID string) (cart.Snapshot, error) {
	var doc mongoCart
	err := r.carts.FindOne(ctx, bson.M{"_id": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return cart.Clear(), nil
	}
	if err != nil {
		return cart.Snapshot{}, fmt.Errorf("failed to load cart: %w", err)
	}
	if doc.Items == nil {
		doc.Items = []cart.Item{}
	}
	return cart.Snapshot{PharmacyID: doc.PharmacyID, Items: doc.Items}, nil
}

func (r *MongoCartRepository) Save(ctx context.Context, ownerID string, s cart.Snapshot) error {
	doc := mongoCart{OwnerID: ownerID, PharmacyID: s.PharmacyID, Items: s.Items, UpdatedAt: time.Now()}
	_, err := r.carts.ReplaceOne(ctx, bson.M{"_id": ownerID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *MongoCartRepository) Delete(ctx context.Context, ownerID string) error {
	if _, err := r.carts.DeleteOne(ctx, bson.M{"_id": ownerID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

