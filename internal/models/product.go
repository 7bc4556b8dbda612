package models

import "time"

// Product categories accepted by the catalog.
const (
	CategoryPrescription     = "prescription"
	CategoryOTC              = "otc"
	CategorySupplement       = "supplement"
	CategoryMedicalEquipment = "medical-equipment"
	CategoryPersonalCare     = "personal-care"
)

type Pricing struct {
	Price         float64  `json:"price" bson:"price"`
	DiscountPrice *float64 `json:"discountPrice,omitempty" bson:"discountPrice,omitempty"`
}

type Stock struct {
	Quantity          int    `json:"quantity" bson:"quantity"`
	LowStockThreshold int    `json:"lowStockThreshold" bson:"lowStockThreshold"`
	Unit              string `json:"unit,omitempty" bson:"unit,omitempty"`
}

// Product is a catalog entry owned by a single pharmacy. Products are never
// removed; deleting one clears IsActive.
type Product struct {
	ID                   string            `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	PharmacyID           string            `json:"pharmacyId" gorm:"type:varchar(36);index" bson:"pharmacyId"`
	Name                 string            `json:"name" gorm:"type:varchar(200)" bson:"name"`
	Description          string            `json:"description" bson:"description"`
	Category             string            `json:"category" gorm:"type:varchar(50);index" bson:"category"`
	Manufacturer         string            `json:"manufacturer" bson:"manufacturer"`
	Pricing              Pricing           `json:"pricing" gorm:"embedded;embeddedPrefix:pricing_" bson:"pricing"`
	Stock                Stock             `json:"stock" gorm:"embedded;embeddedPrefix:stock_" bson:"stock"`
	RequiresPrescription bool              `json:"requiresPrescription" bson:"requiresPrescription"`
	Tags                 []string          `json:"tags" gorm:"serializer:json;type:text" bson:"tags"`
	Images               []string          `json:"images" gorm:"serializer:json;type:text" bson:"images"`
	Specifications       map[string]string `json:"specifications,omitempty" gorm:"serializer:json;type:text" bson:"specifications,omitempty"`
	IsActive             bool              `json:"isActive" gorm:"index" bson:"isActive"`
	CreatedAt            time.Time         `json:"createdAt" gorm:"index" bson:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// UnitPrice is the price a customer pays per unit: the discount price when
// one is set, otherwise the list price.
func (p *Product) UnitPrice() float64 {
	if p.Pricing.DiscountPrice != nil {
		return *p.Pricing.DiscountPrice
	}
	return p.Pricing.Price
}

// IsLowStock reports whether the remaining quantity is at or below the
// pharmacy's threshold.
func (p *Product) IsLowStock() bool {
	return p.Stock.Quantity <= p.Stock.LowStockThreshold
}
