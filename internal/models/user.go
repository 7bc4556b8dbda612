package models

import "time"

// Role identifies what a user account is allowed to do.
type Role string

const (
	RoleCustomer Role = "customer"
	RolePharmacy Role = "pharmacy"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RolePharmacy, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Address is a postal address saved on a customer profile or a pharmacy.
type Address struct {
	AddressType string  `json:"addressType,omitempty" bson:"addressType,omitempty" validate:"omitempty,oneof=home work other"`
	FullAddress string  `json:"fullAddress" bson:"fullAddress" validate:"required"`
	City        string  `json:"city" bson:"city" validate:"required"`
	State       string  `json:"state" bson:"state" validate:"required"`
	ZipCode     string  `json:"zipCode" bson:"zipCode" validate:"required"`
	Latitude    float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`
	IsDefault   bool    `json:"isDefault" bson:"isDefault"`
}

// Prescription is an uploaded prescription document.
type Prescription struct {
	FileName   string    `json:"fileName" bson:"fileName"`
	FileURL    string    `json:"fileUrl" bson:"fileUrl"`
	UploadedAt time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

type CustomerDetails struct {
	Addresses     []Address      `json:"addresses" bson:"addresses"`
	Prescriptions []Prescription `json:"prescriptions" bson:"prescriptions"`
}

type OperatingHours struct {
	Day       string `json:"day" bson:"day" validate:"oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	OpenTime  string `json:"openTime" bson:"openTime"`
	CloseTime string `json:"closeTime" bson:"closeTime"`
	IsClosed  bool   `json:"isClosed" bson:"isClosed"`
}

type PharmacyDetails struct {
	PharmacyName   string           `json:"pharmacyName" bson:"pharmacyName"`
	LicenseNumber  string           `json:"licenseNumber" bson:"licenseNumber"`
	Description    string           `json:"description,omitempty" bson:"description,omitempty"`
	Address        Address          `json:"address" bson:"address"`
	OperatingHours []OperatingHours `json:"operatingHours,omitempty" bson:"operatingHours,omitempty"`
	ServiceRadius  float64          `json:"serviceRadius" bson:"serviceRadius"` // km
	Rating         float64          `json:"rating" bson:"rating"`
	TotalRatings   int              `json:"totalRatings" bson:"totalRatings"`
	IsApproved     bool             `json:"isApproved" bson:"isApproved"`
}

// Location is a driver's last reported position.
type Location struct {
	Latitude    float64   `json:"latitude" bson:"latitude"`
	Longitude   float64   `json:"longitude" bson:"longitude"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

type DriverDetails struct {
	VehicleType     string    `json:"vehicleType" bson:"vehicleType" validate:"omitempty,oneof=bike car scooter"`
	VehicleNumber   string    `json:"vehicleNumber" bson:"vehicleNumber"`
	LicenseNumber   string    `json:"licenseNumber" bson:"licenseNumber"`
	LicenseURL      string    `json:"licenseUrl,omitempty" bson:"licenseUrl,omitempty"`
	CurrentLocation *Location `json:"currentLocation,omitempty" bson:"currentLocation,omitempty"`
	IsAvailable     bool      `json:"isAvailable" bson:"isAvailable"`
	Rating          float64   `json:"rating" bson:"rating"`
	TotalRatings    int       `json:"totalRatings" bson:"totalRatings"`
	TotalDeliveries int       `json:"totalDeliveries" bson:"totalDeliveries"`
	IsApproved      bool      `json:"isApproved" bson:"isApproved"`
}

// User is an account of any role. Role specific data lives in the matching
// details struct; the others stay nil.
type User struct {
	ID              string           `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	FullName        string           `json:"fullName" gorm:"type:varchar(200)" bson:"fullName"`
	Email           string           `json:"email" gorm:"uniqueIndex;type:varchar(255)" bson:"email"`
	Password        string           `json:"-" gorm:"type:varchar(255)" bson:"password"` // never serialized outward
	Phone           string           `json:"phone" gorm:"type:varchar(50)" bson:"phone"`
	Role            Role             `json:"role" gorm:"type:varchar(20);index" bson:"role"`
	ProfileImage    string           `json:"profileImage,omitempty" bson:"profileImage,omitempty"`
	IsActive        bool             `json:"isActive" bson:"isActive"`
	IsVerified      bool             `json:"isVerified" bson:"isVerified"`
	CustomerDetails *CustomerDetails `json:"customerDetails,omitempty" gorm:"serializer:json;type:text" bson:"customerDetails,omitempty"`
	PharmacyDetails *PharmacyDetails `json:"pharmacyDetails,omitempty" gorm:"serializer:json;type:text" bson:"pharmacyDetails,omitempty"`
	DriverDetails   *DriverDetails   `json:"driverDetails,omitempty" gorm:"serializer:json;type:text" bson:"driverDetails,omitempty"`
	CreatedAt       time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// IsApproved reports whether an admin has approved a pharmacy or driver
// account. Customers and admins need no approval.
func (u *User) IsApproved() bool {
	switch u.Role {
	case RolePharmacy:
		return u.PharmacyDetails != nil && u.PharmacyDetails.IsApproved
	case RoleDriver:
		return u.DriverDetails != nil && u.DriverDetails.IsApproved
	}
	return true
}
