package services

import (
	"context"
	"fmt"
	"time"

	"medigo/internal/logger"
	"medigo/internal/models"
	"medigo/internal/repositories"

	"go.uber.org/zap"
)

// UserService covers the directory, approval and driver status operations.
type UserService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) listRole(ctx context.Context, role models.Role, keep func(*models.User) bool) ([]models.User, error) {
	users, err := s.userRepo.ListByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s users: %w", role, err)
	}
	out := make([]models.User, 0, len(users))
	for i := range users {
		if keep(&users[i]) {
			out = append(out, users[i])
		}
	}
	return out, nil
}

// ListPharmacies returns active, approved pharmacies.
func (s *UserService) ListPharmacies(ctx context.Context) ([]models.User, error) {
	return s.listRole(ctx, models.RolePharmacy, func(u *models.User) bool {
		return u.IsActive && u.IsApproved()
	})
}

// DriverQuery filters the driver directory.
type DriverQuery struct {
	IncludeUnapproved bool
	AvailableOnly     bool
}

func (s *UserService) ListDrivers(ctx context.Context, q DriverQuery) ([]models.User, error) {
	return s.listRole(ctx, models.RoleDriver, func(u *models.User) bool {
		if !u.IsActive || (!q.IncludeUnapproved && !u.IsApproved()) {
			return false
		}
		return !q.AvailableOnly || (u.DriverDetails != nil && u.DriverDetails.IsAvailable)
	})
}

// ListUsers returns every account of role, or of every role when role is
// empty.
func (s *UserService) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	roles := []models.Role{models.RoleCustomer, models.RolePharmacy, models.RoleDriver, models.RoleAdmin}
	if role != "" {
		if !role.Valid() {
			return nil, invalid("unknown role %q", role)
		}
		roles = []models.Role{role}
	}
	all := []models.User{}
	for _, r := range roles {
		users, err := s.listRole(ctx, r, func(*models.User) bool { return true })
		if err != nil {
			return nil, err
		}
		all = append(all, users...)
	}
	return all, nil
}

// Approve marks a pharmacy or driver account as approved and verified.
func (s *UserService) Approve(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "user")
	}
	switch user.Role {
	case models.RolePharmacy:
		if user.PharmacyDetails == nil {
			user.PharmacyDetails = &models.PharmacyDetails{}
		}
		user.PharmacyDetails.IsApproved = true
	case models.RoleDriver:
		if user.DriverDetails == nil {
			user.DriverDetails = &models.DriverDetails{}
		}
		user.DriverDetails.IsApproved = true
	default:
		return nil, invalid("%s accounts do not need approval", user.Role)
	}
	user.IsVerified = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, translate(err, "user")
	}
	logger.FromCtx(ctx).Info("account approved", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func driverDetails(driver *models.User) (*models.DriverDetails, error) {
	if driver.Role != models.RoleDriver {
		return nil, forbidden("only drivers have a driver profile")
	}
	if driver.DriverDetails == nil {
		driver.DriverDetails = &models.DriverDetails{}
	}
	return driver.DriverDetails, nil
}

// UpdateDriverLocation records the driver's current position.
func (s *UserService) UpdateDriverLocation(ctx context.Context, driverID string, lat, lng float64) (*models.User, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, invalid("coordinates out of range")
	}
	driver, err := s.userRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, translate(err, "driver")
	}
	details, err := driverDetails(driver)
	if err != nil {
		return nil, err
	}
	details.CurrentLocation = &models.Location{Latitude: lat, Longitude: lng, LastUpdated: time.Now()}
	if err := s.userRepo.Update(ctx, driver); err != nil {
		return nil, translate(err, "driver")
	}
	return driver, nil
}

// SetDriverAvailability toggles whether the driver is taking orders.
func (s *UserService) SetDriverAvailability(ctx context.Context, driverID string, available bool) (*models.User, error) {
	driver, err := s.userRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, translate(err, "driver")
	}
	details, err := driverDetails(driver)
	if err != nil {
		return nil, err
	}
	if available && !details.IsApproved {
		return nil, forbidden("driver account is not approved")
	}
	details.IsAvailable = available
	if err := s.userRepo.Update(ctx, driver); err != nil {
		return nil, translate(err, "driver")
	}
	return driver, nil
}
