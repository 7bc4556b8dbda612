package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"medigo/internal/models"
	"medigo/internal/repositories"
	"medigo/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	if user.ID == "" {
		user.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	args := m.Called(ctx, role)
	return args.Get(0).([]models.User), args.Error(1)
}

const testJWTSecret = "test_jwt_secret"

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	in := services.RegisterInput{
		FullName: "Test User",
		Email:    " Test@Example.com ",
		Password: "password123",
		Phone:    "555-0100",
		Role:     models.RoleCustomer,
	}

	// Test successful registration
	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()

	user, token, err := authService.Register(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "test@example.com", user.Email)
	assert.NotEqual(t, "password123", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	assert.NotNil(t, user.CustomerDetails)
	mockRepo.AssertExpectations(t)

	// Test email already registered
	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(&models.User{ID: "1"}, nil).Once()
	_, _, err = authService.Register(ctx, in)
	assert.ErrorIs(t, err, services.ErrEmailTaken)
	mockRepo.AssertExpectations(t)

	// Test duplicate detected by the store
	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(repositories.ErrDuplicate).Once()
	_, _, err = authService.Register(ctx, in)
	assert.ErrorIs(t, err, services.ErrEmailTaken)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterRoles(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	_, _, err := authService.Register(ctx, services.RegisterInput{Email: "a@b.c", Password: "secret1", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, _, err = authService.Register(ctx, services.RegisterInput{Email: "a@b.c", Password: "secret1", Role: models.RolePharmacy})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	mockRepo.On("GetByEmail", ctx, "ph@example.com").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil).Once()
	user, _, err := authService.Register(ctx, services.RegisterInput{
		FullName: "Corner Pharmacy",
		Email:    "ph@example.com",
		Password: "secret1",
		Role:     models.RolePharmacy,
		PharmacyDetails: &models.PharmacyDetails{
			PharmacyName:  "Corner",
			LicenseNumber: "LIC-1",
			IsApproved:    true, // ignored
		},
	})
	require.NoError(t, err)
	assert.False(t, user.IsApproved())
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	user := &models.User{
		ID:       "user-123",
		Email:    "test@example.com",
		Password: hashed(t, "password123"),
		Role:     models.RoleDriver,
		IsActive: true,
	}

	// Test successful login
	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(user, nil).Once()
	got, token, err := authService.Login(ctx, "TEST@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, "driver", claims["role"])
	mockRepo.AssertExpectations(t)

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(user, nil).Once()
	_, _, err = authService.Login(ctx, "test@example.com", "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Test invalid credentials (user not found)
	mockRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, repositories.ErrNotFound).Once()
	_, _, err = authService.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// Test deactivated account
	inactive := *user
	inactive.IsActive = false
	mockRepo.On("GetByEmail", ctx, "test@example.com").Return(&inactive, nil).Once()
	_, _, err = authService.Login(ctx, "test@example.com", "password123")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockUserRepository), testJWTSecret, time.Hour)

	token, err := authService.GenerateToken(&models.User{ID: "user-123", Role: models.RolePharmacy})
	require.NoError(t, err)

	// Test valid token
	claims, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, models.RolePharmacy, claims.Role)

	// Test garbage token
	_, err = authService.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// Test token signed with another secret
	other := services.NewAuthService(new(MockUserRepository), "other", time.Hour)
	foreign, _ := other.GenerateToken(&models.User{ID: "user-123", Role: models.RoleCustomer})
	_, err = authService.ValidateToken(foreign)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	// Test expired token
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-123",
		"role":    "customer",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	expiredString, _ := expired.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredString)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	driver := &models.User{
		ID:       "d-1",
		FullName: "Old Name",
		Role:     models.RoleDriver,
		DriverDetails: &models.DriverDetails{
			VehicleType:     "bike",
			IsApproved:      true,
			TotalDeliveries: 12,
		},
	}
	mockRepo.On("GetByID", ctx, "d-1").Return(driver, nil).Once()
	mockRepo.On("Update", ctx, driver).Return(nil).Once()

	name := "New Name"
	updated, err := authService.UpdateProfile(ctx, "d-1", services.ProfileUpdate{
		FullName: &name,
		DriverDetails: &models.DriverDetails{
			VehicleType:     "car",
			IsApproved:      false,
			TotalDeliveries: 0,
		},
		PharmacyDetails: &models.PharmacyDetails{PharmacyName: "ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.FullName)
	assert.Equal(t, "car", updated.DriverDetails.VehicleType)
	assert.True(t, updated.DriverDetails.IsApproved)
	assert.Equal(t, 12, updated.DriverDetails.TotalDeliveries)
	assert.Nil(t, updated.PharmacyDetails)
	assert.Equal(t, models.RoleDriver, updated.Role)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)
	user := &models.User{ID: "u-1", Role: models.RoleCustomer, Password: hashed(t, "current1")}

	mockRepo.On("GetByID", ctx, "u-1").Return(user, nil).Once()
	_, err := authService.UpdatePassword(ctx, "u-1", "wrong", "newpass1")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	mockRepo.On("GetByID", ctx, "u-1").Return(user, nil).Once()
	mockRepo.On("UpdatePassword", ctx, "u-1", mock.MatchedBy(func(h string) bool {
		return bcrypt.CompareHashAndPassword([]byte(h), []byte("newpass1")) == nil
	})).Return(nil).Once()
	token, err := authService.UpdatePassword(ctx, "u-1", "current1", "newpass1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	mockRepo.On("GetByEmail", ctx, "admin@medigo.test").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Role == models.RoleAdmin && u.IsActive
	})).Return(nil).Once()
	require.NoError(t, authService.EnsureAdmin(ctx, "admin@medigo.test", "adminpass"))

	mockRepo.On("GetByEmail", ctx, "admin@medigo.test").Return(&models.User{ID: "a"}, nil).Once()
	require.NoError(t, authService.EnsureAdmin(ctx, "admin@medigo.test", "adminpass"))
	mockRepo.AssertExpectations(t)
}
