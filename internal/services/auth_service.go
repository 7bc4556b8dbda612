package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medigo/internal/logger"
	"medigo/internal/models"
	"medigo/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the payload of an access token.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.StandardClaims
}

// AuthService handles business logic for authentication and accounts.
type AuthService struct {
	userRepo      repositories.UserRepository
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewAuthService creates a new AuthService. Tokens expire after
// tokenDuration.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, tokenDuration time.Duration) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: tokenDuration,
	}
}

// RegisterInput is a sign-up request. Only the details struct matching Role
// is kept.
type RegisterInput struct {
	FullName        string
	Email           string
	Password        string
	Phone           string
	Role            models.Role
	PharmacyDetails *models.PharmacyDetails
	DriverDetails   *models.DriverDetails
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns it with a fresh token. Admin
// accounts cannot be self-registered; pharmacies and drivers start out
// unapproved.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("method", "Register"))

	user := &models.User{
		FullName:   strings.TrimSpace(in.FullName),
		Email:      normalizeEmail(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		Role:       in.Role,
		IsActive:   true,
		IsVerified: false,
	}
	switch in.Role {
	case models.RoleCustomer:
		user.CustomerDetails = &models.CustomerDetails{Addresses: []models.Address{}, Prescriptions: []models.Prescription{}}
	case models.RolePharmacy:
		if in.PharmacyDetails == nil || in.PharmacyDetails.PharmacyName == "" || in.PharmacyDetails.LicenseNumber == "" {
			return nil, "", invalid("pharmacy name and license number are required")
		}
		details := *in.PharmacyDetails
		details.IsApproved, details.Rating, details.TotalRatings = false, 0, 0
		user.PharmacyDetails = &details
	case models.RoleDriver:
		details := models.DriverDetails{}
		if in.DriverDetails != nil {
			details = *in.DriverDetails
		}
		details.IsApproved, details.IsAvailable = false, false
		details.Rating, details.TotalRatings, details.TotalDeliveries = 0, 0, 0
		details.CurrentLocation = nil
		user.DriverDetails = &details
	default:
		return nil, "", invalid("role must be customer, pharmacy or driver")
	}

	if existing, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existing != nil {
		return nil, "", fmt.Errorf("'%s': %w", user.Email, ErrEmailTaken)
	} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, "", fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, "", fmt.Errorf("'%s': %w", user.Email, ErrEmailTaken)
		}
		log.Error("failed to create user", zap.Error(err))
		return nil, "", fmt.Errorf("failed to register user: %w", err)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}
	log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, token, nil
}

// Login authenticates by email and password and returns a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", fmt.Errorf("account is deactivated: %w", ErrUnauthorized)
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GenerateToken signs a token carrying the user's id and role.
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Role:   user.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   user.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenDuration).Unix(),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v: %w", err, ErrUnauthorized)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token: %w", ErrUnauthorized)
	}
	return claims, nil
}

// CurrentUser loads the account a token belongs to.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

// ProfileUpdate carries the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FullName        *string
	Phone           *string
	ProfileImage    *string
	CustomerDetails *models.CustomerDetails
	PharmacyDetails *models.PharmacyDetails
	DriverDetails   *models.DriverDetails
}

// UpdateProfile edits name, phone, image and the role's own details. Role,
// email, approval, ratings and delivery counters are never taken from the
// request.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return nil, invalid("full name cannot be empty")
		}
		user.FullName = name
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.ProfileImage != nil {
		user.ProfileImage = *in.ProfileImage
	}

	switch user.Role {
	case models.RoleCustomer:
		if in.CustomerDetails != nil {
			details := *in.CustomerDetails
			if details.Prescriptions == nil && user.CustomerDetails != nil {
				details.Prescriptions = user.CustomerDetails.Prescriptions
			}
			user.CustomerDetails = &details
		}
	case models.RolePharmacy:
		if in.PharmacyDetails != nil {
			details := *in.PharmacyDetails
			if cur := user.PharmacyDetails; cur != nil {
				details.IsApproved, details.Rating, details.TotalRatings = cur.IsApproved, cur.Rating, cur.TotalRatings
			} else {
				details.IsApproved, details.Rating, details.TotalRatings = false, 0, 0
			}
			user.PharmacyDetails = &details
		}
	case models.RoleDriver:
		if in.DriverDetails != nil {
			details := *in.DriverDetails
			cur := user.DriverDetails
			if cur == nil {
				cur = &models.DriverDetails{}
			}
			details.IsApproved, details.IsAvailable = cur.IsApproved, cur.IsAvailable
			details.Rating, details.TotalRatings, details.TotalDeliveries = cur.Rating, cur.TotalRatings, cur.TotalDeliveries
			details.CurrentLocation = cur.CurrentLocation
			user.DriverDetails = &details
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

// UpdatePassword replaces the password after checking the current one and
// returns a new token.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", translate(err, "user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return "", fmt.Errorf("current password is incorrect: %w", ErrInvalidCredentials)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		return "", translate(err, "user")
	}
	return s.GenerateToken(user)
}

// EnsureAdmin creates the bootstrap admin account if the email is unused.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &models.User{
		FullName:   "Administrator",
		Email:      email,
		Password:   string(hashed),
		Role:       models.RoleAdmin,
		IsActive:   true,
		IsVerified: true,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil && !errors.Is(err, repositories.ErrDuplicate) {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	logger.FromCtx(ctx).Info("admin account created", zap.String("email", email))
	return nil
}
