package auth

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/logger"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

// Service registers and authenticates users.
type Service struct {
	db          *gorm.DB
	tokens      *JWTManager
	adminEmails []string
	logg        logrus.FieldLogger
}

func NewService(db *gorm.DB, tokens *JWTManager, adminEmails []string, logg logrus.FieldLogger) *Service {
	return &Service{db: db, tokens: tokens, adminEmails: adminEmails, logg: logg}
}

// Register creates a citizen account, or an admin account when the email is
// listed in adminEmails, and returns a signed token for it.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	municipality := strings.TrimSpace(req.Municipality)
	if username == "" || email == "" || municipality == "" {
		return nil, apperr.InvalidInput("username, email and municipality are required")
	}
	if len(req.Password) < 6 {
		return nil, apperr.InvalidInput("password must be at least 6 characters")
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&existing).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to check existing users")
	}
	if existing > 0 {
		return nil, apperr.Conflict(nil, "username or email already exists")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	user := models.User{
		Username:     username,
		Email:        email,
		Password:     hash,
		Phone:        strings.TrimSpace(req.Phone),
		Municipality: municipality,
		Role:         models.RoleCitizen,
	}
	if slices.Contains(s.adminEmails, email) {
		user.Role = models.RoleAdmin
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict(err, "username or email already exists")
		}
		logger.LogError(s.logg, "auth", "Register", map[string]any{"username": username}, err)
		return nil, apperr.Internal(err, "failed to create user")
	}

	return s.respond(user, "User registered successfully")
}

// Login checks the credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user")
	}
	if !CheckPassword(user.Password, req.Password) {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	return s.respond(user, "Login successful")
}

// Profile loads a user with their department.
func (s *Service) Profile(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Department").First(&user, id).Error; err != nil {
		return nil, apperr.FromStore(err, "user")
	}
	return &user, nil
}

func (s *Service) respond(user models.User, message string) (*models.AuthResponse, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate token")
	}
	return &models.AuthResponse{Token: token, User: user, Message: message}, nil
}
