// Package auth issues and verifies access tokens and handles account
// registration and login.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

const issuer = "grievance-portal"

// Claims is the payload of an access token.
type Claims struct {
	UserID       int         `json:"user_id"`
	Username     string      `json:"username"`
	Role         models.Role `json:"role"`
	Municipality string      `json:"municipality"`
	jwt.RegisteredClaims
}

// Caller converts the claims into the identity passed to services.
func (c *Claims) Caller() *models.Caller {
	return &models.Caller{UserID: c.UserID, Role: c.Role, Municipality: c.Municipality}
}

type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs an HS256 token for the user.
func (m *JWTManager) Generate(user models.User) (string, error) {
	now := m.now().UTC()
	claims := Claims{
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
		Municipality: user.Municipality,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.Itoa(user.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies signature, issuer and expiry.
func (m *JWTManager) Parse(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
