package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/config"
	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
	"github.com/fleetdesk/fleetdesk-server/pkg/crypto"
)

// JWTManager manages JWT tokens
type JWTManager struct {
	config *config.JWTConfig
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(cfg *config.JWTConfig) *JWTManager {
	return &JWTManager{
		config: cfg,
	}
}

// Claims represents JWT claims. The tenant fields are the client-held
// session context cache: written once at login or tenant switch,
// re-derivable from the directory, and never trusted for authorization
// on their own.
type Claims struct {
	jwt.RegisteredClaims
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	TenantID     uuid.UUID `json:"tenant_id,omitempty"`
	Workspace    string    `json:"workspace,omitempty"`
	IsSuperAdmin bool      `json:"is_super_admin"`
}

// SessionContext returns the cached tenant context carried by the
// claims, or nil when no tenant has been resolved for the session yet.
func (c *Claims) SessionContext() *tenant.SessionContext {
	if c.TenantID == uuid.Nil && !c.IsSuperAdmin {
		return nil
	}
	return &tenant.SessionContext{
		TenantID:     c.TenantID,
		Workspace:    c.Workspace,
		IsSuperAdmin: c.IsSuperAdmin,
	}
}

// GenerateTokenPair generates access and refresh tokens. The session
// context is embedded in the access token.
func (m *JWTManager) GenerateTokenPair(user *models.User, sc *tenant.SessionContext) (string, string, error) {
	accessClaims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.config.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "fleetdesk-server",
		},
		UserID: user.ID,
		Email:  user.Email,
	}
	if sc != nil {
		accessClaims.TenantID = sc.TenantID
		accessClaims.Workspace = sc.Workspace
		accessClaims.IsSuperAdmin = sc.IsSuperAdmin
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.config.RefreshTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		NotBefore: jwt.NewNumericDate(time.Now()),
		Issuer:    "fleetdesk-server",
		ID:        uuid.New().String(),
	}

	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", "", fmt.Errorf("sign refresh token: %w", err)
	}

	return accessTokenString, refreshTokenString, nil
}

// ValidateToken validates a token
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// ParseRefreshToken validates a refresh token and returns the user id it
// was issued for. The caller re-fetches the user and re-resolves the
// tenant context; a refresh never copies stale context forward blindly.
func (m *JWTManager) ParseRefreshToken(refreshTokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(refreshTokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	})

	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid refresh token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID in token")
	}

	return userID, nil
}

// VerifyPassword verifies a password against a hash
func (m *JWTManager) VerifyPassword(password, hash string) bool {
	return crypto.VerifyPassword(password, hash)
}
