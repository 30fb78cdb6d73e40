package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/fleetdesk-server/internal/config"
	"github.com/fleetdesk/fleetdesk-server/internal/models"
	"github.com/fleetdesk/fleetdesk-server/internal/tenant"
)

func testManager() *JWTManager {
	return NewJWTManager(&config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	m := testManager()
	user := &models.User{ID: uuid.New(), Email: "user@example.com"}
	sc := &tenant.SessionContext{TenantID: uuid.New(), Workspace: "acme"}

	access, refresh, err := m.GenerateTokenPair(user, sc)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	claims, err := m.ValidateToken(access)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("UserID = %v, want %v", claims.UserID, user.ID)
	}
	if claims.TenantID != sc.TenantID {
		t.Errorf("TenantID = %v, want %v", claims.TenantID, sc.TenantID)
	}
	if claims.Workspace != "acme" {
		t.Errorf("Workspace = %q, want %q", claims.Workspace, "acme")
	}

	cached := claims.SessionContext()
	if cached == nil {
		t.Fatal("SessionContext = nil, want cached context")
	}
	if cached.TenantID != sc.TenantID || cached.Workspace != sc.Workspace {
		t.Errorf("cached context = %+v, want %+v", cached, sc)
	}

	userID, err := m.ParseRefreshToken(refresh)
	if err != nil {
		t.Fatalf("ParseRefreshToken failed: %v", err)
	}
	if userID != user.ID {
		t.Errorf("refresh subject = %v, want %v", userID, user.ID)
	}
}

func TestSessionContext_EmptyWhenNoTenant(t *testing.T) {
	m := testManager()
	user := &models.User{ID: uuid.New(), Email: "user@example.com"}

	access, _, err := m.GenerateTokenPair(user, nil)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	claims, err := m.ValidateToken(access)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.SessionContext() != nil {
		t.Error("SessionContext != nil for a tenantless session")
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	m := testManager()
	user := &models.User{ID: uuid.New(), Email: "user@example.com"}

	access, _, err := m.GenerateTokenPair(user, nil)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	other := NewJWTManager(&config.JWTConfig{
		Secret:         "different-secret",
		AccessTokenTTL: 15 * time.Minute,
	})
	if _, err := other.ValidateToken(access); err == nil {
		t.Error("ValidateToken accepted a token signed with another secret")
	}
}
