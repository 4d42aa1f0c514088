package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/sakif/hospital-directory/internal/model"
)

// newTestTokenService creates a TokenService for testing.
// It uses a fixed, known secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func testIdentity(id string) model.Identity {
	return model.Identity{
		ID:             id,
		Nombre:         "Ana",
		PrimerApellido: "García",
		Email:          id + "@example.com",
		Role:           model.RoleUser,
	}
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", 0)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
	if ts.TTL() != 4*time.Hour {
		t.Errorf("TTL() = %v, want 4h", ts.TTL())
	}
}

// =========================================================================
// ISSUE TESTS
// =========================================================================

func TestIssue_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue(testIdentity("user-123"))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("Issue() token doesn't look like a JWT: %q", token)
	}
}

func TestIssue_RejectsEmptyIdentity(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Issue(model.Identity{}); err == nil {
		t.Fatal("Issue() should reject an identity without id")
	}
}

func TestIssue_ScrubsPassword(t *testing.T) {
	ts := newTestTokenService(t)
	id := testIdentity("user-123")
	id.Password = "$2a$10$leaked-hash"

	token, _ := ts.Issue(id)
	claims, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Usuario.Password != model.PasswordPlaceholder {
		t.Errorf("password in token = %q, want %q", claims.Usuario.Password, model.PasswordPlaceholder)
	}
}

func TestIssue_ExpiresAfterFourHours(t *testing.T) {
	ts := newTestTokenService(t)
	fixed := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return fixed }

	token, _ := ts.Issue(testIdentity("user-123"))
	claims, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if got != 4*time.Hour {
		t.Errorf("exp - iat = %v, want 4h", got)
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	id := testIdentity("user-abc-123")
	id.Role = model.RoleAdmin

	token, err := ts.Issue(id)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Usuario.ID != id.ID || claims.Subject != id.ID {
		t.Errorf("Verify() ids = %q/%q, want %q", claims.Usuario.ID, claims.Subject, id.ID)
	}
	if claims.Usuario.Role != model.RoleAdmin {
		t.Errorf("Verify() role = %q, want ADMIN_ROLE", claims.Usuario.Role)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.IssueWithDuration(testIdentity("user-123"), -1*time.Second)
	if err != nil {
		t.Fatalf("IssueWithDuration() error = %v", err)
	}

	_, err = ts.Verify(token)
	if err == nil {
		t.Fatal("Verify() should return an error for an expired token")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("error = %v, want an expiry error", err)
	}
}

func TestVerify_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Issue(testIdentity("user-123"))
	tampered := token[:len(token)-3] + "xxx"

	if _, err := ts.Verify(tampered); err == nil {
		t.Fatal("Verify() should return an error for a tampered token")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!", 0)
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", 0)

	token, _ := ts1.Issue(testIdentity("user-123"))

	if _, err := ts2.Verify(token); err == nil {
		t.Fatal("Verify() should fail when using a different secret")
	}
}

func TestVerify_MalformedInput(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not.a.jwt.token", "abc"} {
		if _, err := ts.Verify(in); err == nil {
			t.Errorf("Verify(%q) should return an error", in)
		}
	}
}
