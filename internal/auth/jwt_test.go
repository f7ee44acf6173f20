package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/avolkov/todo-atlas/internal/apperror"
)

// newTestTokenService creates a TokenService with a fixed, known secret so
// tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	_, err := NewTokenService("this-is-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

// =========================================================================
// VALIDATE TESTS
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	userID := "user-abc-123"

	token, err := ts.Generate(userID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != userID {
		t.Errorf("Validate() userID = %q, want %q", got, userID)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	// A token that expired 1 second ago
	token, err := ts.GenerateWithDuration("user-123", -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if err == nil {
		t.Fatal("Validate() should return an error for an expired token")
	}
	// Expired tokens surface as Unauthorized so the middleware can 401
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Validate() error = %v, want ErrUnauthorized", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("user-123")

	// Flip the end of the signature to simulate a modified payload
	tampered := token[:len(token)-3] + "xxx"

	_, err := ts.Validate(tampered)
	if err == nil {
		t.Fatal("Validate() should return an error for a tampered token")
	}
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Validate() error = %v, want ErrUnauthorized", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!")
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")

	token, _ := ts1.Generate("user-123")

	if _, err := ts2.Validate(token); err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_EmptyToken(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Validate(""); err == nil {
		t.Fatal("Validate() should return an error for an empty string")
	}
}

func TestValidate_GarbageString(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Validate("not.a.jwt.token"); err == nil {
		t.Fatal("Validate() should return an error for a garbage string")
	}
}

// =========================================================================
// EXTERNAL SUBJECT TESTS (unverified decode of provider tokens)
// =========================================================================

func TestExternalSubject_NumericSubject(t *testing.T) {
	// ExternalSubject never verifies the signature, so a token signed with
	// a secret we don't know (here: a different TokenService) still decodes.
	other, _ := NewTokenService("some-other-provider-secret!!!!!!")
	token, err := other.Generate("424242")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ts := newTestTokenService(t)
	id, err := ts.ExternalSubject(token)
	if err != nil {
		t.Fatalf("ExternalSubject() error = %v", err)
	}
	if id != 424242 {
		t.Errorf("ExternalSubject() = %d, want 424242", id)
	}
}

func TestExternalSubject_NonNumericSubject(t *testing.T) {
	other, _ := NewTokenService("some-other-provider-secret!!!!!!")
	token, _ := other.Generate("not-a-number")

	ts := newTestTokenService(t)
	_, err := ts.ExternalSubject(token)
	if err == nil {
		t.Fatal("ExternalSubject() should reject a non-numeric subject")
	}
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ExternalSubject() error = %v, want ErrUnauthorized", err)
	}
}

func TestExternalSubject_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	_, err := ts.ExternalSubject("definitely-not-a-jwt")
	if err == nil {
		t.Fatal("ExternalSubject() should reject a malformed token")
	}
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ExternalSubject() error = %v, want ErrUnauthorized", err)
	}
}
