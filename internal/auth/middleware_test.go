package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// =========================================================================
// BearerToken TESTS
// =========================================================================

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{"well-formed", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi", true},
		{"missing header", "", "", false},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", false},
		{"scheme only", "Bearer", "", false},
		{"scheme with empty token", "Bearer ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, ok := BearerToken(r)
			if ok != tt.wantOK {
				t.Fatalf("BearerToken() ok = %v, want %v", ok, tt.wantOK)
			}
			if token != tt.wantToken {
				t.Errorf("BearerToken() = %q, want %q", token, tt.wantToken)
			}
		})
	}
}

// =========================================================================
// RequireAuth TESTS
// =========================================================================

// nextHandler records whether the middleware let the request through and
// what user ID it put in the context.
type nextHandler struct {
	called bool
	userID string
}

func (n *nextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.called = true
	n.userID, _ = UserIDFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate("user-xyz")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	next := &nextHandler{}
	mw := RequireAuth(ts)(next)

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	mw.ServeHTTP(rr, r)

	if !next.called {
		t.Fatal("RequireAuth should call the next handler for a valid token")
	}
	if next.userID != "user-xyz" {
		t.Errorf("context userID = %q, want %q", next.userID, "user-xyz")
	}
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	ts := newTestTokenService(t)

	next := &nextHandler{}
	mw := RequireAuth(ts)(next)

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rr := httptest.NewRecorder()

	mw.ServeHTTP(rr, r)

	if next.called {
		t.Fatal("RequireAuth should not call the next handler without a token")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.GenerateWithDuration("user-xyz", -1)

	next := &nextHandler{}
	mw := RequireAuth(ts)(next)

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	mw.ServeHTTP(rr, r)

	if next.called {
		t.Fatal("RequireAuth should not call the next handler for an expired token")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestUnauthorized_EncodesMessageSafely(t *testing.T) {
	// Messages can come from err.Error(); quotes and backslashes in them
	// must not break the JSON body.
	rr := httptest.NewRecorder()
	unauthorized(rr, `token "sub" claim \ rejected`)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not valid JSON: %v\n%s", err, rr.Body.String())
	}
	if body.Error != "unauthorized" {
		t.Errorf("error = %q, want unauthorized", body.Error)
	}
	if body.Message != `token "sub" claim \ rejected` {
		t.Errorf("message = %q, round-trip mangled it", body.Message)
	}
}

func TestUserIDFromContext_Unset(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, ok := UserIDFromContext(r.Context()); ok {
		t.Error("UserIDFromContext should report false on a bare context")
	}
}
