// Package atlas is the gateway to the external Atlas identity provider.
//
// The flow is inverted compared to a classic OAuth code exchange: the
// caller's browser completes the OAuth dance against Atlas directly, and
// this backend only ever receives the resulting bearer token. Our job is to
// forward that token to Atlas's "current user" endpoint and normalize the
// response — Atlas answering is what proves the token is genuine.
package atlas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production Atlas API root.
const DefaultBaseURL = "https://atlas.appweb.space/api/auth"

// requestTimeout bounds every call to the provider.
const requestTimeout = 10 * time.Second

// maxErrorBody caps how much of an upstream error body we retain.
const maxErrorBody = 4096

// ErrUnreachable means the provider could not be reached at all (connection
// refused, DNS failure, timeout). Handlers map this to 503 — distinct from
// an UpstreamError, where Atlas answered but with a failure status.
var ErrUnreachable = errors.New("atlas: identity provider unreachable")

// UpstreamError preserves a non-2xx provider response so the caller can pass
// the original status and message through to the client.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("atlas: upstream returned status %d: %s", e.Status, e.Body)
}

// Profile is the portion of Atlas's /user/me response we care about.
// Atlas returns a larger object — we only decode the fields we use.
type Profile struct {
	ID            int64  `json:"id"`             // Atlas's numeric user ID — stable, never changes
	Login         string `json:"login"`          // Atlas username
	Email         string `json:"email"`          // Verified contact address
	OAuthProvider string `json:"oauth_provider"` // Which upstream IdP Atlas federated (e.g. "google")
	ProjectID     string `json:"project_id"`
	Role          string `json:"role"`
	Status        string `json:"status"` // Account lifecycle flag, mirrored into the local record
}

// Client calls the Atlas API on behalf of a caller-supplied bearer token.
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a Client for the given Atlas API root. An empty baseURL
// selects DefaultBaseURL; trailing slashes are tolerated.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: requestTimeout,
	}
}

// FetchProfile forwards the caller's bearer token to Atlas's "current user"
// endpoint and returns the normalized profile.
//
// oauth2.NewClient with a StaticTokenSource gives us an *http.Client that
// attaches "Authorization: Bearer <token>" to every request — the token is
// forwarded verbatim, never logged, never stored.
//
// Error contract:
//   - Atlas answered non-2xx  → *UpstreamError carrying status and body
//   - Atlas could not be reached (or timed out) → wraps ErrUnreachable
func (c *Client) FetchProfile(ctx context.Context, bearerToken string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken})
	client := oauth2.NewClient(ctx, src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/me", nil)
	if err != nil {
		return nil, fmt.Errorf("atlas: building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("atlas: decoding /user/me response: %w", err)
	}

	if profile.ID == 0 {
		return nil, fmt.Errorf("atlas: provider returned an invalid profile (id = 0)")
	}

	return &profile, nil
}
