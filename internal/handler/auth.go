package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/avolkov/todo-atlas/internal/apperror"
	"github.com/avolkov/todo-atlas/internal/atlas"
	"github.com/avolkov/todo-atlas/internal/auth"
	"github.com/avolkov/todo-atlas/internal/service"
)

// AuthHandler owns the identity endpoints:
//
//	POST /api/register/local  → password-backed account creation
//	POST /api/register/oauth  → reconcile an external profile supplied in the body
//	POST /api/login           → local credentials → access token
//	GET  /api/me              → current user from a local token
//	GET  /proxy/identity-provider/user/me
//	                          → provider token in, reconciled user + local token out
type AuthHandler struct {
	svc    *service.AuthService
	atlas  *atlas.Client
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthHandler(
	svc *service.AuthService,
	atlasClient *atlas.Client,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		atlas:  atlasClient,
		tokens: tokens,
		logger: logger,
	}
}

type registerLocalRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type registerOAuthRequest struct {
	ExternalUserID int64  `json:"external_user_id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	OAuthProvider  string `json:"oauth_provider"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleRegisterLocal creates a password-backed account.
//
// HTTP: POST /api/register/local
func (h *AuthHandler) HandleRegisterLocal(w http.ResponseWriter, r *http.Request) {
	var req registerLocalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.svc.RegisterLocal(r.Context(), service.LocalRegistration{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleRegisterOAuth reconciles an externally-asserted identity supplied
// directly in the request body.
//
// HTTP: POST /api/register/oauth
//
// First call with a given external_user_id creates the user; repeat calls
// return the same user with username/email refreshed; an email already
// owned by a different identity is a 409.
func (h *AuthHandler) HandleRegisterOAuth(w http.ResponseWriter, r *http.Request) {
	var req registerOAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.svc.ReconcileExternal(r.Context(), service.ExternalProfile{
		ExternalUserID: req.ExternalUserID,
		Username:       req.Username,
		Email:          req.Email,
		Provider:       req.OAuthProvider,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleLogin authenticates local credentials and returns an access token.
//
// HTTP: POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
	})
}

// HandleMe returns the profile of the locally-authenticated caller.
//
// HTTP: GET /api/me (behind RequireAuth)
//
// 404 here means the token was valid but the user row has vanished — a
// token outliving its account.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't assume the wiring.
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.svc.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// providerLoginResponse is returned by the provider bridge endpoint: the
// raw provider profile, the reconciled local record, and a local token the
// caller uses from now on.
type providerLoginResponse struct {
	Profile     *atlas.Profile `json:"profile"`
	User        interface{}    `json:"user"`
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
}

// HandleProviderMe is the sole bridge between the provider's token universe
// and ours.
//
// HTTP: GET /proxy/identity-provider/user/me
// Auth: Bearer token issued by the identity provider, forwarded verbatim.
//
// Flow: forward the token to Atlas (the gateway decides 401/passthrough/
// 503), cross-check the token's subject against the returned profile,
// reconcile the profile into a local user, and answer with a freshly
// issued local token so the caller never needs the provider token again.
func (h *AuthHandler) HandleProviderMe(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		writeError(w, apperror.Unauthorized("missing or malformed authorization header"))
		return
	}

	profile, err := h.atlas.FetchProfile(r.Context(), token)
	if err != nil {
		h.logger.Warn("provider profile fetch failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	// The provider certified the token by answering; the subject claim
	// must still agree with the profile it returned.
	subject, err := h.tokens.ExternalSubject(token)
	if err != nil {
		writeError(w, err)
		return
	}
	if subject != profile.ID {
		h.logger.Warn("provider token subject does not match profile",
			slog.Int64("subject", subject),
			slog.Int64("profileID", profile.ID),
		)
		writeError(w, apperror.Unauthorized("token subject does not match provider profile"))
		return
	}

	result, err := h.svc.LoginWithProvider(r.Context(), service.ExternalProfile{
		ExternalUserID: profile.ID,
		Username:       profile.Login,
		Email:          profile.Email,
		Provider:       profile.OAuthProvider,
		Status:         profile.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, providerLoginResponse{
		Profile:     profile,
		User:        result.User,
		AccessToken: result.Token,
		TokenType:   "bearer",
	})
}
