// Package service contains the business logic layer: the identity resolver
// and the task rules. Handlers parse HTTP and delegate here; this package
// returns domain errors (apperror) and never touches status codes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avolkov/todo-atlas/internal/apperror"
	"github.com/avolkov/todo-atlas/internal/auth"
	"github.com/avolkov/todo-atlas/internal/model"
	"github.com/avolkov/todo-atlas/internal/repository"
)

const (
	MaxUsernameLength = 64
	MaxEmailLength    = 254
	MinPasswordLength = 6
)

// ExternalProfile is a normalized identity assertion from the Atlas
// provider, the input to reconciliation.
type ExternalProfile struct {
	ExternalUserID int64
	Username       string
	Email          string
	Provider       string
	Status         string
}

// LocalRegistration is the input for creating a password-backed account.
type LocalRegistration struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

// AuthResult bundles a user record with a freshly issued local token, so a
// handler can respond to a login in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// AuthService is the identity resolver: it maps token claims and provider
// profiles to local user records, creating or updating them as needed, and
// owns local registration and login.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all dependencies injected.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// ReconcileExternal maps a provider profile onto a local user record.
//
// The decision order is fixed and must stay fixed:
// first match on external ID (returning user — refresh username/email from
// the profile, the provider is the source of truth for those two fields),
// then check the email (taken by a different identity → Conflict, nothing
// mutated), then create. The repository runs the sequence atomically; its
// uniqueness constraints arbitrate concurrent calls.
func (s *AuthService) ReconcileExternal(ctx context.Context, profile ExternalProfile) (*model.User, error) {
	if profile.ExternalUserID == 0 {
		return nil, apperror.ValidationFailed("external_user_id", "external user id is required")
	}
	username := strings.TrimSpace(profile.Username)
	email := strings.TrimSpace(profile.Email)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	user := &model.User{
		ExternalUserID: profile.ExternalUserID,
		Username:       username,
		Email:          email,
		OAuthProvider:  profile.Provider,
		Status:         profile.Status,
	}

	if err := s.users.ReconcileExternal(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: reconciling external id %d: %w", profile.ExternalUserID, err)
	}

	s.logger.Info("external identity reconciled",
		slog.String("userID", user.ID),
		slog.Int64("externalID", user.ExternalUserID),
		slog.String("provider", user.OAuthProvider),
	)

	return user, nil
}

// LoginWithProvider reconciles a provider profile and issues a local access
// token — the combined effect is "authenticate against Atlas once, then use
// our own token for everything after".
func (s *AuthService) LoginWithProvider(ctx context.Context, profile ExternalProfile) (*AuthResult, error) {
	user, err := s.ReconcileExternal(ctx, profile)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// RegisterLocal creates a password-backed account.
//
// Order of checks matches observed behavior: password confirmation first
// (400), then email availability (409), then username availability (409).
// The plaintext password exists only on the stack here — it is hashed
// before the user struct is built and never logged.
func (s *AuthService) RegisterLocal(ctx context.Context, reg LocalRegistration) (*model.User, error) {
	username := strings.TrimSpace(reg.Username)
	email := strings.TrimSpace(reg.Email)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if email == "" || len(email) > MaxEmailLength {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if len(reg.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if reg.Password != reg.PasswordConfirm {
		return nil, apperror.ValidationFailed("password_confirm", "passwords do not match")
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict(fmt.Sprintf("email %q is already registered", email))
	}
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, apperror.Conflict(fmt.Sprintf("username %q is already taken", username))
	}

	hashed, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:       username,
		Email:          email,
		HashedPassword: hashed,
	}

	// CreateUser translates a lost uniqueness race into Conflict, so the
	// two lookups above are an early exit, not the real guard.
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %s: %w", username, err)
	}

	s.logger.Info("local user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Login authenticates a local account by username and password and issues
// an access token. A missing user and a wrong password produce the same
// Unauthorized error — no username probing.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.Unauthorized("incorrect username or password")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, apperror.Unauthorized("incorrect username or password")
	}

	// Externally-registered accounts have no password hash; they must log
	// in through the provider.
	if user.HashedPassword == "" {
		return nil, apperror.Unauthorized("incorrect username or password")
	}

	if err := s.passwords.Verify(user.HashedPassword, password); err != nil {
		return nil, apperror.Unauthorized("incorrect username or password")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for an internal ID; used by the /me handler
// after the middleware validates the token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user id is required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}
