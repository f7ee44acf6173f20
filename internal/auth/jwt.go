// Package auth provides JWT issuance/validation, password hashing, and the
// authentication middleware.
//
// TWO TOKEN UNIVERSES:
// This service sees two unrelated kinds of bearer token and must never
// confuse them:
//
//  1. Local tokens — issued by this service (HS256, signed with our secret,
//     subject = internal user ID). These protect /api/me and the task routes
//     and are ALWAYS verified: signature, algorithm, issuer, expiry.
//
//  2. Provider tokens — issued by the Atlas identity provider. We never
//     verify these ourselves; we forward them to Atlas, and Atlas answering
//     its /user/me endpoint is what certifies them. The only thing we read
//     out of a provider token locally is its "sub" claim (ExternalSubject),
//     as a consistency check against the profile Atlas returned.
//
// The bridge between the two universes is the provider login endpoint: it
// takes a provider token in, and hands a freshly issued local token out, so
// the rest of the API never has to contact Atlas again.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avolkov/todo-atlas/internal/apperror"
)

// tokenTTL is the lifetime of locally-issued access tokens.
const tokenTTL = 30 * time.Minute

const issuer = "todo-atlas"

// TokenService handles JWT creation and validation for local tokens.
// It holds the HMAC secret used to sign and verify; the same secret must be
// supplied to every instance that needs to accept the tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; the internal user ID travels in the
// standard "sub" field.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a 30-minute access token whose subject is the
// given internal user ID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, tokenTTL)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests
// to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a locally-issued token and returns the user
// ID from its "sub" claim.
//
// Restricting the accepted algorithms to HS256 (jwt.WithValidMethods plus
// the method check in the keyfunc) prevents algorithm-confusion attacks
// where an attacker submits a token claiming alg "none".
//
// Failures come back as apperror.ErrUnauthorized so callers can map them to
// 401 without inspecting the jwt library's error values; an expired token is
// distinguishable by message.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperror.Unauthorized("token expired")
		}
		return "", apperror.Unauthorized("invalid token")
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", apperror.Unauthorized("invalid token claims")
	}

	if c.Subject == "" {
		return "", apperror.Unauthorized("token has no subject")
	}

	return c.Subject, nil
}

// ExternalSubject decodes a provider-issued token WITHOUT verifying its
// signature and returns the "sub" claim coerced to the integer form used by
// external user IDs.
//
// The unverified decode is a deliberate, narrow relaxation: the only caller
// is the provider login flow, which has already had Atlas certify the token
// by answering /user/me with it. Atlas puts the numeric user ID in "sub" as
// a string; a missing or non-integer subject means the token — whatever it
// is — was not minted for this provider and is rejected, not crashed on.
func (s *TokenService) ExternalSubject(tokenStr string) (int64, error) {
	var c claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, &c); err != nil {
		return 0, apperror.Unauthorized("invalid token")
	}

	if c.Subject == "" {
		return 0, apperror.Unauthorized("token has no subject")
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, apperror.Unauthorized("token subject is not a valid user id")
	}

	return id, nil
}
