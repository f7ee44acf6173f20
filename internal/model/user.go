// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents an account, created either by local registration
// (username/email/password) or by the first successful login through the
// Atlas identity provider.
//
// We generate our own internal string ID (xid) rather than reusing the
// provider's numbering scheme — the internal ID is the only key the rest of
// the system (tokens, task ownership) ever references.
//
// ExternalUserID is Atlas's numeric user ID. Zero means "no external
// identity" (a locally-registered account); the repository stores it as
// NULL in that case so the UNIQUE constraint only applies when present.
//
// HashedPassword is set only for local accounts and is never serialized —
// the `json:"-"` tag keeps it out of every API response.
type User struct {
	ID             string    `json:"id"              db:"id"`
	ExternalUserID int64     `json:"external_user_id,omitempty" db:"external_user_id"`
	Username       string    `json:"username"        db:"username"`
	Email          string    `json:"email"           db:"email"`
	HashedPassword string    `json:"-"               db:"hashed_password"`
	OAuthProvider  string    `json:"oauth_provider,omitempty" db:"oauth_provider"`
	Status         string    `json:"status,omitempty" db:"status"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"      db:"updated_at"`
}

// IsExternal reports whether this account is backed by the identity provider.
func (u *User) IsExternal() bool {
	return u.ExternalUserID != 0
}
