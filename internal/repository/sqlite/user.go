package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/avolkov/todo-atlas/internal/apperror"
	"github.com/avolkov/todo-atlas/internal/model"
	"github.com/avolkov/todo-atlas/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, external_user_id, username, email, hashed_password, oauth_provider, status, created_at, updated_at`

// CreateUser inserts a new user, generating its internal xid.
// UNIQUE violations (username, email, or external ID already taken) come
// back as apperror.ErrConflict — under concurrent registration these
// constraints, not any in-process lock, decide who wins.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, external_user_id, username, email, hashed_password, oauth_provider, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullableExternalID(user.ExternalUserID),
		user.Username,
		user.Email,
		nullableString(user.HashedPassword),
		user.OAuthProvider,
		user.Status,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username, email, or external id already registered")
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// ReconcileExternal maps an Atlas identity onto a local row inside one
// transaction:
//
//  1. A row with this external_user_id exists → returning user. The
//     provider is the source of truth for username and email, so both are
//     overwritten (and the lifecycle status refreshed when non-empty);
//     repeat calls with
//     identical input are no-ops beyond the updated_at bump.
//  2. No external match but the email is taken → that address belongs to a
//     different identity. Fail with Conflict and mutate nothing — the
//     guard against account takeover by email collision.
//  3. Neither matches → brand-new identity, insert.
//
// The transaction makes lookup+write one logical unit, so an interrupted
// registration never leaves a partial row. Two concurrent first-time calls
// can still both reach the INSERT; the UNIQUE constraints are the backstop,
// and the loser surfaces as Conflict rather than a duplicate or a crash.
func (db *DB) ReconcileExternal(ctx context.Context, user *model.User) error {
	if user.ExternalUserID == 0 {
		return apperror.ValidationFailed("external_user_id", "external user id is required")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning reconcile transaction: %w", err)
	}
	defer tx.Rollback()

	// Step 1: returning user?
	var existing model.User
	err = scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_user_id = ?`,
		user.ExternalUserID,
	), &existing)

	switch {
	case err == nil:
		existing.Username = user.Username
		existing.Email = user.Email
		// Status is only refreshed when asserted. The body-based
		// registration path carries no status; it must not blank out the
		// one mirrored from the provider.
		if user.Status != "" {
			existing.Status = user.Status
		}
		existing.UpdatedAt = time.Now()

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET username = ?, email = ?, status = ?, updated_at = ? WHERE id = ?`,
			existing.Username, existing.Email, existing.Status, existing.UpdatedAt, existing.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict(fmt.Sprintf("email %q is already registered", user.Email))
			}
			return fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: committing reconcile: %w", err)
		}
		*user = existing
		return nil

	case err != sql.ErrNoRows:
		return fmt.Errorf("sqlite: looking up user by external id %d: %w", user.ExternalUserID, err)
	}

	// Step 2: email claimed by a different identity?
	var taken int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ?`, user.Email,
	).Scan(&taken)
	if err != nil {
		return fmt.Errorf("sqlite: checking email %q: %w", user.Email, err)
	}
	if taken > 0 {
		return apperror.Conflict(fmt.Sprintf("email %q is already registered", user.Email))
	}

	// Step 3: new identity.
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, external_user_id, username, email, hashed_password, oauth_provider, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?)`,
		user.ID,
		user.ExternalUserID,
		user.Username,
		user.Email,
		user.OAuthProvider,
		user.Status,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race to a concurrent reconciliation or registration.
			return apperror.Conflict("username, email, or external id already registered")
		}
		return fmt.Errorf("sqlite: inserting user (externalID=%d): %w", user.ExternalUserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing reconcile: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `id = ?`, id, "user", id)
}

// GetUserByUsername retrieves a user by display handle.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, `username = ?`, username, "user", username)
}

// GetUserByEmail retrieves a user by contact address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `email = ?`, email, "user", email)
}

// GetUserByExternalID retrieves a user by the provider's numeric ID.
func (db *DB) GetUserByExternalID(ctx context.Context, externalID int64) (*model.User, error) {
	return db.getUser(ctx, `external_user_id = ?`, externalID, "user", strconv.FormatInt(externalID, 10))
}

func (db *DB) getUser(ctx context.Context, where string, arg any, resource, label string) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg,
	), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound(resource, label)
		}
		return nil, fmt.Errorf("sqlite: getting %s %s: %w", resource, label, err)
	}
	return &u, nil
}

// scanUser reads one users row. external_user_id and hashed_password are
// nullable; NULL maps to the zero value.
func scanUser(row *sql.Row, u *model.User) error {
	var externalID sql.NullInt64
	var hashedPassword sql.NullString

	err := row.Scan(
		&u.ID,
		&externalID,
		&u.Username,
		&u.Email,
		&hashedPassword,
		&u.OAuthProvider,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return err
	}

	u.ExternalUserID = externalID.Int64
	u.HashedPassword = hashedPassword.String
	return nil
}

func nullableExternalID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
