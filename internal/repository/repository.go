package repository

import (
	"context"

	"github.com/avolkov/todo-atlas/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository is the storage contract for user records.
//
// ReconcileExternal is the one non-obvious operation: it runs the whole
// lookup-or-create sequence for an external identity as a single atomic
// unit, so an interrupted registration can never leave a half-created row
// and concurrent first logins cannot both insert.
type UserRepository interface {
	// CreateUser inserts a new user, generating its internal ID.
	// Returns apperror.ErrConflict if username, email, or external ID
	// collide with an existing row.
	CreateUser(ctx context.Context, user *model.User) error

	// ReconcileExternal maps an external identity onto a local row:
	// update the row matching user.ExternalUserID if one exists, fail with
	// apperror.ErrConflict if the email belongs to a different identity,
	// otherwise insert. The passed struct is populated with the canonical
	// stored record either way.
	ReconcileExternal(ctx context.Context, user *model.User) error

	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID int64) (*model.User, error)
}

// TaskRepository is the storage contract for tasks. Every read and write is
// scoped to an owner — a task another user owns is indistinguishable from a
// task that does not exist.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id int64, userID string) (*model.Task, error)
	ListTasks(ctx context.Context, userID string, opts ListOptions) ([]model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id int64, userID string) error
}
