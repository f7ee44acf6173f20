package model

import "time"

// Task is a single todo item. Every task belongs to exactly one user;
// deleting the owner cascades to the owned tasks (enforced at the schema
// level, see repository/sqlite).
type Task struct {
	ID        int64     `json:"id"         db:"id"`
	Title     string    `json:"title"      db:"title"`
	Completed bool      `json:"completed"  db:"completed"`
	UserID    string    `json:"user_id"    db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
