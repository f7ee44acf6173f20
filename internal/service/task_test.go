package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/todo-atlas/internal/apperror"
	"github.com/avolkov/todo-atlas/internal/model"
	"github.com/avolkov/todo-atlas/internal/repository"
)

// fakeTaskRepo is an in-memory repository.TaskRepository. It honors owner
// scoping the same way the real store does: a foreign task is NotFound.
type fakeTaskRepo struct {
	tasks  map[int64]*model.Task
	nextID int64

	// last ListOptions received, so tests can assert clamping
	lastOpts repository.ListOptions
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[int64]*model.Task), nextID: 1}
}

func (f *fakeTaskRepo) CreateTask(ctx context.Context, task *model.Task) error {
	task.ID = f.nextID
	f.nextID++
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTaskRepo) GetTask(ctx context.Context, id int64, userID string) (*model.Task, error) {
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return nil, apperror.NotFound("task", "x")
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTaskRepo) ListTasks(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Task, error) {
	f.lastOpts = opts
	out := make([]model.Task, 0)
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) UpdateTask(ctx context.Context, task *model.Task) error {
	t, ok := f.tasks[task.ID]
	if !ok || t.UserID != task.UserID {
		return apperror.NotFound("task", "x")
	}
	*t = *task
	return nil
}

func (f *fakeTaskRepo) DeleteTask(ctx context.Context, id int64, userID string) error {
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return apperror.NotFound("task", "x")
	}
	delete(f.tasks, id)
	return nil
}

func newTestTaskService(repo *fakeTaskRepo) *TaskService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewTaskService(repo, logger)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestTaskCreate_TrimsTitle(t *testing.T) {
	svc := newTestTaskService(newFakeTaskRepo())

	task, err := svc.Create(context.Background(), "user-1", "  buy milk  ", false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if task.Title != "buy milk" {
		t.Errorf("Title = %q, want trimmed %q", task.Title, "buy milk")
	}
	if task.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", task.UserID, "user-1")
	}
}

func TestTaskCreate_TitleRequired(t *testing.T) {
	svc := newTestTaskService(newFakeTaskRepo())

	for _, title := range []string{"", "   "} {
		if _, err := svc.Create(context.Background(), "user-1", title, false); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("Create(%q) error = %v, want ErrValidation", title, err)
		}
	}
}

func TestTaskCreate_TitleTooLong(t *testing.T) {
	svc := newTestTaskService(newFakeTaskRepo())

	_, err := svc.Create(context.Background(), "user-1", strings.Repeat("a", MaxTitleLength+1), false)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Create() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestTaskList_ClampsPagination(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTestTaskService(repo)

	tests := []struct {
		name               string
		limit, offset      int
		wantLimit, wantOff int
	}{
		{"defaults applied", 0, 0, DefaultListLimit, 0},
		{"negative offset clamped", 10, -5, 10, 0},
		{"limit capped", MaxListLimit + 50, 0, MaxListLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.List(context.Background(), "user-1", tt.limit, tt.offset); err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if repo.lastOpts.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", repo.lastOpts.Limit, tt.wantLimit)
			}
			if repo.lastOpts.Offset != tt.wantOff {
				t.Errorf("Offset = %d, want %d", repo.lastOpts.Offset, tt.wantOff)
			}
		})
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestTaskUpdate_PartialFields(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTestTaskService(repo)

	task, err := svc.Create(context.Background(), "user-1", "buy milk", false)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Only the completed flag — title must survive.
	updated, err := svc.Update(context.Background(), "user-1", task.ID, TaskUpdate{Completed: boolPtr(true)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "buy milk" {
		t.Errorf("Title = %q, partial update clobbered it", updated.Title)
	}
	if !updated.Completed {
		t.Error("Completed = false, want true")
	}

	// Only the title — completed must survive.
	updated, err = svc.Update(context.Background(), "user-1", task.ID, TaskUpdate{Title: strPtr("buy oat milk")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "buy oat milk" {
		t.Errorf("Title = %q, want %q", updated.Title, "buy oat milk")
	}
	if !updated.Completed {
		t.Error("Completed flag was reset by a title-only update")
	}
}

func TestTaskUpdate_RejectsEmptyTitle(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTestTaskService(repo)

	task, _ := svc.Create(context.Background(), "user-1", "buy milk", false)

	_, err := svc.Update(context.Background(), "user-1", task.ID, TaskUpdate{Title: strPtr("   ")})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update() error = %v, want ErrValidation", err)
	}
}

func TestTaskUpdate_ForeignTaskIsNotFound(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTestTaskService(repo)

	task, _ := svc.Create(context.Background(), "user-1", "buy milk", false)

	_, err := svc.Update(context.Background(), "user-2", task.ID, TaskUpdate{Completed: boolPtr(true)})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() as non-owner: error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestTaskDelete(t *testing.T) {
	repo := newFakeTaskRepo()
	svc := newTestTaskService(repo)

	task, _ := svc.Create(context.Background(), "user-1", "buy milk", false)

	if err := svc.Delete(context.Background(), "user-1", task.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := svc.Delete(context.Background(), "user-1", task.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
