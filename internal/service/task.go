package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avolkov/todo-atlas/internal/apperror"
	"github.com/avolkov/todo-atlas/internal/model"
	"github.com/avolkov/todo-atlas/internal/repository"
)

const (
	MaxTitleLength   = 500
	DefaultListLimit = 100
	MaxListLimit     = 100
)

// TaskUpdate carries a partial update. Nil fields are left unchanged, so a
// caller can toggle completed without resending the title.
type TaskUpdate struct {
	Title     *string
	Completed *bool
}

// TaskService enforces the task rules. Every operation takes the calling
// user's ID and only ever sees that user's rows — ownership isolation is
// not optional and not bypassable from this layer up.
type TaskService struct {
	repo   repository.TaskRepository
	logger *slog.Logger
}

func NewTaskService(repo repository.TaskRepository, logger *slog.Logger) *TaskService {
	return &TaskService{repo: repo, logger: logger}
}

// Create validates and saves a new task for the given owner.
func (s *TaskService) Create(ctx context.Context, userID, title string, completed bool) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "task title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("task title must be %d characters or less", MaxTitleLength))
	}

	task := &model.Task{
		Title:     title,
		Completed: completed,
		UserID:    userID,
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		s.logger.Error("failed to create task",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating task: %w", err)
	}

	s.logger.Info("task created",
		slog.Int64("id", task.ID),
		slog.String("userID", userID),
	)

	return task, nil
}

// List returns the owner's tasks with pagination clamped to sane bounds.
func (s *TaskService) List(ctx context.Context, userID string, limit, offset int) ([]model.Task, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tasks, err := s.repo.ListTasks(ctx, userID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list tasks",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	return tasks, nil
}

// Update applies a partial update to a task the caller owns. Fetch first so
// unspecified fields keep their values; the final write is still scoped to
// the owner, so a foreign task is NotFound at both steps.
func (s *TaskService) Update(ctx context.Context, userID string, id int64, upd TaskUpdate) (*model.Task, error) {
	task, err := s.repo.GetTask(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "task title is required")
		}
		if len(title) > MaxTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("task title must be %d characters or less", MaxTitleLength))
		}
		task.Title = title
	}
	if upd.Completed != nil {
		task.Completed = *upd.Completed
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("task updated",
		slog.Int64("id", task.ID),
		slog.String("userID", userID),
	)

	return task, nil
}

// Delete removes a task the caller owns.
func (s *TaskService) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.repo.DeleteTask(ctx, id, userID); err != nil {
		return err
	}

	s.logger.Info("task deleted",
		slog.Int64("id", id),
		slog.String("userID", userID),
	)
	return nil
}
