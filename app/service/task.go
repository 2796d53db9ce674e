package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-tasks/app/entity"
	"github.com/vibast-solutions/ms-go-tasks/app/repository"
	"github.com/vibast-solutions/ms-go-tasks/config"

	"github.com/google/uuid"
)

const maxTitleLength = 255

type TaskService struct {
	taskRepo *repository.TaskRepository
	cfg      *config.Config
}

func NewTaskService(taskRepo *repository.TaskRepository, cfg *config.Config) *TaskService {
	return &TaskService{taskRepo: taskRepo, cfg: cfg}
}

type TaskParams struct {
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    string
	Completed   bool
}

type TaskPage struct {
	Tasks []*entity.Task
	Total int64
}

func (s *TaskService) Create(ctx context.Context, principalID uint64, params TaskParams) (*entity.Task, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleLength)
	}

	priority := entity.PriorityMedium
	if params.Priority != "" {
		priority = entity.TaskPriority(params.Priority)
		if !priority.Valid() {
			return nil, fmt.Errorf("%w: priority must be low, medium or high", ErrInvalidInput)
		}
	}

	now := time.Now()
	task := &entity.Task{
		ID:          uuid.New().String(),
		UserID:      principalID,
		Title:       title,
		Description: toNullString(params.Description),
		DueDate:     toNullTime(params.DueDate),
		Priority:    priority,
		Completed:   params.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.taskRepo.Create(storeCtx, task); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, principalID uint64, taskID string) (*entity.Task, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	return s.findOwned(storeCtx, principalID, taskID)
}

func (s *TaskService) List(ctx context.Context, principalID uint64, filter repository.TaskFilter) (*TaskPage, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	tasks, err := s.taskRepo.ListByUser(storeCtx, principalID, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	total, err := s.taskRepo.CountByUser(storeCtx, principalID, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	return &TaskPage{Tasks: tasks, Total: total}, nil
}

func (s *TaskService) Update(ctx context.Context, principalID uint64, taskID string, params TaskParams) (*entity.Task, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleLength)
	}
	priority := entity.PriorityMedium
	if params.Priority != "" {
		priority = entity.TaskPriority(params.Priority)
		if !priority.Valid() {
			return nil, fmt.Errorf("%w: priority must be low, medium or high", ErrInvalidInput)
		}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	task, err := s.findOwned(storeCtx, principalID, taskID)
	if err != nil {
		return nil, err
	}

	task.Title = title
	task.Description = toNullString(params.Description)
	task.DueDate = toNullTime(params.DueDate)
	task.Priority = priority
	task.Completed = params.Completed

	if err := s.taskRepo.Update(storeCtx, task); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	return task, nil
}

// TaskPatch is a partial update; nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Priority    *string
	Completed   *bool
}

func (s *TaskService) Patch(ctx context.Context, principalID uint64, taskID string, patch TaskPatch) (*entity.Task, error) {
	var title string
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if title == "" || len(title) > maxTitleLength {
			return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleLength)
		}
	}
	var priority entity.TaskPriority
	if patch.Priority != nil {
		priority = entity.TaskPriority(*patch.Priority)
		if !priority.Valid() {
			return nil, fmt.Errorf("%w: priority must be low, medium or high", ErrInvalidInput)
		}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	task, err := s.findOwned(storeCtx, principalID, taskID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = toNullString(patch.Description)
	}
	if patch.DueDate != nil {
		task.DueDate = toNullTime(patch.DueDate)
	}
	if patch.Priority != nil {
		task.Priority = priority
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}

	if err := s.taskRepo.Update(storeCtx, task); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	return task, nil
}

func (s *TaskService) Complete(ctx context.Context, principalID uint64, taskID string, completed bool) (*entity.Task, error) {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	task, err := s.findOwned(storeCtx, principalID, taskID)
	if err != nil {
		return nil, err
	}

	task.Completed = completed
	if err := s.taskRepo.Update(storeCtx, task); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, principalID uint64, taskID string) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if _, err := s.findOwned(storeCtx, principalID, taskID); err != nil {
		return err
	}

	rows, err := s.taskRepo.Delete(storeCtx, taskID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// findOwned loads a task and applies the ownership rule. A task owned by
// someone else yields ErrTaskNotFound, indistinguishable from an absent one.
func (s *TaskService) findOwned(ctx context.Context, principalID uint64, taskID string) (*entity.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err.Error())
	}
	if task == nil || !OwnsResource(task.UserID, principalID) {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func toNullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func toNullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
