package controller

import (
	"errors"
	"net/http"
	"strconv"

	httpdto "github.com/vibast-solutions/ms-go-tasks/app/dto/http"
	"github.com/vibast-solutions/ms-go-tasks/app/entity"
	"github.com/vibast-solutions/ms-go-tasks/app/middleware"
	"github.com/vibast-solutions/ms-go-tasks/app/repository"
	"github.com/vibast-solutions/ms-go-tasks/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type TaskController struct {
	taskService *service.TaskService
}

func NewTaskController(taskService *service.TaskService) *TaskController {
	return &TaskController{taskService: taskService}
}

func (c *TaskController) Create(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	var req httpdto.CreateTaskRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind create task request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	task, err := c.taskService.Create(ctx.Request().Context(), principal.ID, service.TaskParams{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Completed:   req.Completed,
	})
	if err != nil {
		return writeTaskError(ctx, err, principal.ID, "Create task")
	}

	logrus.WithFields(logrus.Fields{"user_id": principal.ID, "task_id": task.ID}).Info("Task created")
	return ctx.JSON(http.StatusCreated, taskResponse(task))
}

func (c *TaskController) Get(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	task, err := c.taskService.Get(ctx.Request().Context(), principal.ID, ctx.Param("id"))
	if err != nil {
		return writeTaskError(ctx, err, principal.ID, "Get task")
	}

	return ctx.JSON(http.StatusOK, taskResponse(task))
}

func (c *TaskController) List(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	filter := listFilterFromQuery(ctx)
	page, err := c.taskService.List(ctx.Request().Context(), principal.ID, filter)
	if err != nil {
		return writeTaskError(ctx, err, principal.ID, "List tasks")
	}

	tasks := make([]httpdto.TaskResponse, 0, len(page.Tasks))
	for _, task := range page.Tasks {
		tasks = append(tasks, taskResponse(task))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	return ctx.JSON(http.StatusOK, httpdto.TaskListResponse{
		Tasks:  tasks,
		Total:  page.Total,
		Limit:  limit,
		Offset: filter.Offset,
	})
}

func (c *TaskController) Update(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	var req httpdto.UpdateTaskRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind update task request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	completed := false
	if req.Completed != nil {
		completed = *req.Completed
	}

	task, err := c.taskService.Update(ctx.Request().Context(), principal.ID, ctx.Param("id"), service.TaskParams{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Completed:   completed,
	})
	if err != nil {
		return writeTaskError(ctx, err, principal.ID, "Update task")
	}

	logrus.WithFields(logrus.Fields{"user_id": principal.ID, "task_id": task.ID}).Info("Task updated")
	return ctx.JSON(http.StatusOK, taskResponse(task))
}

func (c *TaskController) Patch(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	var req httpdto.PatchTaskRequest
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind patch task request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	task, err := c.taskService.Patch(ctx.Request().Context(), principal.ID, ctx.Param("id"), service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Completed:   req.Completed,
	})
	if err != nil {
		return writeTaskError(ctx, err, principal.ID, "Patch task")
	}

	logrus.WithFields(logrus.Fields{"user_id": principal.ID, "task_id": task.ID}).Info("Task patched")
	return ctx.JSON(http.StatusOK, taskResponse(task))
}

func (c *TaskController) Complete(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req := httpdto.CompleteTaskRequest{Completed: true}
	if err := ctx.Bind(&req); err != nil {
		logrus.WithError(err).Debug("Failed to bind complete task request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	task, err := c.taskService.Complete(ctx.Request().Context(), principal.ID, ctx.Param("id"), req.Completed)
	if err != nil {
		return writeTaskError(ctx, err, principal.ID, "Complete task")
	}

	logrus.WithFields(logrus.Fields{"user_id": principal.ID, "task_id": task.ID}).Info("Task completion updated")
	return ctx.JSON(http.StatusOK, taskResponse(task))
}

func (c *TaskController) Delete(ctx echo.Context) error {
	principal := middleware.PrincipalFromContext(ctx)
	if principal == nil {
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	if err := c.taskService.Delete(ctx.Request().Context(), principal.ID, ctx.Param("id")); err != nil {
		return writeTaskError(ctx, err, principal.ID, "Delete task")
	}

	logrus.WithFields(logrus.Fields{"user_id": principal.ID, "task_id": ctx.Param("id")}).Info("Task deleted")
	return ctx.JSON(http.StatusOK, httpdto.MessageResponse{Message: "task deleted"})
}

func listFilterFromQuery(ctx echo.Context) repository.TaskFilter {
	filter := repository.TaskFilter{}

	switch ctx.QueryParam("status") {
	case "completed":
		completed := true
		filter.Completed = &completed
	case "pending":
		completed := false
		filter.Completed = &completed
	}

	if priority := entity.TaskPriority(ctx.QueryParam("priority")); priority.Valid() {
		filter.Priority = priority
	}

	if sort := ctx.QueryParam("sort"); sort != "" {
		if len(sort) > 1 && sort[0] == '-' {
			filter.SortBy = sort[1:]
			filter.SortDesc = true
		} else {
			filter.SortBy = sort
		}
	}

	if limit, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	return filter
}

func writeTaskError(ctx echo.Context, err error, userID uint64, operation string) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		logrus.WithField("user_id", userID).Debugf("%s validation failed", operation)
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrTaskNotFound):
		// Ownership mismatches land here too; a non-owner learns nothing.
		return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "task not found"})
	case errors.Is(err, service.ErrServiceUnavailable):
		logrus.WithError(err).WithField("user_id", userID).Errorf("%s failed: backing store unavailable", operation)
		return ctx.JSON(http.StatusServiceUnavailable, httpdto.ErrorResponse{Error: "service unavailable"})
	default:
		logrus.WithError(err).WithField("user_id", userID).Errorf("%s failed", operation)
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}
}

func taskResponse(task *entity.Task) httpdto.TaskResponse {
	resp := httpdto.TaskResponse{
		ID:        task.ID,
		UserID:    task.UserID,
		Title:     task.Title,
		Priority:  string(task.Priority),
		Completed: task.Completed,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if task.Description.Valid {
		description := task.Description.String
		resp.Description = &description
	}
	if task.DueDate.Valid {
		dueDate := task.DueDate.Time
		resp.DueDate = &dueDate
	}
	return resp
}
