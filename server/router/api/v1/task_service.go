package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/cortex/server/service/orchestrator"
	"github.com/hrygo/cortex/store"
)

type createTaskRequest struct {
	Description string           `json:"description"`
	Status      store.TaskStatus `json:"status"`
	AssistantID string           `json:"assistant_id"`
	Tags        []string         `json:"tags"`
}

type updateTaskRequest struct {
	Description       *string           `json:"description"`
	Status            *store.TaskStatus `json:"status"`
	AssignedAssistant *string           `json:"assigned_assistant"`
}

// CreateTask delegates to the assistant when one is named.
func (s *APIV1Service) CreateTask(c echo.Context) error {
	var req createTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if req.AssistantID != "" {
		task, err := s.Orchestrator.DelegateTask(ctx, &orchestrator.DelegateRequest{
			AssistantID: req.AssistantID,
			Description: req.Description,
			Tags:        req.Tags,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusCreated, task)
	}

	task, err := s.Store.CreateTask(ctx, &store.Task{Description: req.Description, Status: req.Status})
	if err != nil {
		return toHTTPError(err)
	}
	if len(req.Tags) > 0 {
		if err := s.Store.SetEntityTags(ctx, store.EntityRef{ID: task.ID, Kind: store.EntityTask}, req.Tags); err != nil {
			return toHTTPError(err)
		}
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *APIV1Service) ListTasks(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}
	find := &store.FindTask{
		AssignedAssistant: queryString(c, "assistant"),
		TagNames:          store.NormalizeTagNames(queryList(c, "tag")),
		Limit:             limit,
		Offset:            offset,
	}
	if status := queryString(c, "status"); status != nil {
		taskStatus := store.TaskStatus(*status)
		find.Status = &taskStatus
	}
	tasks, err := s.Store.ListTasks(c.Request().Context(), find)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *APIV1Service) GetTask(c echo.Context) error {
	task, err := s.Store.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *APIV1Service) UpdateTask(c echo.Context) error {
	var req updateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	task, err := s.Store.UpdateTask(c.Request().Context(), &store.UpdateTask{
		ID:                c.Param("id"),
		Description:       req.Description,
		Status:            req.Status,
		AssignedAssistant: req.AssignedAssistant,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *APIV1Service) DeleteTask(c echo.Context) error {
	if err := s.Store.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
