package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/cortex/store"
)

type createFocusRuleRequest struct {
	Name       string `json:"name"`
	MaxResults *int   `json:"max_results"`
}

type updateFocusRuleRequest struct {
	MaxResults *int `json:"max_results"`
}

func (s *APIV1Service) ListFocusRules(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.Store.GetAssistantByID(ctx, id); err != nil {
		return toHTTPError(err)
	}
	rules, err := s.Orchestrator.Focus().ListFocusRules(ctx, id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

func (s *APIV1Service) CreateFocusRule(c echo.Context) error {
	var req createFocusRuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return toHTTPError(errors.Wrap(store.ErrInvalidArgument, "focus rule name is required"))
	}
	rule, err := s.Orchestrator.Focus().CreateFocusRule(c.Request().Context(), c.Param("id"), req.Name, req.MaxResults)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, rule)
}

func (s *APIV1Service) GetFocusRule(c echo.Context) error {
	rule, err := s.Orchestrator.Focus().GetFocusRule(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, rule)
}

// UpdateFocusRule changes the capacity, evicting the oldest members that no
// longer fit.
func (s *APIV1Service) UpdateFocusRule(c echo.Context) error {
	var req updateFocusRuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.MaxResults == nil {
		return toHTTPError(errors.Wrap(store.ErrInvalidArgument, "max_results is required"))
	}
	rule, err := s.Orchestrator.ResizeFocus(c.Request().Context(), c.Param("id"), *req.MaxResults)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, rule)
}

func (s *APIV1Service) DeleteFocusRule(c echo.Context) error {
	if err := s.Orchestrator.Focus().DeleteFocusRule(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) ListFocusedMemories(c echo.Context) error {
	memories, err := s.Orchestrator.Focus().GetFocusedMemories(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, memories)
}

func (s *APIV1Service) ReplaceFocusedMemories(c echo.Context) error {
	var req memoryIDsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ok, err := s.Orchestrator.ReplaceFocus(c.Request().Context(), c.Param("id"), req.MemoryIDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

func (s *APIV1Service) AddFocusedMemory(c echo.Context) error {
	ok, err := s.Orchestrator.FocusMemory(c.Request().Context(), c.Param("id"), c.Param("memoryId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

func (s *APIV1Service) RemoveFocusedMemory(c echo.Context) error {
	ok, err := s.Orchestrator.UnfocusMemory(c.Request().Context(), c.Param("id"), c.Param("memoryId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}
