package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/cortex/server/service/orchestrator"
	"github.com/hrygo/cortex/store"
)

type updateMemoryRequest struct {
	Type        *store.MemoryType `json:"type"`
	Name        *string           `json:"name"`
	Summary     *string           `json:"summary"`
	Description *string           `json:"description"`
	Data        *string           `json:"data"`
}

type tagNamesRequest struct {
	Tags []string `json:"tags"`
}

// CreateMemory stores a memory, optionally owned and focused by an assistant.
func (s *APIV1Service) CreateMemory(c echo.Context) error {
	var req orchestrator.RememberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := s.Orchestrator.Remember(c.Request().Context(), &req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

// ListMemories searches by tag, text, type, owner and a CEL filter.
func (s *APIV1Service) ListMemories(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}
	q := &orchestrator.KnowledgeQuery{
		TagNames:    queryList(c, "tag"),
		Text:        c.QueryParam("q"),
		AssistantID: c.QueryParam("assistant_id"),
		Filter:      c.QueryParam("filter"),
		Limit:       limit,
		Offset:      offset,
	}
	if t := queryString(c, "type"); t != nil {
		memoryType := store.MemoryType(*t)
		q.Type = &memoryType
	}
	memories, err := s.Orchestrator.QueryKnowledge(c.Request().Context(), q)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, memories)
}

func (s *APIV1Service) GetMemory(c echo.Context) error {
	m, err := s.Store.GetMemory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (s *APIV1Service) UpdateMemory(c echo.Context) error {
	var req updateMemoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	m, err := s.Orchestrator.UpdateMemory(c.Request().Context(), &store.UpdateMemory{
		ID:          c.Param("id"),
		Type:        req.Type,
		Name:        req.Name,
		Summary:     req.Summary,
		Description: req.Description,
		Data:        req.Data,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (s *APIV1Service) DeleteMemory(c echo.Context) error {
	if err := s.Orchestrator.ForgetMemory(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) UpdateMemoryTags(c echo.Context) error {
	var req tagNamesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ok, err := s.Store.UpdateMemoryTags(c.Request().Context(), c.Param("id"), req.Tags)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}
