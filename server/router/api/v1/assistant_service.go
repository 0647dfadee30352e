package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/cortex/server/service/assistant"
	"github.com/hrygo/cortex/store"
)

type createAssistantResponse struct {
	ID string `json:"id"`
}

type memoryIDsRequest struct {
	MemoryIDs []string `json:"memory_ids"`
}

func (s *APIV1Service) CreateAssistant(c echo.Context) error {
	var req assistant.CreateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := s.Orchestrator.Assistants().Create(c.Request().Context(), &req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, createAssistantResponse{ID: id})
}

func (s *APIV1Service) ListAssistants(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}
	req := &assistant.ListRequest{
		IncludeInactive: queryBool(c, "include_inactive"),
		TagNames:        queryList(c, "tag"),
		Limit:           limit,
		Offset:          offset,
	}
	if t := queryString(c, "type"); t != nil {
		assistantType := store.AssistantType(*t)
		req.Type = &assistantType
	}
	list, err := s.Orchestrator.Assistants().List(c.Request().Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *APIV1Service) GetAssistant(c echo.Context) error {
	a, err := s.Orchestrator.Assistants().Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *APIV1Service) GetAssistantDetail(c echo.Context) error {
	detail, err := s.Orchestrator.Assistants().Detail(c.Request().Context(), c.Param("id"), queryBool(c, "remote"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *APIV1Service) UpdateAssistant(c echo.Context) error {
	var req assistant.UpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ok, err := s.Orchestrator.Assistants().Update(c.Request().Context(), c.Param("id"), &req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

// DeleteAssistant soft-deletes; the row stays readable.
func (s *APIV1Service) DeleteAssistant(c echo.Context) error {
	ok, err := s.Orchestrator.Assistants().Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

func (s *APIV1Service) SyncAssistantInstructions(c echo.Context) error {
	text, err := s.Orchestrator.Assistants().SyncInstructions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"instructions": text})
}

func (s *APIV1Service) ListOwnedMemories(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.Store.GetAssistantByID(ctx, id); err != nil {
		return toHTTPError(err)
	}
	memories, err := s.Store.ListMemoriesByAssistant(ctx, id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, memories)
}

func (s *APIV1Service) SetOwnedMemories(c echo.Context) error {
	var req memoryIDsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ok, err := s.Store.SetOwnedMemories(c.Request().Context(), c.Param("id"), req.MemoryIDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

func (s *APIV1Service) ConnectMemory(c echo.Context) error {
	ok, err := s.Orchestrator.ConnectMemory(c.Request().Context(), c.Param("id"), c.Param("memoryId"), queryBool(c, "focus"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

func (s *APIV1Service) DisconnectMemory(c echo.Context) error {
	ok, err := s.Orchestrator.DisconnectMemory(c.Request().Context(), c.Param("id"), c.Param("memoryId"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: ok})
}

func (s *APIV1Service) ListAssistantFocusedMemories(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	memories, err := s.Orchestrator.Focus().GetFocusedMemoriesByAssistantID(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, memories)
}

func (s *APIV1Service) ListRelatedMemories(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	memories, err := s.Orchestrator.RelatedMemories(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, memories)
}
