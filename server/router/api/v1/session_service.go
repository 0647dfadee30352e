package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/cortex/store"
)

type createSessionRequest struct {
	Name        string `json:"name"`
	AssistantID string `json:"assistant_id"`
}

type createChatRequest struct {
	Title string `json:"title"`
}

type createChatMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *APIV1Service) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := s.Store.CreateSession(c.Request().Context(), &store.Session{Name: req.Name, AssistantID: req.AssistantID})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (s *APIV1Service) ListSessions(c echo.Context) error {
	list, err := s.Store.ListSessions(c.Request().Context(), &store.FindSession{AssistantID: queryString(c, "assistant_id")})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *APIV1Service) GetSession(c echo.Context) error {
	session, err := s.Store.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession removes the session with its chats and message memories.
func (s *APIV1Service) DeleteSession(c echo.Context) error {
	if err := s.Store.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chat, err := s.Store.CreateChat(c.Request().Context(), &store.Chat{SessionID: c.Param("id"), Title: req.Title})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, chat)
}

func (s *APIV1Service) ListChats(c echo.Context) error {
	sessionID := c.Param("id")
	list, err := s.Store.ListChats(c.Request().Context(), &store.FindChat{SessionID: &sessionID})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *APIV1Service) GetChat(c echo.Context) error {
	chat, err := s.Store.GetChat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

func (s *APIV1Service) CreateChatMessage(c echo.Context) error {
	var req createChatMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, err := s.Orchestrator.RecordChatMessage(c.Request().Context(), c.Param("id"), req.Role, req.Content)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// ListChatMessages returns the newest messages, oldest first, when limit is set.
func (s *APIV1Service) ListChatMessages(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	list, err := s.Store.ListChatMessages(c.Request().Context(), &store.FindChatMessage{ChatID: c.Param("id"), Limit: limit})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, list)
}
