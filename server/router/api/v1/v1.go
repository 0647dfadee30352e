package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/cortex/ai/provider"
	"github.com/hrygo/cortex/internal/profile"
	"github.com/hrygo/cortex/server/service/orchestrator"
	"github.com/hrygo/cortex/store"
)

type APIV1Service struct {
	Profile      *profile.Profile
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
}

func NewAPIV1Service(profile *profile.Profile, orch *orchestrator.Orchestrator) *APIV1Service {
	return &APIV1Service{
		Profile:      profile,
		Store:        orch.Store(),
		Orchestrator: orch,
	}
}

// RegisterRoutes mounts every REST endpoint under /api/v1.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")

	g.POST("/assistants", s.CreateAssistant)
	g.GET("/assistants", s.ListAssistants)
	g.GET("/assistants/:id", s.GetAssistant)
	g.GET("/assistants/:id/detail", s.GetAssistantDetail)
	g.PATCH("/assistants/:id", s.UpdateAssistant)
	g.DELETE("/assistants/:id", s.DeleteAssistant)
	g.POST("/assistants/:id/sync", s.SyncAssistantInstructions)
	g.GET("/assistants/:id/memories", s.ListOwnedMemories)
	g.PUT("/assistants/:id/memories", s.SetOwnedMemories)
	g.POST("/assistants/:id/memories/:memoryId", s.ConnectMemory)
	g.DELETE("/assistants/:id/memories/:memoryId", s.DisconnectMemory)
	g.GET("/assistants/:id/focused", s.ListAssistantFocusedMemories)
	g.GET("/assistants/:id/related", s.ListRelatedMemories)
	g.GET("/assistants/:id/focus-rules", s.ListFocusRules)
	g.POST("/assistants/:id/focus-rules", s.CreateFocusRule)

	g.GET("/focus-rules/:id", s.GetFocusRule)
	g.PATCH("/focus-rules/:id", s.UpdateFocusRule)
	g.DELETE("/focus-rules/:id", s.DeleteFocusRule)
	g.GET("/focus-rules/:id/memories", s.ListFocusedMemories)
	g.PUT("/focus-rules/:id/memories", s.ReplaceFocusedMemories)
	g.POST("/focus-rules/:id/memories/:memoryId", s.AddFocusedMemory)
	g.DELETE("/focus-rules/:id/memories/:memoryId", s.RemoveFocusedMemory)

	g.POST("/memories", s.CreateMemory)
	g.GET("/memories", s.ListMemories)
	g.GET("/memories/:id", s.GetMemory)
	g.PATCH("/memories/:id", s.UpdateMemory)
	g.DELETE("/memories/:id", s.DeleteMemory)
	g.PUT("/memories/:id/tags", s.UpdateMemoryTags)

	g.POST("/tags", s.UpsertTags)
	g.GET("/tags", s.ListTags)
	g.GET("/tags/entities", s.FindTaggedEntities)
	g.GET("/entities/:kind/:id/tags", s.ListEntityTags)
	g.POST("/entities/:kind/:id/tags", s.TagEntity)
	g.DELETE("/entities/:kind/:id/tags", s.UntagEntity)
	g.PUT("/entities/:kind/:id/tags/:tagId", s.AttachTag)
	g.DELETE("/entities/:kind/:id/tags/:tagId", s.DetachTag)

	g.POST("/tasks", s.CreateTask)
	g.GET("/tasks", s.ListTasks)
	g.GET("/tasks/:id", s.GetTask)
	g.PATCH("/tasks/:id", s.UpdateTask)
	g.DELETE("/tasks/:id", s.DeleteTask)

	g.POST("/feedback", s.CreateFeedback)
	g.GET("/feedback", s.ListFeedback)
	g.PATCH("/feedback/:id", s.UpdateFeedback)
	g.DELETE("/feedback/:id", s.DeleteFeedback)

	g.POST("/sessions", s.CreateSession)
	g.GET("/sessions", s.ListSessions)
	g.GET("/sessions/:id", s.GetSession)
	g.DELETE("/sessions/:id", s.DeleteSession)
	g.POST("/sessions/:id/chats", s.CreateChat)
	g.GET("/sessions/:id/chats", s.ListChats)
	g.GET("/chats/:id", s.GetChat)
	g.POST("/chats/:id/messages", s.CreateChatMessage)
	g.GET("/chats/:id/messages", s.ListChatMessages)
}

// toHTTPError maps domain errors onto status codes. Unknown errors are
// logged and reported as 500 without their message.
func toHTTPError(err error) error {
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidArgument):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, provider.ErrRemoteProvider):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	slog.Error("request failed", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}

func queryBool(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(name))
	return v
}

// queryList accepts both repeated parameters and comma separated values.
func queryList(c echo.Context, name string) []string {
	var result []string
	for _, raw := range c.QueryParams()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

func queryString(c echo.Context, name string) *string {
	if v := c.QueryParam(name); v != "" {
		return &v
	}
	return nil
}

type okResponse struct {
	OK bool `json:"ok"`
}
