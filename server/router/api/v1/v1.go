// Package v1 serves the session API over HTTP.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/yosefsha/myassistant/ai/assistant"
	"github.com/yosefsha/myassistant/ai/session"
)

// Assistant is the session API the handlers expose. *assistant.Service
// satisfies it.
type Assistant interface {
	StartSession(ctx context.Context, message string) (*assistant.Reply, error)
	Continue(ctx context.Context, sessionID, message string) (*assistant.Reply, error)
	SessionStats(sessionID string) (*session.Stats, error)
	EndSession(sessionID string) error
	Status() assistant.Status
}

type APIV1Service struct {
	Assistant Assistant
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

func NewAPIV1Service(a Assistant, metrics http.Handler) *APIV1Service {
	return &APIV1Service{Assistant: a, Metrics: metrics}
}

// RegisterRoutes registers the REST endpoints with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.Healthz)
	if s.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.Metrics))
	}

	api := e.Group("/api/v1", middleware.CORS())
	api.GET("/status", s.GetStatus)
	api.POST("/sessions", s.CreateSession)
	api.POST("/sessions/:id/messages", s.SendMessage)
	api.GET("/sessions/:id/stats", s.GetSessionStats)
	api.DELETE("/sessions/:id", s.DeleteSession)
}

func (*APIV1Service) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *APIV1Service) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Assistant.Status())
}
