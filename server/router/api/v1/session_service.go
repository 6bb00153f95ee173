package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MessageRequest is the body of the message endpoints.
type MessageRequest struct {
	Message string `json:"message"`
}

func (s *APIV1Service) CreateSession(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	reply, err := s.Assistant.StartSession(c.Request().Context(), req.Message)
	if err != nil {
		return replyError(c, reply, err)
	}
	return c.JSON(http.StatusCreated, reply)
}

func (s *APIV1Service) SendMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	reply, err := s.Assistant.Continue(c.Request().Context(), c.Param("id"), req.Message)
	if err != nil {
		return replyError(c, reply, err)
	}
	return c.JSON(http.StatusOK, reply)
}

func (s *APIV1Service) GetSessionStats(c echo.Context) error {
	stats, err := s.Assistant.SessionStats(c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *APIV1Service) DeleteSession(c echo.Context) error {
	if err := s.Assistant.EndSession(c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
