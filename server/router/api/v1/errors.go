package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yosefsha/myassistant/ai/assistant"
	"github.com/yosefsha/myassistant/ai/generator"
	"github.com/yosefsha/myassistant/ai/session"
)

// GenerationFailure is returned when routing succeeded but the reply could
// not be generated. The decision is still reported.
type GenerationFailure struct {
	Message string           `json:"message"`
	Kind    string           `json:"kind"`
	Reply   *assistant.Reply `json:"reply"`
}

func replyError(c echo.Context, reply *assistant.Reply, err error) error {
	var gerr *generator.GenerationError
	if errors.As(err, &gerr) && reply != nil {
		return c.JSON(http.StatusBadGateway, GenerationFailure{
			Message: "reply generation failed",
			Kind:    gerr.Kind.String(),
			Reply:   reply,
		})
	}
	return toHTTPError(err)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found").SetInternal(err)
	case errors.Is(err, assistant.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, "message is empty").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to handle message").SetInternal(err)
	}
}
