package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/searchchat/internal/agent/core"
	"github.com/mohammad-safakhou/searchchat/internal/agent/telemetry"
	"github.com/mohammad-safakhou/searchchat/internal/message"
)

// DefaultMaxRequestDuration bounds a chat request end to end.
const DefaultMaxRequestDuration = 300 * time.Second

// ChatRunner streams one assistant response.
type ChatRunner interface {
	Run(ctx context.Context, history []message.Turn, sink core.Sink) (core.Result, error)
}

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	Runner      ChatRunner
	Telemetry   *telemetry.Telemetry
	Logger      *logrus.Entry
	MaxDuration time.Duration
}

type chatRequest struct {
	Messages []message.Turn `json:"messages"`
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

// chat validates the history, then streams the response as data stream
// frames. Once streaming has started failures are reported in-band.
func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	history, err := message.PrepareHistory(req.Messages)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	maxDuration := h.MaxDuration
	if maxDuration <= 0 {
		maxDuration = DefaultMaxRequestDuration
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), maxDuration)
	defer cancel()

	w := NewDataStreamWriter(c.Response())
	w.WriteHeaders()

	if h.Telemetry != nil {
		h.Telemetry.ChatStarted()
	}
	res, err := h.Runner.Run(ctx, history, w)
	if h.Telemetry != nil {
		h.Telemetry.ChatFinished(err)
	}
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("steps", res.Steps).Warn("chat stream ended with error")
		}
		_ = w.Error(core.GenerationFailureMessage)
	}
	return nil
}
