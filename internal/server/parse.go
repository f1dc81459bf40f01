package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/searchchat/internal/message"
)

// ParseHandler exposes the response parser so clients that cannot run it
// locally get the same display split.
type ParseHandler struct {
	Parser *message.Parser
}

type parseRequest struct {
	Content string `json:"content"`
	Legacy  bool   `json:"legacy"`
}

func (h *ParseHandler) Register(g *echo.Group) {
	g.POST("/parse", h.parse)
}

func (h *ParseHandler) parse(c echo.Context) error {
	var req parseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Legacy {
		return c.JSON(http.StatusOK, message.ParseLegacy(req.Content))
	}
	p := h.Parser
	if p == nil {
		return c.JSON(http.StatusOK, message.Parse(req.Content))
	}
	return c.JSON(http.StatusOK, p.Parse(req.Content))
}
