package health

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger is the store connectivity check behind the readiness probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db Pinger
}

func NewHandler(db Pinger) *Handler {
	return &Handler{db: db}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/healthz", h.Live)
	g.GET("/readyz", h.Ready)
}

// Live reports process liveness.
func (h *Handler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports store connectivity.
func (h *Handler) Ready(c echo.Context) error {
	if err := h.db.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
