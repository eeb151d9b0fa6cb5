package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	middlewarePkg "github.com/zhouzirui/speaco/backend/internal/middleware"
	chatService "github.com/zhouzirui/speaco/backend/internal/service/chat"
	"github.com/zhouzirui/speaco/backend/pkg/utils"
)

// StatsProvider exposes engine counters to the health endpoint.
type StatsProvider interface {
	Stats() chatService.Stats
}

type healthResponse struct {
	Status string `json:"status"`
	chatService.Stats
}

// NewRouter wires the WebSocket endpoint and the health check.
func NewRouter(stats StatsProvider, ws http.Handler, wsPath string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, healthResponse{Status: "ok", Stats: stats.Stats()})
	})

	r.Method(http.MethodGet, wsPath, ws)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})

	return r
}
