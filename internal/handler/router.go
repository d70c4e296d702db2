package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/mcp-weather/backend/internal/config"
	"github.com/zhouzirui/mcp-weather/backend/internal/handler/mcp"
	"github.com/zhouzirui/mcp-weather/backend/internal/handler/tool"
	"github.com/zhouzirui/mcp-weather/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/mcp-weather/backend/internal/middleware"
	toolModel "github.com/zhouzirui/mcp-weather/backend/internal/model/tool"
	"github.com/zhouzirui/mcp-weather/backend/internal/service/gateway"
	"github.com/zhouzirui/mcp-weather/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.MetricsConfig, gw *gateway.Gateway, tools toolModel.Catalog, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/", handleHealth)

	if cfg.Enabled {
		r.Method(http.MethodGet, cfg.Path, metrics.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		mcp.New(gw, log).RegisterRoutes(v1)
		tool.New(tools).RegisterRoutes(v1)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": config.ServiceName,
	})
}
