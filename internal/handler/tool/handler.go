package tool

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mcp-weather/backend/internal/model/tool"
	"github.com/zhouzirui/mcp-weather/backend/pkg/utils"
)

// Handler 工具目录的HTTP处理器
type Handler struct {
	tools tool.Catalog
}

// New 创建工具目录处理器
func New(tools tool.Catalog) *Handler {
	return &Handler{tools: tools}
}

// RegisterRoutes 注册工具相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/mcp/tools", h.handleListTools)
	r.Get("/mcp/tools/{name}", h.handleGetTool)
}

func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"tools": h.tools.List()})
}

func (h *Handler) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	item, ok := h.tools.FindByName(name)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "tool not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, item)
}
