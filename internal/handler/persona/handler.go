package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
	"github.com/zhouzirui/z-wellness/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Get("/personas/{personaID}", h.handleGetPersona)
}

type listResponse struct {
	Personas       []persona.Persona `json:"personas"`
	Default        persona.ID        `json:"default"`
	ExamplePrompts []string          `json:"examplePrompts"`
}

// handleListPersonas 列出所有 persona 以及欢迎页的示例问题
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, listResponse{
		Personas:       h.personas.List(),
		Default:        persona.Default,
		ExamplePrompts: persona.ExamplePrompts(),
	})
}

// handleGetPersona 返回单个 persona，选择器规则与提问时一致，空值回落到默认 persona。
func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	id, err := persona.Parse(chi.URLParam(r, "personaID"))
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	p, ok := h.personas.FindByID(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
