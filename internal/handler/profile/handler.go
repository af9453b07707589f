package profile

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/pkg/utils"
)

// Store 读写用户资料。
type Store interface {
	Load(ctx context.Context) (p chat.Profile, saved bool)
	Save(ctx context.Context, p chat.Profile) error
}

// Handler 用户资料的 HTTP 处理器
type Handler struct {
	profiles Store
}

func New(profiles Store) *Handler {
	return &Handler{profiles: profiles}
}

// RegisterRoutes 注册资料相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGet)
	r.Put("/profile", h.handlePut)
}

type profileResponse struct {
	Profile chat.Profile `json:"profile"`
	Saved   bool         `json:"saved"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, saved := h.profiles.Load(r.Context())
	utils.RespondJSON(w, http.StatusOK, profileResponse{Profile: p, Saved: saved})
}

// handlePut 整体替换资料，所有字段都是可选的自由文本。
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var p chat.Profile
	if err := utils.DecodeJSON(w, r, &p); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.profiles.Save(r.Context(), p); err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, profileResponse{Profile: p, Saved: true})
}
