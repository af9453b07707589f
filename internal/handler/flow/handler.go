package flow

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/z-wellness/backend/internal/analysis/markdown"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/pkg/utils"
)

// Generator 仪式与每日计划两个 flow。
type Generator interface {
	GenerateRitual(ctx context.Context, req flow.RitualRequest) (*flow.RitualResponse, error)
	GenerateDailyPlan(ctx context.Context, req flow.PlanRequest) (*flow.PlanResponse, error)
}

type ProfileSource interface {
	Load(ctx context.Context) (p chat.Profile, saved bool)
}

// Handler 仪式生成与每日计划的HTTP处理器
type Handler struct {
	flows    Generator
	profiles ProfileSource
}

func New(flows Generator, profiles ProfileSource) *Handler {
	return &Handler{flows: flows, profiles: profiles}
}

// RegisterRoutes 注册 flow 相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/rituals", h.handleRitual)
	r.Post("/plan", h.handlePlan)
}

type ritualResponse struct {
	*flow.RitualResponse
	Blocks []markdown.BlockView `json:"blocks"`
}

func (h *Handler) handleRitual(w http.ResponseWriter, r *http.Request) {
	var req flow.RitualRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.flows.GenerateRitual(r.Context(), req)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ritualResponse{
		RitualResponse: resp,
		Blocks:         markdown.Views(resp.RitualDescription),
	})
}

// handlePlan 基于用户资料生成每日计划，请求体中的字段会覆盖资料中的对应项。
func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	var override flow.PlanRequest
	if err := utils.DecodeJSON(w, r, &override); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, _ := h.profiles.Load(r.Context())
	req := flow.PlanRequest{
		HealthGoals: firstNonEmpty(override.HealthGoals, p.HealthGoals),
		Preferences: firstNonEmpty(override.Preferences, p.Preferences),
		Lifestyle:   firstNonEmpty(override.Lifestyle, p.Lifestyle),
	}

	resp, err := h.flows.GenerateDailyPlan(r.Context(), req)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
