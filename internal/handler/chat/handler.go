package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/analysis/markdown"
	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-wellness/backend/internal/service/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/service/conversation"
	"github.com/zhouzirui/z-wellness/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc    *chatService.Service
	controller *conversation.Controller
	logger     zerolog.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, controller *conversation.Controller, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		controller: controller,
		logger:     logger.With().Str("component", "chat_handler").Logger(),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(sr chi.Router) {
		sr.Get("/", h.handleListSessions)
		sr.Post("/", h.handleCreateSession)
		sr.Route("/{sessionID}", func(one chi.Router) {
			one.Patch("/", h.handleRenameSession)
			one.Delete("/", h.handleDeleteSession)
			one.Post("/activate", h.handleActivate)
			one.Get("/messages", h.handleListMessages)
			one.Post("/messages", h.handleSubmit)
		})
	})
}

type sessionsResponse struct {
	Sessions []chat.Session `json:"sessions"`
	ActiveID string         `json:"activeId,omitempty"`
}

// messageView 消息及其解析后的渲染块，只有助手消息会解析块。
type messageView struct {
	chat.Message
	Blocks []markdown.BlockView `json:"blocks,omitempty"`
}

type submitResponse struct {
	UserMessage messageView `json:"userMessage"`
	Reply       messageView `json:"reply"`
	Failed      bool        `json:"failed"`
	Warnings    []string    `json:"warnings,omitempty"`
}

func newMessageView(m chat.Message) messageView {
	view := messageView{Message: m}
	if m.Role == chat.RoleAssistant {
		view.Blocks = markdown.Views(m.Content)
	}
	return view
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	active, _ := h.chatSvc.ActiveID()
	utils.RespondJSON(w, http.StatusOK, sessionsResponse{
		Sessions: h.chatSvc.ListSessions(r.Context()),
		ActiveID: active,
	})
}

// handleCreateSession 创建会话并设为激活会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil && !apperror.IsPersistence(err) {
		utils.RespondErr(w, err)
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", session.ID).Msg("session created but not persisted")
	}
	_ = h.chatSvc.Activate(r.Context(), session.ID)
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title string `json:"title"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		utils.RespondError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := h.chatSvc.RenameSession(r.Context(), chi.URLParam(r, "sessionID"), title); err != nil {
		utils.RespondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSession 删除会话。持久化失败时内存状态已经生效，返回 200 并附带警告。
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	wasActive, err := h.chatSvc.DeleteSession(r.Context(), chi.URLParam(r, "sessionID"))
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	resp := map[string]any{"wasActive": wasActive}
	if err != nil {
		if !apperror.IsPersistence(err) {
			utils.RespondErr(w, err)
			return
		}
		resp["warning"] = err.Error()
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Activate(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	views := make([]messageView, 0, len(transcript))
	for _, m := range transcript {
		views = append(views, newMessageView(m))
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": views})
}

// handleSubmit 提交一次提问。问答失败时仍返回 200，Reply 为错误气泡且 failed=true。
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text    string `json:"text"`
		Image   string `json:"image"`
		Persona string `json:"persona"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.controller.Submit(r.Context(), conversation.SubmitInput{
		SessionID: chi.URLParam(r, "sessionID"),
		Text:      payload.Text,
		Image:     payload.Image,
		Persona:   payload.Persona,
	})
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	resp := submitResponse{
		UserMessage: newMessageView(result.UserMessage),
		Reply:       newMessageView(result.Reply),
		Failed:      result.Failed,
	}
	for _, warning := range result.PersistWarnings {
		resp.Warnings = append(resp.Warnings, warning.Error())
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrSessionBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, conversation.ErrEmptySubmission):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondErr(w, err)
	}
}
