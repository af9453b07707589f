package speech

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
	"github.com/zhouzirui/z-wellness/backend/internal/model/speech"
	"github.com/zhouzirui/z-wellness/backend/pkg/utils"
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	playback  *PlaybackHandler
	logger    zerolog.Logger
}

// New 创建语音处理器。playback 为 nil 时不注册播放 websocket。
func New(speechSvc SpeechService, playback *PlaybackHandler, logger zerolog.Logger) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		playback:  playback,
		logger:    logger.With().Str("component", "speech_handler").Logger(),
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)

		if h.playback != nil {
			speechRouter.Get("/playback/ws", h.playback.ServeHTTP)
		} else {
			speechRouter.Get("/playback/ws", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusNotImplemented, "playback websocket not available")
			})
		}
	})
}

type synthesizeRequest struct {
	speech.TTSRequest
	// Persona 未指定 voice 时按 persona 选择音色。
	Persona string `json:"persona,omitempty"`
}

// handleSynthesize 处理文本转语音请求。默认直接返回音频字节，
// ?format=datauri 时返回包含 data URI 的 JSON。
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Voice) == "" && req.Persona != "" {
		id, err := persona.Parse(req.Persona)
		if err != nil {
			utils.RespondErr(w, err)
			return
		}
		req.Voice = string(id)
	}

	resp, err := h.speechSvc.Synthesize(r.Context(), &req.TTSRequest)
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	if r.URL.Query().Get("format") == "datauri" {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"audio":     resp.DataURI(),
			"format":    resp.Format,
			"duration":  resp.Duration,
			"requestId": resp.RequestID,
		})
		return
	}

	w.Header().Set("Content-Type", resp.MimeType())
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "inline; filename=speech."+resp.Format)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write audio response")
	}
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "healthy",
		"service": "speech",
	}
	if h.playback != nil {
		status["playbackConnections"] = h.playback.hub.Len()
	}
	utils.RespondJSON(w, http.StatusOK, status)
}
