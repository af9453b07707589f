package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/handler/chat"
	flowHandler "github.com/zhouzirui/z-wellness/backend/internal/handler/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/handler/persona"
	"github.com/zhouzirui/z-wellness/backend/internal/handler/profile"
	"github.com/zhouzirui/z-wellness/backend/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/z-wellness/backend/internal/middleware"
	personaModel "github.com/zhouzirui/z-wellness/backend/internal/model/persona"
	aiService "github.com/zhouzirui/z-wellness/backend/internal/service/ai"
	chatService "github.com/zhouzirui/z-wellness/backend/internal/service/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/service/conversation"
	profileService "github.com/zhouzirui/z-wellness/backend/internal/service/profile"
	speechService "github.com/zhouzirui/z-wellness/backend/internal/service/speech"
	"github.com/zhouzirui/z-wellness/backend/pkg/utils"
)

// Deps 路由依赖的服务。AI 与 Speech 未配置时为 nil，对应端点返回 503。
type Deps struct {
	Personas   personaModel.Store
	Chat       *chatService.Service
	Profiles   *profileService.Service
	Controller *conversation.Controller
	AI         *aiService.Service
	Speech     *speechService.Service
	Hub        *speech.Hub
	Logger     zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)
		profile.New(deps.Profiles).RegisterRoutes(api)
		chat.New(deps.Chat, deps.Controller, deps.Logger).RegisterRoutes(api)

		if deps.AI != nil {
			flowHandler.New(deps.AI, deps.Profiles).RegisterRoutes(api)
		} else {
			api.Post("/rituals", unavailable("ai flows unavailable"))
			api.Post("/plan", unavailable("ai flows unavailable"))
		}

		if deps.Speech != nil {
			playback := speech.NewPlaybackHandler(deps.Speech, deps.Controller, deps.Hub, deps.Logger)
			speech.New(deps.Speech, playback, deps.Logger).RegisterRoutes(api)
		} else {
			api.HandleFunc("/speech/*", unavailable("speech unavailable"))
		}
	})

	return r
}

func unavailable(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusServiceUnavailable, message)
	}
}
