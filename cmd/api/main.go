package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/config"
	"github.com/zhouzirui/z-wellness/backend/internal/handler"
	speechHandler "github.com/zhouzirui/z-wellness/backend/internal/handler/speech"
	"github.com/zhouzirui/z-wellness/backend/internal/logging"
	"github.com/zhouzirui/z-wellness/backend/internal/metrics"
	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
	"github.com/zhouzirui/z-wellness/backend/internal/service/ai"
	"github.com/zhouzirui/z-wellness/backend/internal/service/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/service/conversation"
	"github.com/zhouzirui/z-wellness/backend/internal/service/profile"
	"github.com/zhouzirui/z-wellness/backend/internal/service/speech"
	"github.com/zhouzirui/z-wellness/backend/internal/storage/kv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}
	metrics.MustRegister()

	store, err := kv.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}
	defer store.Close()

	chatService := chat.NewService(ctx, store, logger)
	if cfg.Storage.SweepOnStart {
		if n, err := chatService.SweepOrphans(ctx); err != nil {
			logger.Warn().Err(err).Msg("orphan sweep incomplete")
		} else if n > 0 {
			logger.Info().Int("removed", n).Msg("removed orphaned transcripts")
		}
	}
	profileService := profile.NewService(store, logger)

	aiService := newAIService(ctx, cfg.AI, logger)
	var answerer conversation.Answerer
	if aiService != nil {
		answerer = aiService
	}
	controller := conversation.NewController(chatService, profileService, answerer, logger)

	var speechService *speech.Service
	if cfg.Speech.Enabled {
		synth, err := speech.NewSynthesizer(ctx, cfg.Speech.Provider, cfg.Speech.ClientConfig(), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("continuing without speech")
		} else {
			speechService = speech.NewService(synth, time.Duration(cfg.Speech.Timeout)*time.Second, logger)
			logger.Info().Str("provider", synth.Name()).Msg("speech service initialized")
		}
	} else {
		logger.Info().Str("provider", cfg.Speech.Provider).Msg("语音服务凭证未配置，跳过语音功能初始化")
	}

	hub := speechHandler.NewHub()
	router := handler.NewRouter(handler.Deps{
		Personas:   persona.NewMemoryStore(persona.Seed()),
		Chat:       chatService,
		Profiles:   profileService,
		Controller: controller,
		AI:         aiService,
		Speech:     speechService,
		Hub:        hub,
		Logger:     logger,
	})

	startServer(ctx, cfg.Server, router, hub, logger)
}

// newAIService 初始化失败时返回 nil，服务仍可启动，问答会得到错误气泡。
func newAIService(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) *ai.Service {
	if !cfg.Enabled() {
		logger.Info().Str("provider", cfg.Provider).Msg("AI 凭证未配置，跳过 AI 功能初始化")
		return nil
	}

	prompts, err := ai.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.PromptsFile).Msg("failed to load persona prompts, using built-in catalogue")
		prompts = ai.DefaultPrompts()
	}

	flows, err := ai.NewFlowsFromConfig(ctx, cfg, prompts)
	if err != nil {
		logger.Warn().Err(err).Msg("continuing without AI functionality")
		return nil
	}
	logger.Info().Str("provider", cfg.Provider).Msg("AI service initialized")
	return ai.NewService(cfg.Provider, flows, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, hub *speechHandler.Hub, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Shutdown 不会等待被劫持的 websocket 连接。
	srv.RegisterOnShutdown(hub.CloseAll)

	logger.Info().Str("addr", addr).Msg("wellness backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
