package speech

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/analysis/markdown"
	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/config"
	"github.com/zhouzirui/z-wellness/backend/internal/logging"
	"github.com/zhouzirui/z-wellness/backend/internal/metrics"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/model/speech"
)

// Synthesizer 是具体 TTS 供应商的抽象。
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Service 是 TTS flow 的入口，供应商失败统一包装为 ServiceError。
type Service struct {
	synth   Synthesizer
	timeout time.Duration
	logger  zerolog.Logger
}

// NewService creates a speech service. A non-positive timeout disables the deadline.
func NewService(synth Synthesizer, timeout time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		synth:   synth,
		timeout: timeout,
		logger:  logger.With().Str("component", "speech").Str("provider", synth.Name()).Logger(),
	}
}

// NewSynthesizer 根据配置选择供应商。
func NewSynthesizer(ctx context.Context, provider string, cfg *speech.SpeechConfig, logger zerolog.Logger) (Synthesizer, error) {
	switch provider {
	case config.SpeechProviderGemini:
		return NewGeminiTTSClientFromConfig(ctx, cfg)
	case config.SpeechProviderVolcengine, "":
		return NewVolcengineTTSClient(cfg, logger), nil
	default:
		return nil, errors.New("unknown speech provider " + provider)
	}
}

// Synthesize converts text to audio. Empty text is a validation error and
// never reaches the provider; provider failures come back as ServiceError.
func (s *Service) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, apperror.Invalid("text", "is required")
	}

	spoken := markdown.PlainText(req.Text)
	if strings.TrimSpace(spoken) == "" {
		return nil, apperror.Invalid("text", "has nothing to speak")
	}
	call := *req
	call.Text = spoken

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.synth.Synthesize(ctx, &call)
	if err == nil && (resp == nil || len(resp.AudioData) == 0) {
		err = errors.New("no media returned")
	}
	elapsed := time.Since(start)
	metrics.ObserveFlow(flow.NameTTS, s.synth.Name(), elapsed, err == nil)

	log := logging.With(ctx, s.logger)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Str("text", logging.Preview(spoken, 40)).Msg("tts failed")
		return nil, apperror.Service(flow.NameTTS, err)
	}

	log.Info().Dur("elapsed", elapsed).Int("bytes", len(resp.AudioData)).Str("format", resp.Format).Msg("tts synthesized")
	return resp, nil
}

// SynthesizeDataURI returns audio as a data URI the browser can play directly.
func (s *Service) SynthesizeDataURI(ctx context.Context, sessionID, text string) (string, error) {
	resp, err := s.Synthesize(ctx, &speech.TTSRequest{SessionID: sessionID, Text: text})
	if err != nil {
		return "", err
	}
	return resp.DataURI(), nil
}
