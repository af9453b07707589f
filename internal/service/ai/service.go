package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/logging"
	"github.com/zhouzirui/z-wellness/backend/internal/metrics"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
)

// Flows 是三个文本类 AI flow 的统一接口，由具体 provider 实现。
type Flows interface {
	AnswerQuestion(ctx context.Context, req flow.AnswerRequest) (*flow.AnswerResponse, error)
	GenerateRitual(ctx context.Context, req flow.RitualRequest) (*flow.RitualResponse, error)
	GenerateDailyPlan(ctx context.Context, req flow.PlanRequest) (*flow.PlanResponse, error)
}

var errEmptyResponse = errors.New("empty response")

// Service 在 provider 外层做请求校验、响应校验、指标与日志，
// 并把所有 provider 失败统一包装成 ServiceError。
type Service struct {
	provider string
	flows    Flows
	logger   zerolog.Logger
}

var _ Flows = (*Service)(nil)

func NewService(provider string, flows Flows, logger zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		flows:    flows,
		logger:   logger.With().Str("component", "ai").Str("provider", provider).Logger(),
	}
}

// Provider returns the configured provider name.
func (s *Service) Provider() string {
	return s.provider
}

func (s *Service) AnswerQuestion(ctx context.Context, req flow.AnswerRequest) (*flow.AnswerResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.flows.AnswerQuestion(ctx, req)
	if err == nil {
		if resp == nil {
			err = errEmptyResponse
		} else {
			err = resp.Validate()
		}
	}
	if err := s.finish(ctx, flow.NameQA, start, err); err != nil {
		return nil, err
	}

	log := logging.With(ctx, s.logger)
	log.Info().
		Str("persona", string(req.Persona)).
		Int("history", len(req.History)).
		Bool("image", req.ImageDataURI != "").
		Int("answer_len", len(resp.Answer)).
		Msg("answered question")
	return resp, nil
}

func (s *Service) GenerateRitual(ctx context.Context, req flow.RitualRequest) (*flow.RitualResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.flows.GenerateRitual(ctx, req)
	if err == nil {
		if resp == nil {
			err = errEmptyResponse
		} else {
			err = resp.Validate()
		}
	}
	if err := s.finish(ctx, flow.NameRitual, start, err); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) GenerateDailyPlan(ctx context.Context, req flow.PlanRequest) (*flow.PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.flows.GenerateDailyPlan(ctx, req)
	if err == nil {
		if resp == nil {
			err = errEmptyResponse
		} else {
			err = resp.Validate()
		}
	}
	if err := s.finish(ctx, flow.NamePlan, start, err); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) finish(ctx context.Context, name string, start time.Time, err error) error {
	elapsed := time.Since(start)
	metrics.ObserveFlow(name, s.provider, elapsed, err == nil)
	if err == nil {
		return nil
	}

	log := logging.With(ctx, s.logger)
	log.Error().Err(err).Str("flow", name).Dur("elapsed", elapsed).Msg("flow call failed")
	return apperror.Service(name, err)
}

// parseJSONObject 从模型输出中截取最外层 JSON 对象并解码。
func parseJSONObject(content string, dst any) error {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("missing json object in model output")
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), dst); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
