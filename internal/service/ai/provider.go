package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/z-wellness/backend/internal/config"
)

// NewFlowsFromConfig 按 AI_PROVIDER 选择 flow 实现。
func NewFlowsFromConfig(ctx context.Context, cfg config.AIConfig, prompts *PromptCatalog) (Flows, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiFlowsFromConfig(ctx, cfg, prompts)
	case config.ProviderArk, "":
		return NewArkFlowsFromConfig(ctx, cfg, prompts)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
