package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-wellness/backend/internal/config"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
)

// ArkFlows 基于 eino chain 与方舟模型实现三个文本 flow。
type ArkFlows struct {
	prompts *PromptCatalog
	answer  compose.Runnable[map[string]any, *schema.Message]
	task    compose.Runnable[map[string]any, *schema.Message]
}

var _ Flows = (*ArkFlows)(nil)

// NewArkFlowsFromConfig creates the Ark chat model and compiles the chains.
func NewArkFlowsFromConfig(ctx context.Context, cfg config.AIConfig, prompts *PromptCatalog) (*ArkFlows, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewArkFlows(ctx, chatModel, prompts)
}

// NewArkFlows compiles the question answering chain and the single-turn task chain.
func NewArkFlows(ctx context.Context, chatModel model.ChatModel, prompts *PromptCatalog) (*ArkFlows, error) {
	answerTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.MessagesPlaceholder("query", false),
	)

	answerChain := compose.NewChain[map[string]any, *schema.Message]()
	answerChain.AppendChatTemplate(answerTemplate)
	answerChain.AppendChatModel(chatModel)

	answer, err := answerChain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile answer chain: %w", err)
	}

	taskTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{input}"),
	)

	taskChain := compose.NewChain[map[string]any, *schema.Message]()
	taskChain.AppendChatTemplate(taskTemplate)
	taskChain.AppendChatModel(chatModel)

	task, err := taskChain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile task chain: %w", err)
	}

	return &ArkFlows{prompts: prompts, answer: answer, task: task}, nil
}

func (a *ArkFlows) AnswerQuestion(ctx context.Context, req flow.AnswerRequest) (*flow.AnswerResponse, error) {
	input := map[string]any{
		"system":  a.prompts.AnswerSystemPrompt(req),
		"history": buildHistoryMessages(req.History),
		"query":   []*schema.Message{buildQueryMessage(req)},
	}

	msg, err := a.answer.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run answer chain: %w", err)
	}

	var resp flow.AnswerResponse
	if err := parseJSONObject(msg.Content, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *ArkFlows) GenerateRitual(ctx context.Context, req flow.RitualRequest) (*flow.RitualResponse, error) {
	system, user := a.prompts.RitualPrompt(req)
	var resp flow.RitualResponse
	if err := a.runTask(ctx, system, user, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *ArkFlows) GenerateDailyPlan(ctx context.Context, req flow.PlanRequest) (*flow.PlanResponse, error) {
	system, user := a.prompts.PlanPrompt(req)
	var resp flow.PlanResponse
	if err := a.runTask(ctx, system, user, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *ArkFlows) runTask(ctx context.Context, system, user string, dst any) error {
	msg, err := a.task.Invoke(ctx, map[string]any{"system": system, "input": user})
	if err != nil {
		return fmt.Errorf("failed to run task chain: %w", err)
	}
	return parseJSONObject(msg.Content, dst)
}

func buildHistoryMessages(turns []flow.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}

// buildQueryMessage 有图片时构造多模态用户消息。
func buildQueryMessage(req flow.AnswerRequest) *schema.Message {
	if req.ImageDataURI == "" {
		return schema.UserMessage(req.Question)
	}

	parts := make([]schema.ChatMessagePart, 0, 2)
	if req.Question != "" {
		parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: req.Question})
	}
	parts = append(parts, schema.ChatMessagePart{
		Type:     schema.ChatMessagePartTypeImageURL,
		ImageURL: &schema.ChatMessageImageURL{URL: req.ImageDataURI},
	})
	return &schema.Message{Role: schema.User, MultiContent: parts}
}
