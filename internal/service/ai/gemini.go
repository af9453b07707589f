package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/zhouzirui/z-wellness/backend/internal/config"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
)

// contentGenerator 是 *genai.Models 中用到的部分，测试时可替换。
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiFlows 使用 Gemini 的结构化输出实现三个文本 flow。
type GeminiFlows struct {
	models      contentGenerator
	model       string
	prompts     *PromptCatalog
	temperature *float32
}

var _ Flows = (*GeminiFlows)(nil)

// NewGeminiFlowsFromConfig creates a Gemini API client from the AI config.
func NewGeminiFlowsFromConfig(ctx context.Context, cfg config.AIConfig, prompts *PromptCatalog) (*GeminiFlows, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	g := NewGeminiFlows(client.Models, cfg.GeminiModel, prompts)
	if cfg.Temperature != nil {
		val := float32(*cfg.Temperature)
		g.temperature = &val
	}
	return g, nil
}

func NewGeminiFlows(models contentGenerator, model string, prompts *PromptCatalog) *GeminiFlows {
	return &GeminiFlows{models: models, model: model, prompts: prompts}
}

func (g *GeminiFlows) AnswerQuestion(ctx context.Context, req flow.AnswerRequest) (*flow.AnswerResponse, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		// Gemini 拒绝空内容的 turn，例如纯图片消息留下的历史
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if turn.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}

	query, err := geminiQuery(req)
	if err != nil {
		return nil, err
	}
	contents = append(contents, query)

	var resp flow.AnswerResponse
	if err := g.generate(ctx, g.prompts.AnswerSystemPrompt(req), contents, answerSchema, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *GeminiFlows) GenerateRitual(ctx context.Context, req flow.RitualRequest) (*flow.RitualResponse, error) {
	system, user := g.prompts.RitualPrompt(req)
	var resp flow.RitualResponse
	if err := g.generate(ctx, system, []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}, ritualSchema, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *GeminiFlows) GenerateDailyPlan(ctx context.Context, req flow.PlanRequest) (*flow.PlanResponse, error) {
	system, user := g.prompts.PlanPrompt(req)
	var resp flow.PlanResponse
	if err := g.generate(ctx, system, []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}, planSchema, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *GeminiFlows) generate(ctx context.Context, system string, contents []*genai.Content, schema *genai.Schema, dst any) error {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
		Temperature:       g.temperature,
	}

	res, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return errors.New("gemini returned empty text")
	}
	return parseJSONObject(text, dst)
}

// geminiQuery 把图片 data URI 解码成 inline 数据。
func geminiQuery(req flow.AnswerRequest) (*genai.Content, error) {
	if req.ImageDataURI == "" {
		return genai.NewContentFromText(req.Question, genai.RoleUser), nil
	}

	mimeType, payload, ok := flow.SplitDataURI(req.ImageDataURI)
	if !ok {
		return nil, errors.New("image is not a data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	parts := make([]*genai.Part, 0, 2)
	if req.Question != "" {
		parts = append(parts, genai.NewPartFromText(req.Question))
	}
	parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	return genai.NewContentFromParts(parts, genai.RoleUser), nil
}

func stringSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString}
}

func stringListSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: stringSchema()}
}

var answerSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"answer":     stringSchema(),
		"references": stringListSchema(),
	},
	Required: []string{"answer"},
}

var ritualSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"ritualDescription":  stringSchema(),
		"benefits":           stringSchema(),
		"traditionsInvolved": stringSchema(),
	},
	Required: []string{"ritualDescription", "benefits", "traditionsInvolved"},
}

func planSectionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       stringSchema(),
			"description": stringSchema(),
			"activities":  stringListSchema(),
		},
		Required: []string{"title", "description", "activities"},
	}
}

var planSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"morning":   planSectionSchema(),
		"afternoon": planSectionSchema(),
		"evening":   planSectionSchema(),
	},
	Required: []string{"morning", "afternoon", "evening"},
}
