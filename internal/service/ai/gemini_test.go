package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
)

type fakeGenerator struct {
	reply    string
	contents []*genai.Content
	cfg      *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents = contents
	f.cfg = cfg
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

func TestGeminiAnswerSkipsEmptyTurns(t *testing.T) {
	gen := &fakeGenerator{reply: `{"answer":"namaste","references":[]}`}
	flows := NewGeminiFlows(gen, "gemini-test", DefaultPrompts())

	resp, err := flows.AnswerQuestion(context.Background(), flow.AnswerRequest{
		Question: "hello",
		Persona:  persona.Sanatana,
		History: []flow.Turn{
			{Role: chat.RoleUser, Content: ""},
			{Role: chat.RoleAssistant, Content: "earlier answer"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "namaste", resp.Answer)

	require.Len(t, gen.contents, 2)
	assert.Equal(t, "model", string(gen.contents[0].Role))
	assert.Equal(t, "application/json", gen.cfg.ResponseMIMEType)
	assert.Equal(t, answerSchema, gen.cfg.ResponseSchema)
}

func TestGeminiAnswerInlinesImage(t *testing.T) {
	gen := &fakeGenerator{reply: `{"answer":"a leaf"}`}
	flows := NewGeminiFlows(gen, "gemini-test", DefaultPrompts())

	_, err := flows.AnswerQuestion(context.Background(), flow.AnswerRequest{
		Question:     "what is this?",
		Persona:      persona.Ayurveda,
		ImageDataURI: "data:image/jpeg;base64,aGVsbG8=",
	})
	require.NoError(t, err)

	query := gen.contents[len(gen.contents)-1]
	require.Len(t, query.Parts, 2)
	assert.Equal(t, "what is this?", query.Parts[0].Text)
	require.NotNil(t, query.Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", query.Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("hello"), query.Parts[1].InlineData.Data)
}

func TestGeminiPlanUsesSchema(t *testing.T) {
	gen := &fakeGenerator{reply: `{"morning":{"title":"Wake","description":"d","activities":["a"]},` +
		`"afternoon":{"title":"Move","description":"d","activities":["b"]},` +
		`"evening":{"title":"Rest","description":"d","activities":["c"]}}`}
	flows := NewGeminiFlows(gen, "gemini-test", DefaultPrompts())

	plan, err := flows.GenerateDailyPlan(context.Background(), flow.PlanRequest{HealthGoals: "focus", Preferences: "tea"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, plan.Afternoon.Activities)
	assert.Equal(t, planSchema, gen.cfg.ResponseSchema)
	assert.Contains(t, gen.contents[0].Parts[0].Text, "Health Goals: focus")
}

func TestGeminiEmptyTextFails(t *testing.T) {
	flows := NewGeminiFlows(&fakeGenerator{}, "gemini-test", DefaultPrompts())
	_, err := flows.GenerateRitual(context.Background(), flow.RitualRequest{Preferences: "evening wind down"})
	assert.ErrorContains(t, err, "empty text")
}
