package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
)

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func newTestArk(t *testing.T, m *fakeChatModel) *ArkFlows {
	t.Helper()
	flows, err := NewArkFlows(context.Background(), m, DefaultPrompts())
	require.NoError(t, err)
	return flows
}

func TestArkAnswerBuildsConversation(t *testing.T) {
	m := &fakeChatModel{reply: "Sure!\n```json\n{\"answer\":\"## Calm\\n- breathe\",\"references\":[\"WHO\"]}\n```"}
	flows := newTestArk(t, m)

	resp, err := flows.AnswerQuestion(context.Background(), flow.AnswerRequest{
		Question: "How do I relax?",
		Persona:  persona.Medical,
		History: []flow.Turn{
			{Role: chat.RoleUser, Content: "hi"},
			{Role: chat.RoleAssistant, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "## Calm\n- breathe", resp.Answer)
	assert.Equal(t, []string{"WHO"}, resp.References)

	require.Len(t, m.input, 4)
	assert.Equal(t, schema.System, m.input[0].Role)
	assert.Contains(t, m.input[0].Content, "selected persona: medical")
	assert.Equal(t, schema.User, m.input[1].Role)
	assert.Equal(t, schema.Assistant, m.input[2].Role)
	assert.Equal(t, "How do I relax?", m.input[3].Content)
}

func TestArkAnswerAttachesImage(t *testing.T) {
	m := &fakeChatModel{reply: `{"answer":"a leaf"}`}
	flows := newTestArk(t, m)

	_, err := flows.AnswerQuestion(context.Background(), flow.AnswerRequest{
		Persona:      persona.Holistic,
		ImageDataURI: "data:image/png;base64,AAAA",
	})
	require.NoError(t, err)

	query := m.input[len(m.input)-1]
	require.Len(t, query.MultiContent, 1)
	assert.Equal(t, schema.ChatMessagePartTypeImageURL, query.MultiContent[0].Type)
	assert.Equal(t, "data:image/png;base64,AAAA", query.MultiContent[0].ImageURL.URL)
	assert.Contains(t, m.input[0].Content, "provided an image")
}

func TestArkRitualAndPlan(t *testing.T) {
	m := &fakeChatModel{reply: `{"ritualDescription":"Sunrise walk","benefits":"energy","traditionsInvolved":"Ayurveda"}`}
	flows := newTestArk(t, m)

	ritual, err := flows.GenerateRitual(context.Background(), flow.RitualRequest{Preferences: "morning calm routines"})
	require.NoError(t, err)
	assert.Equal(t, "Sunrise walk", ritual.RitualDescription)
	assert.Contains(t, m.input[1].Content, "Preferences: morning calm routines")

	m.reply = `{"morning":{"title":"Wake","description":"d","activities":["a"]},` +
		`"afternoon":{"title":"Move","description":"d","activities":["b"]},` +
		`"evening":{"title":"Rest","description":"d","activities":["c"]}}`
	plan, err := flows.GenerateDailyPlan(context.Background(), flow.PlanRequest{HealthGoals: "sleep", Preferences: "yoga"})
	require.NoError(t, err)
	assert.Equal(t, "Rest", plan.Evening.Title)
}

func TestArkPropagatesFailures(t *testing.T) {
	m := &fakeChatModel{err: errors.New("quota")}
	flows := newTestArk(t, m)

	_, err := flows.GenerateRitual(context.Background(), flow.RitualRequest{Preferences: "morning calm routines"})
	require.Error(t, err)

	m.err = nil
	m.reply = "no json here"
	_, err = flows.GenerateRitual(context.Background(), flow.RitualRequest{Preferences: "morning calm routines"})
	assert.ErrorContains(t, err, "missing json object")
}
