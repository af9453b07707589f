package flow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/service/ai"
)

type stubFlows struct {
	plan      flow.PlanRequest
	ritualErr error
}

func (s *stubFlows) AnswerQuestion(context.Context, flow.AnswerRequest) (*flow.AnswerResponse, error) {
	return nil, errors.New("unused")
}

func (s *stubFlows) GenerateRitual(_ context.Context, req flow.RitualRequest) (*flow.RitualResponse, error) {
	if s.ritualErr != nil {
		return nil, s.ritualErr
	}
	return &flow.RitualResponse{RitualDescription: "## Dawn\n- light a diya", Benefits: "calm", TraditionsInvolved: "Vedic"}, nil
}

func (s *stubFlows) GenerateDailyPlan(_ context.Context, req flow.PlanRequest) (*flow.PlanResponse, error) {
	s.plan = req
	section := flow.PlanSection{Title: "t", Description: "d", Activities: []string{"a"}}
	return &flow.PlanResponse{Morning: section, Afternoon: section, Evening: section}, nil
}

type stubProfiles struct{ profile chat.Profile }

func (s stubProfiles) Load(context.Context) (chat.Profile, bool) { return s.profile, true }

// newRouter 经过 ai.Service，校验与错误包装与线上一致。
func newRouter(flows *stubFlows, profile chat.Profile) *chi.Mux {
	r := chi.NewRouter()
	New(ai.NewService("stub", flows, zerolog.Nop()), stubProfiles{profile: profile}).RegisterRoutes(r)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return resp
}

func TestRitualReturnsBlocks(t *testing.T) {
	resp := post(newRouter(&stubFlows{}, chat.Profile{}), "/rituals", `{"preferences":"calm mornings with breathwork"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		RitualDescription string `json:"ritualDescription"`
		Blocks            []struct {
			Kind string `json:"kind"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "## Dawn\n- light a diya", body.RitualDescription)
	require.Len(t, body.Blocks, 2)
	assert.Equal(t, "heading", body.Blocks[0].Kind)
}

func TestRitualStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, post(newRouter(&stubFlows{}, chat.Profile{}), "/rituals", `{"preferences":"short"}`).Code)

	failing := &stubFlows{ritualErr: errors.New("upstream down")}
	assert.Equal(t, http.StatusBadGateway, post(newRouter(failing, chat.Profile{}), "/rituals", `{"preferences":"calm mornings with breathwork"}`).Code)
}

func TestPlanUsesProfile(t *testing.T) {
	flows := &stubFlows{}
	profile := chat.Profile{HealthGoals: "sleep", Preferences: "yoga", Lifestyle: "desk job"}

	resp := post(newRouter(flows, profile), "/plan", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, flow.PlanRequest{HealthGoals: "sleep", Preferences: "yoga", Lifestyle: "desk job"}, flows.plan)

	resp = post(newRouter(flows, profile), "/plan", `{"preferences":"swimming"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "swimming", flows.plan.Preferences)
}

func TestPlanRequiresCompleteProfile(t *testing.T) {
	resp := post(newRouter(&stubFlows{}, chat.Profile{Preferences: "yoga"}), "/plan", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
