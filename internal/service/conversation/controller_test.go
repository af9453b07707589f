package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/z-wellness/backend/internal/service/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/service/playback"
	"github.com/zhouzirui/z-wellness/backend/internal/storage/kv"
)

type stubProfiles struct {
	profile chat.Profile
	saved   bool
}

func (s stubProfiles) Load(context.Context) (chat.Profile, bool) { return s.profile, s.saved }

type stubAnswerer struct {
	mu      sync.Mutex
	reqs    []flow.AnswerRequest
	resp    *flow.AnswerResponse
	err     error
	release chan struct{}
}

func (s *stubAnswerer) AnswerQuestion(ctx context.Context, req flow.AnswerRequest) (*flow.AnswerResponse, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	return s.resp, s.err
}

func (s *stubAnswerer) calls() []flow.AnswerRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]flow.AnswerRequest(nil), s.reqs...)
}

// failingSetStore 让写操作失败，用于验证持久化警告。
type failingSetStore struct {
	kv.Store
	fail bool
}

func (f *failingSetStore) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, value)
}

func newController(t *testing.T, profiles ProfileSource, answerer Answerer) (*Controller, *chatservice.Service, string) {
	t.Helper()
	ctx := context.Background()
	sessions := chatservice.NewService(ctx, kv.NewMemoryStore(), zerolog.Nop())
	session, err := sessions.CreateSession(ctx)
	require.NoError(t, err)
	return NewController(sessions, profiles, answerer, zerolog.Nop()), sessions, session.ID
}

func TestSubmitAppendsQuestionAndAnswer(t *testing.T) {
	answerer := &stubAnswerer{resp: &flow.AnswerResponse{Answer: "## Rest\n- sleep early", References: []string{"WHO"}}}
	ctrl, sessions, id := newController(t, stubProfiles{}, answerer)

	result, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "How can I sleep better?", Persona: "medical"})
	require.NoError(t, err)
	assert.False(t, result.Failed)
	assert.Empty(t, result.PersistWarnings)
	assert.Equal(t, []string{"WHO"}, result.Reply.References)

	transcript, err := sessions.LoadTranscript(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, chat.RoleUser, transcript[0].Role)
	assert.Equal(t, chat.RoleAssistant, transcript[1].Role)

	session, err := sessions.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "How can I sleep better?", session.Title)

	reqs := answerer.calls()
	require.Len(t, reqs, 1)
	assert.Equal(t, persona.Medical, reqs[0].Persona)
	assert.Nil(t, reqs[0].UserProfile)
	assert.Empty(t, reqs[0].History)
	assert.False(t, ctrl.IsLoading(id))
}

func TestSubmitSendsHistoryAndSavedProfile(t *testing.T) {
	answerer := &stubAnswerer{resp: &flow.AnswerResponse{Answer: "ok"}}
	profile := chat.DefaultProfile()
	ctrl, _, id := newController(t, stubProfiles{profile: profile, saved: true}, answerer)

	_, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "first"})
	require.NoError(t, err)
	_, err = ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "second"})
	require.NoError(t, err)

	reqs := answerer.calls()
	require.Len(t, reqs, 2)
	assert.Equal(t, []flow.Turn{{Role: chat.RoleUser, Content: "first"}, {Role: chat.RoleAssistant, Content: "ok"}}, reqs[1].History)
	require.NotNil(t, reqs[1].UserProfile)
	assert.Equal(t, profile.Lifestyle, reqs[1].UserProfile.Lifestyle)
}

func TestSubmitFailureBecomesErrorBubble(t *testing.T) {
	answerer := &stubAnswerer{err: apperror.Service(flow.NameQA, errors.New("timeout"))}
	ctrl, sessions, id := newController(t, stubProfiles{}, answerer)

	result, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "hello"})
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, ErrorBubble, result.Reply.Content)

	transcript, _ := sessions.LoadTranscript(context.Background(), id)
	require.Len(t, transcript, 2)
	assert.Equal(t, ErrorBubble, transcript[1].Content)
}

func TestSubmitRejectsBeforeAppending(t *testing.T) {
	answerer := &stubAnswerer{resp: &flow.AnswerResponse{Answer: "ok"}}
	ctrl, sessions, id := newController(t, stubProfiles{}, answerer)

	_, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "  "})
	assert.ErrorIs(t, err, ErrEmptySubmission)

	_, err = ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "hi", Persona: "astrologer"})
	assert.True(t, apperror.IsValidation(err))

	_, err = ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Image: "not-a-data-uri"})
	assert.True(t, apperror.IsValidation(err))

	_, err = ctrl.Submit(context.Background(), SubmitInput{SessionID: "missing", Text: "hi"})
	assert.ErrorIs(t, err, chatservice.ErrSessionNotFound)

	transcript, _ := sessions.LoadTranscript(context.Background(), id)
	assert.Empty(t, transcript)
	assert.Empty(t, answerer.calls())
}

func TestImageOnlySubmission(t *testing.T) {
	answerer := &stubAnswerer{resp: &flow.AnswerResponse{Answer: "a tulsi leaf"}}
	ctrl, sessions, id := newController(t, stubProfiles{}, answerer)

	_, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Image: "data:image/png;base64,AAAA"})
	require.NoError(t, err)

	session, _ := sessions.GetSession(context.Background(), id)
	assert.Equal(t, chat.ImageOnlyTitle, session.Title)
	assert.Equal(t, "data:image/png;base64,AAAA", answerer.calls()[0].ImageDataURI)
}

func TestSubmitIsSingleFlightPerSession(t *testing.T) {
	answerer := &stubAnswerer{resp: &flow.AnswerResponse{Answer: "ok"}, release: make(chan struct{})}
	ctrl, _, id := newController(t, stubProfiles{}, answerer)

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "first"})
		done <- err
	}()

	require.Eventually(t, func() bool { return ctrl.IsLoading(id) }, time.Second, 5*time.Millisecond)
	_, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "second"})
	assert.ErrorIs(t, err, ErrSessionBusy)

	close(answerer.release)
	require.NoError(t, <-done)
	assert.False(t, ctrl.IsLoading(id))
}

func TestPersistenceFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	store := &failingSetStore{Store: kv.NewMemoryStore()}
	sessions := chatservice.NewService(ctx, store, zerolog.Nop())
	session, err := sessions.CreateSession(ctx)
	require.NoError(t, err)

	store.fail = true
	ctrl := NewController(sessions, stubProfiles{}, &stubAnswerer{resp: &flow.AnswerResponse{Answer: "ok"}}, zerolog.Nop())

	result, err := ctrl.Submit(ctx, SubmitInput{SessionID: session.ID, Text: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.PersistWarnings)
	assert.True(t, apperror.IsPersistence(result.PersistWarnings[0]))

	transcript, _ := sessions.LoadTranscript(ctx, session.ID)
	assert.Len(t, transcript, 2)
}

func TestSubmitWithoutAnswererFails(t *testing.T) {
	ctrl, _, id := newController(t, stubProfiles{}, nil)

	result, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Text: "hello"})
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, ErrorBubble, result.Reply.Content)
}

type stubPlayback struct {
	text  string
	index int
}

func (s *stubPlayback) RequestPlayback(_ context.Context, text string, index int) playback.Status {
	s.text, s.index = text, index
	return playback.Status{State: playback.Loading, Index: index}
}

func TestSpeakLooksUpMessageText(t *testing.T) {
	answerer := &stubAnswerer{resp: &flow.AnswerResponse{Answer: "Breathe **slowly**"}}
	ctrl, _, id := newController(t, stubProfiles{}, answerer)
	_, err := ctrl.Submit(context.Background(), SubmitInput{SessionID: id, Image: "data:image/png;base64,AAAA"})
	require.NoError(t, err)

	player := &stubPlayback{}
	st, err := ctrl.Speak(context.Background(), player, id, 1)
	require.NoError(t, err)
	assert.Equal(t, playback.Loading, st.State)
	assert.Equal(t, "Breathe **slowly**", player.text)

	_, err = ctrl.Speak(context.Background(), player, id, 0)
	assert.ErrorIs(t, err, ErrNothingToSpeak)

	_, err = ctrl.Speak(context.Background(), player, id, 5)
	assert.True(t, apperror.IsValidation(err))
}
