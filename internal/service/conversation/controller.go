package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/logging"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/model/flow"
	"github.com/zhouzirui/z-wellness/backend/internal/service/ai"
	"github.com/zhouzirui/z-wellness/backend/internal/service/playback"
)

// ErrorBubble 问答失败时追加到会话中的助手消息。
const ErrorBubble = "Failed to get an answer. Please try again."

var (
	ErrEmptySubmission = errors.New("message text or image is required")
	ErrSessionBusy     = errors.New("an answer is still loading for this session")
	ErrNothingToSpeak  = errors.New("message has no text to speak")

	errNoAnswerer = errors.New("question answering is not configured")
)

// SessionStore 是控制器用到的会话存储能力。
type SessionStore interface {
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
	AppendMessage(ctx context.Context, sessionID string, message chat.Message) (chat.Message, error)
}

// ProfileSource 返回用户资料，saved 为 false 表示用户从未保存过。
type ProfileSource interface {
	Load(ctx context.Context) (p chat.Profile, saved bool)
}

type Answerer interface {
	AnswerQuestion(ctx context.Context, req flow.AnswerRequest) (*flow.AnswerResponse, error)
}

// Playback 是播放协调器的请求入口。
type Playback interface {
	RequestPlayback(ctx context.Context, text string, index int) playback.Status
}

// SubmitInput 用户的一次提交。
type SubmitInput struct {
	SessionID string
	Text      string
	// Image 可选的 data URI。
	Image   string
	Persona string
}

// Result 一次提交追加的两条消息。Failed 为 true 时 Reply 是错误气泡。
type Result struct {
	UserMessage     chat.Message
	Reply           chat.Message
	Failed          bool
	PersistWarnings []error
}

// Controller 编排一次提问：预检、追加用户消息、调用问答 flow、追加回复。
// answerer 为 nil 时每次提问都得到错误气泡。
type Controller struct {
	sessions SessionStore
	profiles ProfileSource
	answerer Answerer
	logger   zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewController(sessions SessionStore, profiles ProfileSource, answerer Answerer, logger zerolog.Logger) *Controller {
	return &Controller{
		sessions: sessions,
		profiles: profiles,
		answerer: answerer,
		logger:   logger.With().Str("component", "conversation").Logger(),
		inflight: make(map[string]struct{}),
	}
}

// IsLoading reports whether an answer is outstanding for the session.
func (c *Controller) IsLoading(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[sessionID]
	return ok
}

func (c *Controller) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[sessionID]; busy {
		return false
	}
	c.inflight[sessionID] = struct{}{}
	return true
}

func (c *Controller) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}

// Submit 处理一次提交。
// 校验失败在追加任何消息之前返回 ValidationError；问答 flow 失败不会返回错误，
// 而是追加错误气泡并把 Result.Failed 置为 true。
func (c *Controller) Submit(ctx context.Context, in SubmitInput) (*Result, error) {
	if strings.TrimSpace(in.Text) == "" && in.Image == "" {
		return nil, ErrEmptySubmission
	}
	if !c.acquire(in.SessionID) {
		return nil, ErrSessionBusy
	}
	defer c.release(in.SessionID)

	ctx = logging.WithSessionID(ctx, in.SessionID)
	log := logging.With(ctx, c.logger)

	history, err := c.sessions.LoadTranscript(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	var profile *chat.Profile
	if p, saved := c.profiles.Load(ctx); saved {
		profile = &p
	}

	req, err := ai.Build(ai.BuildInput{
		Persona: in.Persona,
		Profile: profile,
		History: history,
		Text:    in.Text,
		Image:   in.Image,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{}
	result.UserMessage, err = c.append(ctx, in.SessionID, chat.Message{
		Role:    chat.RoleUser,
		Content: in.Text,
		Image:   in.Image,
	}, result)
	if err != nil {
		return nil, err
	}

	reply := chat.Message{Role: chat.RoleAssistant}
	resp, err := c.answer(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("persona", string(req.Persona)).Msg("question answering failed")
		reply.Content = ErrorBubble
		result.Failed = true
	} else {
		reply.Content = resp.Answer
		reply.References = resp.References
	}

	result.Reply, err = c.append(ctx, in.SessionID, reply, result)
	if err != nil {
		return nil, err
	}

	log.Info().
		Bool("failed", result.Failed).
		Int("warnings", len(result.PersistWarnings)).
		Str("question", logging.Preview(in.Text, 40)).
		Msg("submission handled")
	return result, nil
}

func (c *Controller) answer(ctx context.Context, req *flow.AnswerRequest) (*flow.AnswerResponse, error) {
	if c.answerer == nil {
		return nil, errNoAnswerer
	}
	return c.answerer.AnswerQuestion(ctx, *req)
}

// append 持久化失败只记为警告，内存中的消息已经生效。
func (c *Controller) append(ctx context.Context, sessionID string, msg chat.Message, result *Result) (chat.Message, error) {
	stored, err := c.sessions.AppendMessage(ctx, sessionID, msg)
	if err == nil {
		return stored, nil
	}
	if apperror.IsPersistence(err) {
		log := logging.With(ctx, c.logger)
		log.Warn().Err(err).Str("role", string(msg.Role)).Msg("message not persisted")
		result.PersistWarnings = append(result.PersistWarnings, err)
		return stored, nil
	}
	return chat.Message{}, err
}

// Speak 把会话中第 index 条消息的文本交给播放协调器。
func (c *Controller) Speak(ctx context.Context, player Playback, sessionID string, index int) (playback.Status, error) {
	history, err := c.sessions.LoadTranscript(ctx, sessionID)
	if err != nil {
		return playback.Status{}, err
	}
	if index < 0 || index >= len(history) {
		return playback.Status{}, apperror.Invalid("index", fmt.Sprintf("must be between 0 and %d", len(history)-1))
	}
	text := history[index].Content
	if strings.TrimSpace(text) == "" {
		return playback.Status{}, ErrNothingToSpeak
	}
	return player.RequestPlayback(ctx, text, index), nil
}
