package chat

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/metrics"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/storage/kv"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("message role must be user or assistant")
)

const (
	// SessionsKey 会话列表的持久化 key。
	SessionsKey = "chatSessions"
	// HistoryPrefix 每个会话消息记录的 key 前缀。
	HistoryPrefix = "chatHistory_"
)

// HistoryKey returns the persistence key of a session's message history.
func HistoryKey(sessionID string) string {
	return HistoryPrefix + sessionID
}

// Service 管理会话列表、每个会话的消息记录以及当前激活的会话。
// 所有修改先作用于内存，再写入 kv.Store；写入失败返回 PersistenceError，但不回滚内存。
type Service struct {
	store  kv.Store
	logger zerolog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	entropy   io.Reader
	sessions  []chat.Session // most recent first
	histories map[string][]chat.Message
	activeID  string
	// pendingPurge 记录删除失败的历史 key，下一次修改时重试。
	pendingPurge map[string]struct{}
	// loadErr 非空表示启动时会话列表读取失败，内存列表不可作为清理依据。
	loadErr error
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 从 store 中加载会话列表。缺失或损坏的数据被视为空状态。
func NewService(ctx context.Context, store kv.Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       logger.With().Str("component", "session_store").Logger(),
		now:          time.Now,
		entropy:      ulid.Monotonic(rand.Reader, 0),
		histories:    make(map[string][]chat.Message),
		pendingPurge: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sessions, s.loadErr = s.loadSessions(ctx)
	return s
}

func (s *Service) loadSessions(ctx context.Context) ([]chat.Session, error) {
	var stored []chat.Session
	if ok, err := s.readJSON(ctx, SessionsKey, &stored); !ok {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stored))
	sessions := make([]chat.Session, 0, len(stored))
	for _, session := range stored {
		if session.ID == "" {
			continue
		}
		if _, dup := seen[session.ID]; dup {
			s.logger.Warn().Str("session_id", session.ID).Msg("dropping duplicate session entry")
			continue
		}
		seen[session.ID] = struct{}{}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// readJSON 读取并解码 key，失败时记录警告并返回 false。
// 只有 store 读取出错时返回 error；key 不存在或数据损坏都视为空状态。
func (s *Service) readJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		metrics.PersistenceFailure("read")
		perr := apperror.Persistence("get", key, err)
		s.logger.Warn().Err(perr).Msg("falling back to empty state")
		return false, perr
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.PersistenceFailure("decode")
		s.logger.Warn().Err(apperror.Persistence("decode", key, err)).Msg("corrupt blob, falling back to empty state")
		return false, nil
	}
	return true, nil
}

func (s *Service) writeJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperror.Persistence("encode", key, err)
	}
	if err := s.store.Set(ctx, key, data); err != nil {
		metrics.PersistenceFailure("write")
		s.logger.Error().Err(err).Str("key", key).Msg("persist failed")
		return apperror.Persistence("set", key, err)
	}
	return nil
}

func (s *Service) removeHistoryLocked(ctx context.Context, sessionID string) error {
	key := HistoryKey(sessionID)
	if err := s.store.Remove(ctx, key); err != nil {
		metrics.PersistenceFailure("remove")
		s.pendingPurge[sessionID] = struct{}{}
		s.logger.Error().Err(err).Str("key", key).Msg("history removal failed, will retry")
		return apperror.Persistence("remove", key, err)
	}
	delete(s.pendingPurge, sessionID)
	return nil
}

// retryPurgesLocked 重试此前失败的历史删除。
func (s *Service) retryPurgesLocked(ctx context.Context) {
	for sessionID := range s.pendingPurge {
		if s.indexLocked(sessionID) >= 0 {
			delete(s.pendingPurge, sessionID)
			continue
		}
		_ = s.removeHistoryLocked(ctx, sessionID)
	}
}

func (s *Service) indexLocked(sessionID string) int {
	for i, session := range s.sessions {
		if session.ID == sessionID {
			return i
		}
	}
	return -1
}

func (s *Service) newIDLocked() string {
	for {
		id := ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
		if s.indexLocked(id) < 0 {
			return id
		}
	}
}

// CreateSession 创建标题为 "New Chat" 的新会话并插入列表头部。
func (s *Service) CreateSession(ctx context.Context) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retryPurgesLocked(ctx)

	session := chat.Session{
		ID:        s.newIDLocked(),
		Title:     chat.DefaultTitle,
		CreatedAt: s.now().UTC(),
	}
	s.sessions = append([]chat.Session{session}, s.sessions...)
	s.histories[session.ID] = nil

	return session, s.writeJSON(ctx, SessionsKey, s.sessions)
}

// DeleteSession 删除会话及其消息记录。wasActive 表示被删除的是当前激活会话，
// 调用方需要导航离开。
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (wasActive bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retryPurgesLocked(ctx)

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		// 顺手清理可能残留的孤儿记录。
		_ = s.removeHistoryLocked(ctx, sessionID)
		return false, ErrSessionNotFound
	}

	s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	delete(s.histories, sessionID)
	if s.activeID == sessionID {
		s.activeID = ""
		wasActive = true
	}

	// 先删历史再写列表：列表写入失败时也不会留下孤儿记录。
	removeErr := s.removeHistoryLocked(ctx, sessionID)
	writeErr := s.writeJSON(ctx, SessionsKey, s.sessions)
	return wasActive, errors.Join(removeErr, writeErr)
}

// RenameSession updates a title in place. Unknown ids are a no-op.
func (s *Service) RenameSession(ctx context.Context, sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retryPurgesLocked(ctx)

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return nil
	}
	s.sessions[idx].Title = title
	return s.writeJSON(ctx, SessionsKey, s.sessions)
}

// AppendMessage 追加消息到会话记录末尾。会话的第一条用户消息会把标题改为消息文本，
// 仅含图片时改为 "Image Message"。会话不存在时返回 ErrSessionNotFound，不会写入孤儿记录。
func (s *Service) AppendMessage(ctx context.Context, sessionID string, message chat.Message) (chat.Message, error) {
	if !message.Role.Valid() {
		return chat.Message{}, ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.retryPurgesLocked(ctx)

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return chat.Message{}, ErrSessionNotFound
	}

	history := s.historyLocked(ctx, sessionID)
	firstUser := message.Role == chat.RoleUser && !hasUserMessage(history)

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.now().UTC()
	}
	message.References = append([]string(nil), message.References...)

	history = append(history, message)
	s.histories[sessionID] = history

	titleChanged := false
	if firstUser {
		title := message.Content
		if strings.TrimSpace(title) == "" && message.HasImage() {
			title = chat.ImageOnlyTitle
		}
		if title != "" && title != s.sessions[idx].Title {
			s.sessions[idx].Title = title
			titleChanged = true
		}
	}

	err := s.writeJSON(ctx, HistoryKey(sessionID), history)
	if titleChanged {
		err = errors.Join(err, s.writeJSON(ctx, SessionsKey, s.sessions))
	}
	return message, err
}

func hasUserMessage(history []chat.Message) bool {
	for _, m := range history {
		if m.Role == chat.RoleUser {
			return true
		}
	}
	return false
}

// historyLocked 返回会话记录，首次访问时从 store 读取。
func (s *Service) historyLocked(ctx context.Context, sessionID string) []chat.Message {
	if history, ok := s.histories[sessionID]; ok {
		return history
	}
	var history []chat.Message
	_, _ = s.readJSON(ctx, HistoryKey(sessionID), &history)
	s.histories[sessionID] = history
	return history
}

// ListSessions returns sessions most-recent-first.
func (s *Service) ListSessions(_ context.Context) []chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Session(nil), s.sessions...)
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return chat.Session{}, ErrSessionNotFound
	}
	return s.sessions[idx], nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(sessionID) < 0 {
		return nil, ErrSessionNotFound
	}

	history := s.historyLocked(ctx, sessionID)
	copied := make([]chat.Message, len(history))
	copy(copied, history)
	return copied, nil
}

// Activate marks sessionID as the active conversation.
func (s *Service) Activate(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(sessionID) < 0 {
		return ErrSessionNotFound
	}
	s.activeID = sessionID
	return nil
}

// ActiveID returns the active session, if any.
func (s *Service) ActiveID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

// SweepOrphans 删除所有没有对应会话的历史记录，返回删除数量。
// 启动时会话列表读取失败则拒绝清理。
func (s *Service) SweepOrphans(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return 0, s.loadErr
	}

	keys, err := s.store.Keys(ctx, HistoryPrefix)
	if err != nil {
		metrics.PersistenceFailure("read")
		return 0, apperror.Persistence("keys", HistoryPrefix, err)
	}

	removed := 0
	var errs []error
	for _, key := range keys {
		sessionID := strings.TrimPrefix(key, HistoryPrefix)
		if s.indexLocked(sessionID) >= 0 {
			continue
		}
		if err := s.removeHistoryLocked(ctx, sessionID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
		s.logger.Info().Str("key", key).Msg("removed orphaned history")
	}
	return removed, errors.Join(errs...)
}
