package profile

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/apperror"
	"github.com/zhouzirui/z-wellness/backend/internal/metrics"
	"github.com/zhouzirui/z-wellness/backend/internal/model/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/storage/kv"
)

// Key 用户资料的持久化 key。
const Key = "userProfile"

// Service 读写用户资料。
type Service struct {
	store  kv.Store
	logger zerolog.Logger
}

func NewService(store kv.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "profile").Logger(),
	}
}

// Load 返回已保存的资料；saved 为 false 时返回默认资料。
// 读取失败或数据损坏时同样回落到默认值，只记录警告。
func (s *Service) Load(ctx context.Context) (p chat.Profile, saved bool) {
	data, err := s.store.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return chat.DefaultProfile(), false
	}
	if err != nil {
		metrics.PersistenceFailure("read")
		s.logger.Warn().Err(apperror.Persistence("get", Key, err)).Msg("using default profile")
		return chat.DefaultProfile(), false
	}

	if err := json.Unmarshal(data, &p); err != nil {
		metrics.PersistenceFailure("decode")
		s.logger.Warn().Err(apperror.Persistence("decode", Key, err)).Msg("corrupt profile, using default")
		return chat.DefaultProfile(), false
	}
	return p, true
}

// Save persists the whole profile.
func (s *Service) Save(ctx context.Context, p chat.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return apperror.Persistence("encode", Key, err)
	}
	if err := s.store.Set(ctx, Key, data); err != nil {
		metrics.PersistenceFailure("write")
		return apperror.Persistence("set", Key, err)
	}
	return nil
}
