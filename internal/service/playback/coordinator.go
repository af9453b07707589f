package playback

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/metrics"
	"github.com/zhouzirui/z-wellness/backend/internal/model/speech"
)

// FailureMessage 合成失败时提示给用户的文案。
const FailureMessage = "Failed to generate audio. Please try again."

// State 播放状态机的状态。
type State int

const (
	Idle State = iota
	Loading
	Playing
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	default:
		return "idle"
	}
}

// Status 当前状态及其所属的消息下标，Idle 时 Index 为 -1。
type Status struct {
	State State
	Index int
}

// TTS 是协调器依赖的语音合成 flow。
type TTS interface {
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
}

// Handle 代表一次正在进行的播放。
// 自然播放结束或 Stop 之后 Done 都必须关闭，且只会关闭一次。
type Handle interface {
	Stop()
	Done() <-chan struct{}
}

// Player 负责把音频交给真正的输出端（浏览器、终端等），不能阻塞。
type Player interface {
	Play(index int, audio *speech.TTSResponse) (Handle, error)
}

// Notifier 展示非致命的用户提示。
type Notifier interface {
	Notify(index int, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(index int, message string)

func (f NotifierFunc) Notify(index int, message string) { f(index, message) }

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithListener registers a transition listener. Listeners run while the
// coordinator lock is held; they must return quickly and must not call back
// into the coordinator.
func WithListener(fn func(Status)) Option {
	return func(c *Coordinator) { c.listeners = append(c.listeners, fn) }
}

// WithSessionID tags synthesis requests with the owning chat session.
func WithSessionID(id string) Option {
	return func(c *Coordinator) { c.sessionID = id }
}

// Coordinator 保证同一时刻至多一条消息处于 Loading 或 Playing。
type Coordinator struct {
	tts       TTS
	player    Player
	notifier  Notifier
	logger    zerolog.Logger
	sessionID string
	listeners []func(Status)

	mu     sync.Mutex
	status Status
	// gen 每次状态被新请求或停止接管时递增，旧的异步结果据此丢弃
	gen    uint64
	cancel context.CancelFunc
	handle Handle
	wg     sync.WaitGroup
}

func New(tts TTS, player Player, notifier Notifier, logger zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		tts:      tts,
		player:   player,
		notifier: notifier,
		logger:   logger.With().Str("component", "playback").Logger(),
		status:   Status{State: Idle, Index: -1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RequestPlayback 处理一次播放请求并立即返回新状态，合成在后台进行。
//   - 同一下标正在播放：停止并回到 Idle。
//   - 同一下标正在加载：忽略。
//   - 其他情况：先停止当前播放或取消当前加载，再进入 Loading(index)。
func (c *Coordinator) RequestPlayback(ctx context.Context, text string, index int) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Index == index {
		switch c.status.State {
		case Playing:
			c.stopLocked()
			c.transitionLocked(Status{State: Idle, Index: -1})
			return c.status
		case Loading:
			return c.status
		}
	}

	c.stopLocked()

	loadCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	gen := c.gen
	c.transitionLocked(Status{State: Loading, Index: index})

	c.wg.Add(1)
	go c.load(loadCtx, gen, index, text)
	return c.status
}

// Stop 停止任何播放或加载，回到 Idle。
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.State == Idle {
		return
	}
	c.stopLocked()
	c.transitionLocked(Status{State: Idle, Index: -1})
}

// Close stops playback and waits for background work to finish.
func (c *Coordinator) Close() {
	c.Stop()
	c.wg.Wait()
}

func (c *Coordinator) load(ctx context.Context, gen uint64, index int, text string) {
	defer c.wg.Done()

	resp, err := c.tts.Synthesize(ctx, &speech.TTSRequest{SessionID: c.sessionID, Text: text})

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.cancel = nil

	if err == nil {
		var handle Handle
		handle, err = c.player.Play(index, resp)
		if err == nil {
			c.handle = handle
			c.transitionLocked(Status{State: Playing, Index: index})
			c.wg.Add(1)
			go c.watch(gen, handle)
			c.mu.Unlock()
			return
		}
	}

	c.transitionLocked(Status{State: Idle, Index: -1})
	c.mu.Unlock()

	c.logger.Warn().Err(err).Int("index", index).Msg("playback failed")
	if c.notifier != nil {
		c.notifier.Notify(index, FailureMessage)
	}
}

// watch 等待唯一的完成事件。
func (c *Coordinator) watch(gen uint64, handle Handle) {
	defer c.wg.Done()
	<-handle.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.handle != handle {
		return
	}
	c.handle = nil
	c.gen++
	c.transitionLocked(Status{State: Idle, Index: -1})
}

func (c *Coordinator) stopLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.handle != nil {
		c.handle.Stop()
		c.handle = nil
	}
}

func (c *Coordinator) transitionLocked(next Status) {
	c.status = next
	metrics.PlaybackTransition(next.State.String())
	for _, fn := range c.listeners {
		fn(next)
	}
}
