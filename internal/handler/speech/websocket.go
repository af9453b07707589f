package speech

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/logging"
	"github.com/zhouzirui/z-wellness/backend/internal/model/speech"
	"github.com/zhouzirui/z-wellness/backend/internal/service/conversation"
	"github.com/zhouzirui/z-wellness/backend/internal/service/playback"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Speaker 把会话中的某条消息交给播放协调器。
type Speaker interface {
	Speak(ctx context.Context, player conversation.Playback, sessionID string, index int) (playback.Status, error)
}

// PlaybackHandler 每个 websocket 连接拥有一个独立的播放协调器。
// 浏览器负责真正播放音频，并在自然播放结束时回报 ended。
type PlaybackHandler struct {
	tts      playback.TTS
	speaker  Speaker
	hub      *Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewPlaybackHandler 创建播放 websocket 处理器
func NewPlaybackHandler(tts playback.TTS, speaker Speaker, hub *Hub, logger zerolog.Logger) *PlaybackHandler {
	return &PlaybackHandler{
		tts:     tts,
		speaker: speaker,
		hub:     hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With().Str("component", "playback_ws").Logger(),
	}
}

// inboundMessage 客户端消息：play 请求播放，ended 表示自然播放结束，stop 停止一切。
type inboundMessage struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// outgoingMessage 服务端事件：state、audio、stop、error。
type outgoingMessage struct {
	Type      string `json:"type"`
	Index     int    `json:"index"`
	State     string `json:"state,omitempty"`
	Audio     string `json:"audio,omitempty"`
	Format    string `json:"format,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ServeHTTP 处理 GET /speech/playback/ws?sessionId=...
func (h *PlaybackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	h.hub.add(conn)
	defer func() {
		h.hub.remove(conn)
		conn.Close()
	}()

	ctx, cancel := context.WithCancel(logging.WithSessionID(r.Context(), sessionID))
	defer cancel()
	log := logging.With(ctx, h.logger)
	log.Info().Msg("playback connection opened")

	pc := &playbackConn{conn: conn, handles: make(map[int]*wsHandle), logger: log}
	coord := playback.New(h.tts, pc, pc, log,
		playback.WithSessionID(sessionID),
		playback.WithListener(func(s playback.Status) {
			pc.send(outgoingMessage{Type: "state", State: s.State.String(), Index: s.Index})
		}),
	)
	defer coord.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go pingLoop(ctx, conn)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("read error")
			}
			log.Info().Msg("playback connection closed")
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "play":
			if _, err := h.speaker.Speak(ctx, coord, sessionID, msg.Index); err != nil {
				pc.send(outgoingMessage{Type: "error", Index: msg.Index, Message: err.Error()})
			}
		case "ended":
			pc.ended(msg.Index)
		case "stop":
			coord.Stop()
		default:
			pc.send(outgoingMessage{Type: "error", Index: msg.Index, Message: "unknown message type " + msg.Type})
		}
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// playbackConn 同时实现 playback.Player 与 playback.Notifier。
type playbackConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  zerolog.Logger

	mu      sync.Mutex
	handles map[int]*wsHandle
}

func (c *playbackConn) send(msg outgoingMessage) error {
	msg.Timestamp = time.Now().Unix()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("write failed")
		return err
	}
	return nil
}

// Play 把音频以 data URI 发给浏览器。
func (c *playbackConn) Play(index int, audio *speech.TTSResponse) (playback.Handle, error) {
	h := &wsHandle{index: index, conn: c, done: make(chan struct{})}
	c.mu.Lock()
	c.handles[index] = h
	c.mu.Unlock()

	if err := c.send(outgoingMessage{Type: "audio", Index: index, Audio: audio.DataURI(), Format: audio.Format}); err != nil {
		c.forget(h)
		return nil, err
	}
	return h, nil
}

func (c *playbackConn) Notify(index int, message string) {
	c.send(outgoingMessage{Type: "error", Index: index, Message: message})
}

// ended 处理浏览器回报的自然播放结束，过期的下标直接忽略。
func (c *playbackConn) ended(index int) {
	c.mu.Lock()
	h := c.handles[index]
	c.mu.Unlock()
	if h != nil {
		h.finish()
	}
}

func (c *playbackConn) forget(h *wsHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handles[h.index] == h {
		delete(c.handles, h.index)
	}
}

type wsHandle struct {
	index int
	conn  *playbackConn
	once  sync.Once
	done  chan struct{}
}

// Stop 通知浏览器停止播放。
func (h *wsHandle) Stop() {
	h.once.Do(func() {
		h.conn.forget(h)
		h.conn.send(outgoingMessage{Type: "stop", Index: h.index})
		close(h.done)
	})
}

func (h *wsHandle) finish() {
	h.once.Do(func() {
		h.conn.forget(h)
		close(h.done)
	})
}

func (h *wsHandle) Done() <-chan struct{} { return h.done }
