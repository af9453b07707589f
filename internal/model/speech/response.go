package speech

import (
	"encoding/base64"
	"time"
)

// TTSResponse 语音合成响应
type TTSResponse struct {
	SessionID string    `json:"sessionId,omitempty"`
	AudioData []byte    `json:"-"`
	Duration  int64     `json:"duration"` // milliseconds
	Format    string    `json:"format"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MimeType maps Format to the audio media type.
func (r TTSResponse) MimeType() string {
	switch r.Format {
	case "wav":
		return "audio/wav"
	case "ogg_opus":
		return "audio/ogg"
	case "pcm":
		return "audio/L16"
	default:
		return "audio/mpeg"
	}
}

// DataURI 返回可直接交给浏览器播放的 data URI。
func (r TTSResponse) DataURI() string {
	return "data:" + r.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(r.AudioData)
}
