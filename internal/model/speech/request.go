package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	SessionID string  `json:"sessionId,omitempty"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice,omitempty"`
	Speed     float32 `json:"speed,omitempty"`  // 语速倍率 0.5-2.0
	Volume    float32 `json:"volume,omitempty"` // 音量 0.0-1.0
	Format    string  `json:"format,omitempty"` // mp3, wav
	Language  string  `json:"language,omitempty"`
}
