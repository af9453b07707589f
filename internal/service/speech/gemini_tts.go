package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/zhouzirui/z-wellness/backend/internal/model/speech"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiTTSClient 使用 Gemini 语音模型合成，返回 24kHz 单声道 WAV。
type GeminiTTSClient struct {
	models contentGenerator
	model  string
	voice  string
}

var _ Synthesizer = (*GeminiTTSClient)(nil)

// NewGeminiTTSClientFromConfig creates a Gemini API client for speech.
func NewGeminiTTSClientFromConfig(ctx context.Context, cfg *speech.SpeechConfig) (*GeminiTTSClient, error) {
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return NewGeminiTTSClient(client.Models, cfg.GeminiModel, cfg.GeminiVoice), nil
}

func NewGeminiTTSClient(models contentGenerator, model, voice string) *GeminiTTSClient {
	return &GeminiTTSClient{models: models, model: model, voice: voice}
}

func (c *GeminiTTSClient) Name() string { return "gemini" }

func (c *GeminiTTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("TTS text is empty")
	}

	voice := c.voice
	// persona 别名只对火山音色有意义，这里只接受 Gemini 的预置音色名
	if v := strings.TrimSpace(req.Voice); v != "" && NormalizeVoiceAlias(v) == v {
		voice = v
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	res, err := c.models.GenerateContent(ctx, c.model, []*genai.Content{genai.NewContentFromText(req.Text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate speech: %w", err)
	}

	pcm := firstInlineData(res)
	if len(pcm) == 0 {
		return nil, errors.New("no media returned")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	return &speech.TTSResponse{
		SessionID: sessionID,
		AudioData: encodeWAV(pcm, pcmSampleRate, pcmChannels, pcmBitsPerSample),
		Duration:  pcmDurationMillis(pcm, pcmSampleRate, pcmChannels, pcmBitsPerSample),
		Format:    "wav",
		RequestID: uuid.New().String(),
		CreatedAt: time.Now(),
	}, nil
}

func firstInlineData(res *genai.GenerateContentResponse) []byte {
	if res == nil {
		return nil
	}
	for _, cand := range res.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}
