package speech

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/zhouzirui/z-wellness/backend/internal/model/speech"
)

type fakeGenerator struct {
	pcm []byte
	cfg *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.cfg = cfg
	if f.pcm == nil {
		return &genai.GenerateContentResponse{}, nil
	}
	part := genai.NewPartFromBytes(f.pcm, "audio/L16;codec=pcm;rate=24000")
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromParts([]*genai.Part{part}, genai.RoleModel)}},
	}, nil
}

func TestGeminiTTSWrapsPCMInWAV(t *testing.T) {
	pcm := make([]byte, 48000) // one second of 24kHz s16le mono
	gen := &fakeGenerator{pcm: pcm}
	client := NewGeminiTTSClient(gen, "tts-model", "Algenib")

	resp, err := client.Synthesize(context.Background(), &speech.TTSRequest{Text: "Om shanti"})
	require.NoError(t, err)

	assert.Equal(t, "wav", resp.Format)
	assert.Equal(t, int64(1000), resp.Duration)
	require.Len(t, resp.AudioData, 44+len(pcm))
	assert.Equal(t, "RIFF", string(resp.AudioData[0:4]))
	assert.Equal(t, "WAVE", string(resp.AudioData[8:12]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(resp.AudioData[24:28]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(resp.AudioData[40:44]))

	assert.Equal(t, []string{"AUDIO"}, gen.cfg.ResponseModalities)
	assert.Equal(t, "Algenib", gen.cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
}

func TestGeminiTTSVoiceSelection(t *testing.T) {
	gen := &fakeGenerator{pcm: []byte{0, 0}}
	client := NewGeminiTTSClient(gen, "tts-model", "Algenib")

	_, err := client.Synthesize(context.Background(), &speech.TTSRequest{Text: "hi", Voice: "Kore"})
	require.NoError(t, err)
	assert.Equal(t, "Kore", gen.cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)

	// persona 别名不是 Gemini 音色，保持默认
	_, err = client.Synthesize(context.Background(), &speech.TTSRequest{Text: "hi", Voice: "medical"})
	require.NoError(t, err)
	assert.Equal(t, "Algenib", gen.cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
}

func TestGeminiTTSNoMedia(t *testing.T) {
	client := NewGeminiTTSClient(&fakeGenerator{}, "tts-model", "Algenib")
	_, err := client.Synthesize(context.Background(), &speech.TTSRequest{Text: "hi"})
	assert.ErrorContains(t, err, "no media returned")
}
