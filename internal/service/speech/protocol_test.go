package speech

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRequestLayout(t *testing.T) {
	frame, err := NewClientRequest([]byte(`{}`), NoCompression).MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x10, 0x10, 0x00, 0, 0, 0, 2, '{', '}'}, frame)
}

func TestReadEventFrame(t *testing.T) {
	frame, err := (&Message{
		Header:    Header{MessageType: FullServerResponse, MessageFlags: WithEvent},
		EventType: EventTypeConnectionStarted,
		ConnectID: "conn-1",
		Payload:   []byte("{}"),
	}).MarshalBinary()
	require.NoError(t, err)

	msg, err := ReadMessage(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, EventTypeConnectionStarted, msg.EventType)
	assert.Equal(t, "conn-1", msg.ConnectID)
	assert.Empty(t, msg.SessionID)
	assert.False(t, msg.Finished())
}

func TestReadLastAudioFrameGzip(t *testing.T) {
	var zipped bytes.Buffer
	w := gzip.NewWriter(&zipped)
	_, _ = w.Write([]byte("pcm"))
	require.NoError(t, w.Close())

	frame, err := (&Message{
		Header:   Header{MessageType: AudioOnlyServerResponse, MessageFlags: NegativeSequenceNumber, CompressionMethod: GzipCompression},
		Sequence: -3,
		Payload:  zipped.Bytes(),
	}).MarshalBinary()
	require.NoError(t, err)

	msg, err := ReadMessage(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, int32(-3), msg.Sequence)
	assert.True(t, msg.Finished())

	body, err := msg.Body()
	require.NoError(t, err)
	assert.Equal(t, []byte("pcm"), body)
}

func TestReadRejectsUnknownVersion(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader([]byte{0x21, 0x90, 0x10, 0x00, 0, 0, 0, 0}))
	assert.ErrorContains(t, err, "unsupported protocol version")
}
