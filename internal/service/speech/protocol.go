package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// 火山引擎双向/单向流式语音接口使用的二进制帧格式：
// 4 字节头 | [sequence] | [event, session id, connect id] | [error code] | payload size | payload

const protocolVersion = 0b0001

// MessageType 帧类型（头部第二个字节高 4 位）。
type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

// MessageFlags 帧标志（头部第二个字节低 4 位）。
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
	WithEvent              MessageFlags = 0b0100

	sequenceMask MessageFlags = 0b0011
)

// EventType 服务端事件。
type EventType int32

const (
	EventTypeStartConnection    EventType = 1
	EventTypeFinishConnection   EventType = 2
	EventTypeConnectionStarted  EventType = 50
	EventTypeConnectionFailed   EventType = 51
	EventTypeConnectionFinished EventType = 52
	EventTypeSessionStarted     EventType = 150
	EventTypeSessionFinished    EventType = 152
	EventTypeSessionFailed      EventType = 153
)

type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// Header 帧头，固定 4 字节，HeaderSize 以 4 字节为单位。
type Header struct {
	HeaderSize          uint8
	MessageType         MessageType
	MessageFlags        MessageFlags
	SerializationMethod SerializationMethod
	CompressionMethod   CompressionMethod
}

// Message 解码后的帧。
type Message struct {
	Header    Header
	Sequence  int32
	EventType EventType
	SessionID string
	ConnectID string
	ErrorCode uint32
	Payload   []byte
}

// NewClientRequest builds the single full request frame the TTS endpoint expects.
func NewClientRequest(payload []byte, compression CompressionMethod) *Message {
	return &Message{
		Header: Header{
			HeaderSize:          1,
			MessageType:         FullClientRequest,
			MessageFlags:        NoSequenceNumber,
			SerializationMethod: JSONSerialization,
			CompressionMethod:   compression,
		},
		Payload: payload,
	}
}

func (m *Message) hasSequence() bool {
	flags := m.Header.MessageFlags & sequenceMask
	return flags == PositiveSequenceNumber || flags == NegativeSequenceNumber
}

func (m *Message) hasEvent() bool {
	return m.Header.MessageFlags&WithEvent == WithEvent
}

// IsLastPacket reports whether the sequence flags mark the final frame.
func (m *Message) IsLastPacket() bool {
	flags := m.Header.MessageFlags & sequenceMask
	return flags == LastPacketNoSequence || flags == NegativeSequenceNumber
}

// Finished 以事件或序号判断合成是否结束。
func (m *Message) Finished() bool {
	if m.hasEvent() && m.EventType == EventTypeSessionFinished {
		return true
	}
	return m.IsLastPacket()
}

// Body 返回解压后的 payload。
func (m *Message) Body() ([]byte, error) {
	switch m.Header.CompressionMethod {
	case NoCompression:
		return m.Payload, nil
	case GzipCompression:
		reader, err := gzip.NewReader(bytes.NewReader(m.Payload))
		if err != nil {
			return nil, fmt.Errorf("gzip reader creation failed: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", m.Header.CompressionMethod)
	}
}

// MarshalBinary encodes the frame.
func (m *Message) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	h := m.Header
	if h.HeaderSize == 0 {
		h.HeaderSize = 1
	}

	buf.WriteByte(protocolVersion<<4 | h.HeaderSize)
	buf.WriteByte(uint8(h.MessageType)<<4 | uint8(h.MessageFlags))
	buf.WriteByte(uint8(h.SerializationMethod)<<4 | uint8(h.CompressionMethod))
	buf.WriteByte(0)
	for i := 1; i < int(h.HeaderSize); i++ {
		buf.Write(make([]byte, 4))
	}

	if m.hasSequence() {
		writeUint32(&buf, uint32(m.Sequence))
	}
	if m.hasEvent() {
		writeUint32(&buf, uint32(m.EventType))
		if !eventSkipsSessionID(m.EventType) {
			writeString(&buf, m.SessionID)
		}
		if eventHasConnectID(m.EventType) {
			writeString(&buf, m.ConnectID)
		}
	}
	if h.MessageType == ErrorMessage {
		writeUint32(&buf, m.ErrorCode)
	}

	writeUint32(&buf, uint32(len(m.Payload)))
	buf.Write(m.Payload)
	return buf.Bytes(), nil
}

// ReadMessage decodes one frame from r.
func ReadMessage(r io.Reader) (*Message, error) {
	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if version := head[0] >> 4; version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	msg := &Message{Header: Header{
		HeaderSize:          head[0] & 0x0F,
		MessageType:         MessageType(head[1] >> 4),
		MessageFlags:        MessageFlags(head[1] & 0x0F),
		SerializationMethod: SerializationMethod(head[2] >> 4),
		CompressionMethod:   CompressionMethod(head[2] & 0x0F),
	}}

	if extra := int(msg.Header.HeaderSize)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("failed to read extended header: %w", err)
		}
	}

	if msg.hasSequence() {
		seq, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read sequence: %w", err)
		}
		msg.Sequence = int32(seq)
	}

	if msg.hasEvent() {
		event, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read event type: %w", err)
		}
		msg.EventType = EventType(int32(event))

		if !eventSkipsSessionID(msg.EventType) {
			if msg.SessionID, err = readString(r); err != nil {
				return nil, fmt.Errorf("failed to read session id: %w", err)
			}
		}
		if eventHasConnectID(msg.EventType) {
			if msg.ConnectID, err = readString(r); err != nil {
				return nil, fmt.Errorf("failed to read connect id: %w", err)
			}
		}
	}

	if msg.Header.MessageType == ErrorMessage {
		code, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read error code: %w", err)
		}
		msg.ErrorCode = code
	}

	size, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload size: %w", err)
	}
	if size > 0 {
		msg.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, msg.Payload); err != nil {
			return nil, fmt.Errorf("failed to read payload (expected %d bytes): %w", size, err)
		}
	}
	return msg, nil
}

func eventSkipsSessionID(event EventType) bool {
	switch event {
	case EventTypeStartConnection, EventTypeFinishConnection,
		EventTypeConnectionStarted, EventTypeConnectionFailed,
		EventTypeConnectionFinished:
		return true
	default:
		return false
	}
}

func eventHasConnectID(event EventType) bool {
	switch event {
	case EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return true
	default:
		return false
	}
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readString(r io.Reader) (string, error) {
	size, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
