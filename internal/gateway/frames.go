package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FrameType discriminates the JSON frames exchanged over the persistent
// connection (spec §4.D frame table).
type FrameType string

const (
	FrameHeartbeat    FrameType = "heartbeat"
	FrameMessage      FrameType = "message"
	FramePresence     FrameType = "presence"
	FrameTyping       FrameType = "typing"
	FrameReadReceipt  FrameType = "read_receipt"
)

// Frame is the wire envelope for every client<->gateway message. Payload
// is deferred decoding: callers unmarshal it into the concrete type that
// matches Type.
type Frame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessagePayload carries a client-submitted encrypted envelope.
type MessagePayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	ReplyToID      *uuid.UUID `json:"reply_to_id,omitempty"`
	Ciphertext     []byte    `json:"ciphertext"`
	Nonce          []byte    `json:"nonce"`
	ClientSentAt   time.Time `json:"client_sent_at"`
}

// PresencePayload carries a client-declared presence update.
type PresencePayload struct {
	Status string `json:"status"`
	Custom string `json:"custom,omitempty"`
}

// TypingPayload carries a client's typing-indicator toggle for one
// conversation. Never persisted — forwarded live only.
type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	IsTyping       bool      `json:"is_typing"`
}

// ReadReceiptPayload carries a client's acknowledgement that it has read
// a message.
type ReadReceiptPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	ReadAt         time.Time `json:"read_at"`
}

// encodeFrame marshals a typed payload into a dispatchable Frame.
func encodeFrame(t FrameType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: t, Payload: raw})
}

// Close codes, matching the custom policy range the spec reserves above
// the standard WebSocket close codes (RFC 6455 §7.4.2 leaves 4000-4999 for
// private use).
const (
	closeNormal       = 1000
	closeShutdown     = 1001
	closeAuthFailure  = 4401
	closeBackpressure = 4008
	closeReplaced     = 4409
)
