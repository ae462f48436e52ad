// Package bus abstracts the durable message transport connecting the
// Gateway Hub to the Message Processor (spec §4.C). The production
// implementation rides Redis Streams consumer groups, chosen because the
// teacher already depends directly on redis/go-redis/v9 (third_party/cache)
// and nothing in the retrieval pack offers a Kafka- or NATS-class driver.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topic names a logical stream. Each topic maps to one Redis stream key.
type Topic string

const (
	// TopicOutbound carries client-submitted messages awaiting fan-out.
	// Mirrors the spec's "messages" topic (§4.C). Entries carry no key:
	// every topic is a single stream, ordered by arrival.
	TopicOutbound Topic = "messages.outbound"
	// TopicProcessed carries envelopes after the Message Processor has
	// durably persisted them. Mirrors the spec's "processed-messages"
	// topic; the Gateway Hub's fan-out loop subscribes here.
	TopicProcessed Topic = "messages.processed"
	// TopicReceipts carries raw read-receipt frames as submitted by
	// clients, mirroring the spec's "read-receipts" topic (unkeyed, like
	// every topic here). Only the Message Processor subscribes to this topic: it
	// is the one that turns a raw receipt into a durable MarkRead and a
	// notification.
	TopicReceipts Topic = "messages.receipts"
	// TopicReceiptNotifications carries the processor's republished
	// bus.ReceiptEvent once a read receipt has been durably recorded.
	// Kept distinct from TopicReceipts so the processor's own fan-out
	// output is never re-ingested by its own consumer group; only the
	// Gateway Hub subscribes here, to push the notification back to the
	// original sender's live connections.
	TopicReceiptNotifications Topic = "receipts.notifications"
	// TopicPresence carries presence transitions for subscribers outside
	// the originating gateway instance, mirroring the spec's
	// "presence-events" topic (unkeyed, like every topic here).
	TopicPresence Topic = "presence.events"
)

// Envelope is a message as published by the Gateway Hub, before the
// Message Processor assigns it a durable position in the conversation log.
type Envelope struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	SenderDeviceID string    `json:"sender_device_id"`
	ReplyToID      *uuid.UUID `json:"reply_to_id,omitempty"`
	Ciphertext     []byte    `json:"ciphertext"`
	Nonce          []byte    `json:"nonce"`
	ClientSentAt   time.Time `json:"client_sent_at"`
	ReceivedAt     time.Time `json:"received_at"`
}

// ProcessedEnvelope is the record the Message Processor republishes on
// TopicProcessed once an Envelope has been durably persisted to the
// conversation log (spec §4.E step 7). The Gateway Hub's fan-out loop
// delivers this, never the raw inbound Envelope, so that a recipient never
// sees a message the log doesn't also have.
type ProcessedEnvelope struct {
	Envelope
	Bucket int32 `json:"bucket"`
}

// ReceiptEvent notifies subscribers that a message changed delivery state.
type ReceiptEvent struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Status         string    `json:"status"` // delivered | read
	At             time.Time `json:"at"`
}

// PresenceEvent notifies subscribers that a user's presence changed.
type PresenceEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Status     string    `json:"status"`
	LastActive time.Time `json:"last_active"`
}

// Message is a transport-level envelope delivered to a Subscriber. ID is
// the transport's own delivery id (a Redis Streams entry id), distinct
// from any application-level MessageID carried in Payload.
type Message struct {
	ID      string
	Payload []byte
}

// Publisher appends an entry to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, payload []byte) error
}

// Handler processes one delivered message. Returning a non-nil error
// leaves the message pending in the consumer group for redelivery/claim.
type Handler func(ctx context.Context, msg Message) error

// Subscriber reads a topic under a named consumer group, acknowledging
// each message the Handler processes successfully.
type Subscriber interface {
	// Subscribe blocks, dispatching messages to handler until ctx is
	// cancelled or an unrecoverable transport error occurs.
	Subscribe(ctx context.Context, topic Topic, group, consumer string, handler Handler) error
}

// Bus combines both roles, matching how cmd/gatewayapi and cmd/processor
// each hold a single client for both directions of traffic.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
