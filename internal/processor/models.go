// Package processor implements the Message Processor (spec §4.E): the
// bus consumer that turns an inbound Envelope into a durable conversation
// log entry, an updated inbox projection, and a republished processed
// event. Grounded directly on
// original_source/messaging-platform/messaging/src/main.rs'
// MessageProcessor.process_message, translated from its ScyllaDB+rdkafka
// pairing onto this module's DynamoDB+Redis-Streams pairing.
package processor

import (
	"time"

	"github.com/google/uuid"
)

// LogEntry is one row of the conversation log: keyed
// (conversation_id, bucket, message_id) per spec §3.
type LogEntry struct {
	ConversationID uuid.UUID
	Bucket         int32
	MessageID      uuid.UUID
	SenderID       uuid.UUID
	Ciphertext     []byte
	Nonce          []byte
	ReplyToID      *uuid.UUID
	ClientSentAt   time.Time
	ReceivedAt     time.Time
}

// DeliveryRecord is one (message, recipient) delivery/read projection.
type DeliveryRecord struct {
	MessageID   uuid.UUID
	UserID      uuid.UUID
	Delivered   bool
	DeliveredAt *time.Time
	Read        bool
	ReadAt      *time.Time
}

// dayBucket derives the integer day bucket from a server receive
// timestamp (spec §4.E step 2): days since the Unix epoch, UTC.
func dayBucket(t time.Time) int32 {
	return int32(t.UTC().Unix() / 86400)
}
