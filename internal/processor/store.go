package processor

import (
	"context"

	"github.com/google/uuid"
)

// Store is the wide-column store backing the conversation log, per-user
// inbox state, and delivery records (spec §3, §4.E). Implemented against
// DynamoDB in dynamostore.go, grounded in the aws-sdk-go-v2/dynamodb usage
// found in the ae-lexs-realtime-messaging-platform manifest.
type Store interface {
	// InsertLogEntry writes entry if (conversation_id, message_id) has not
	// already been written. It reports ok=false, err=nil when the entry
	// already existed, so the caller can treat a bus retry as a no-op
	// rather than an error (spec §4.E step 3, §8 idempotence invariant).
	InsertLogEntry(ctx context.Context, entry LogEntry) (ok bool, err error)

	// UpsertInbox increments unread_count and advances last_message_id /
	// last_message_at for a recipient (spec §4.E step 5).
	UpsertInbox(ctx context.Context, userID, conversationID, lastMessageID uuid.UUID, lastMessageAt int64) error

	// ClearUnread sets the sender's own last-seen pointer and resets their
	// unread count to zero (spec §4.E step 5).
	ClearUnread(ctx context.Context, userID, conversationID, lastMessageID uuid.UUID, lastMessageAt int64) error

	// InsertDeliveryRecords writes one DeliveryRecord per recipient,
	// idempotently (spec §4.E step 6).
	InsertDeliveryRecords(ctx context.Context, records []DeliveryRecord) error

	// MarkRead updates a single delivery record's read state, used by the
	// read-receipts consumer (spec §4.E "Read receipts").
	MarkRead(ctx context.Context, messageID, userID uuid.UUID) error
}
