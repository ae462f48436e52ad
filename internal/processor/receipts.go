package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/internal/bus"
)

// ReceiptProcessor consumes bus.TopicReceipts and republishes a
// notification so the Gateway Hub can push it to the sender (spec §4.E
// "Read receipts"). Grounded on
// original_source/messaging-platform/messaging/src/main.rs:
// handle_read_receipt.
type ReceiptProcessor struct {
	store     Store
	publisher bus.Publisher
}

// NewReceiptProcessor wires the read-receipts consumer against the
// wide-column Store and the bus it republishes notifications on.
func NewReceiptProcessor(store Store, publisher bus.Publisher) *ReceiptProcessor {
	return &ReceiptProcessor{store: store, publisher: publisher}
}

// receiptFrame is the wire shape published by the Gateway Hub on
// bus.TopicReceipts when a client sends a read_receipt frame.
type receiptFrame struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

// Handle is a bus.Handler for bus.TopicReceipts.
func (r *ReceiptProcessor) Handle(ctx context.Context, msg bus.Message) error {
	var frame receiptFrame
	if err := json.Unmarshal(msg.Payload, &frame); err != nil {
		logx.Errorf("processor: malformed read receipt %s: %v", msg.ID, err)
		return nil
	}

	messageID, err := parseUUID(frame.MessageID)
	if err != nil {
		return nil
	}
	userID, err := parseUUID(frame.UserID)
	if err != nil {
		return nil
	}

	if err := r.store.MarkRead(ctx, messageID, userID); err != nil {
		return fmt.Errorf("processor: mark read: %w", err)
	}

	event := bus.ReceiptEvent{
		MessageID: messageID,
		UserID:    userID,
		Status:    "read",
		At:        frame.ReadAt,
	}
	if cid, err := parseUUID(frame.ConversationID); err == nil {
		event.ConversationID = cid
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("processor: marshal receipt event: %w", err)
	}
	if err := r.publisher.Publish(ctx, bus.TopicReceiptNotifications, payload); err != nil {
		return fmt.Errorf("processor: publish receipt event: %w", err)
	}
	return nil
}
