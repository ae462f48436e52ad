package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/internal/bus"
)

// MembershipChecker validates a sender against a conversation's current,
// non-banned member set (spec §4.E step 1) and exposes the set itself for
// the inbox/delivery fan-out in steps 4-6. Satisfied by IdentityAdapter
// over internal/identity.Store.
type MembershipChecker interface {
	IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, conversationID uuid.UUID) ([]Member, error)
	TouchConversationLastMessageAt(ctx context.Context, conversationID uuid.UUID, at time.Time) error
}

// Member is the subset of identity.Member the pipeline needs, defined
// locally so this package has no compile-time dependency on the
// relational schema beyond what it actually reads.
type Member struct {
	UserID uuid.UUID
	Banned bool
}

// Pipeline implements the 7-step Message Processor (spec §4.E), consuming
// bus.TopicOutbound and producing bus.TopicProcessed. Grounded directly on
// original_source/messaging-platform/messaging/src/main.rs:
// MessageProcessor.process_message.
type Pipeline struct {
	members   MembershipChecker
	store     Store
	publisher bus.Publisher
}

// NewPipeline wires the Message Processor against the Identity Store, the
// wide-column Store, and the bus it republishes to.
func NewPipeline(members MembershipChecker, store Store, publisher bus.Publisher) *Pipeline {
	return &Pipeline{members: members, store: store, publisher: publisher}
}

// Handle is a bus.Handler for bus.TopicOutbound: decode, process, ack.
// Returning an error here leaves the entry pending for bus-level retry
// (spec §4.E failure policy); Process itself absorbs the one case that
// must NOT retry (membership-denied) by returning nil after a drop.
func (p *Pipeline) Handle(ctx context.Context, msg bus.Message) error {
	var env bus.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logx.Errorf("processor: malformed envelope %s, sending to dead letter: %v", msg.ID, err)
		if pubErr := p.publisher.Publish(ctx, bus.TopicOutbound+".deadletter", msg.Payload); pubErr != nil {
			return fmt.Errorf("processor: dead-letter malformed envelope %s: %w", msg.ID, pubErr)
		}
		return nil
	}
	return p.Process(ctx, env)
}

// Process runs the seven steps of spec §4.E against one envelope.
func (p *Pipeline) Process(ctx context.Context, env bus.Envelope) error {
	// Step 1: membership check. A non-member's message is dropped, not
	// retried — poison-message isolation.
	isMember, err := p.members.IsMember(ctx, env.ConversationID, env.SenderID)
	if err != nil {
		return fmt.Errorf("processor: membership check: %w", err)
	}
	if !isMember {
		logx.Infof("processor: dropping message %s: sender %s not a member of %s",
			env.MessageID, env.SenderID, env.ConversationID)
		return nil
	}

	receivedAt := env.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	// Step 2: bucket derivation.
	bucket := dayBucket(receivedAt)

	// Step 3: idempotent conversation-log write.
	entry := LogEntry{
		ConversationID: env.ConversationID,
		Bucket:         bucket,
		MessageID:      env.MessageID,
		SenderID:       env.SenderID,
		Ciphertext:     env.Ciphertext,
		Nonce:          env.Nonce,
		ReplyToID:      env.ReplyToID,
		ClientSentAt:   env.ClientSentAt,
		ReceivedAt:     receivedAt,
	}
	inserted, err := p.store.InsertLogEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("processor: insert log entry: %w", err)
	}
	if !inserted {
		// Already processed by a prior delivery attempt. The spec's
		// idempotence invariant (§8) requires this to be a pure no-op,
		// including skipping the republish — a prior attempt already
		// emitted it, or is in flight and will.
		logx.Infof("processor: message %s already processed, skipping", env.MessageID)
		return nil
	}

	// Step 4: conversation index update, monotonic guard against
	// out-of-order redelivery.
	if err := p.members.TouchConversationLastMessageAt(ctx, env.ConversationID, receivedAt); err != nil {
		return fmt.Errorf("processor: touch conversation: %w", err)
	}

	members, err := p.members.ListMembers(ctx, env.ConversationID)
	if err != nil {
		return fmt.Errorf("processor: list members: %w", err)
	}

	receivedAtMillis := receivedAt.UnixMilli()
	records := make([]DeliveryRecord, 0, len(members))

	for _, m := range members {
		if m.Banned {
			continue
		}
		if m.UserID == env.SenderID {
			// Step 5 (sender branch): clear own unread pointer.
			if err := p.store.ClearUnread(ctx, m.UserID, env.ConversationID, env.MessageID, receivedAtMillis); err != nil {
				return fmt.Errorf("processor: clear sender unread: %w", err)
			}
			// Step 6 (sender branch): delivered at insert time.
			records = append(records, DeliveryRecord{
				MessageID: env.MessageID, UserID: m.UserID,
				Delivered: true, DeliveredAt: &receivedAt,
			})
			continue
		}

		// Step 5 (recipient branch): increment unread, advance pointers.
		if err := p.store.UpsertInbox(ctx, m.UserID, env.ConversationID, env.MessageID, receivedAtMillis); err != nil {
			return fmt.Errorf("processor: upsert inbox for %s: %w", m.UserID, err)
		}
		// Step 6 (recipient branch): starts undelivered.
		records = append(records, DeliveryRecord{MessageID: env.MessageID, UserID: m.UserID})
	}

	if err := p.store.InsertDeliveryRecords(ctx, records); err != nil {
		return fmt.Errorf("processor: insert delivery records: %w", err)
	}

	// Step 7: emit on processed-messages.
	processed := bus.ProcessedEnvelope{Envelope: env, Bucket: bucket}
	processed.ReceivedAt = receivedAt
	payload, err := json.Marshal(processed)
	if err != nil {
		return fmt.Errorf("processor: marshal processed envelope: %w", err)
	}
	if err := p.publisher.Publish(ctx, bus.TopicProcessed, payload); err != nil {
		return fmt.Errorf("processor: publish processed envelope: %w", err)
	}

	logx.Infof("processor: processed message %s for conversation %s", env.MessageID, env.ConversationID)
	return nil
}
