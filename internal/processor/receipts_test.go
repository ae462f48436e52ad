package processor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/corehub/internal/bus"
)

func TestReceiptProcessor_Handle_MarksReadAndPublishes(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	r := NewReceiptProcessor(store, pub)

	messageID := uuid.New()
	conversationID := uuid.New()
	userID := uuid.New()

	frame := receiptFrame{
		MessageID:      messageID.String(),
		ConversationID: conversationID.String(),
		UserID:         userID.String(),
		ReadAt:         time.Now(),
	}
	payload, err := json.Marshal(frame)
	require.NoError(t, err)

	require.NoError(t, r.Handle(context.Background(), bus.Message{ID: "1-0", Payload: payload}))

	assert.Equal(t, []uuid.UUID{messageID}, store.readMarks)
	assert.Empty(t, pub.published[bus.TopicReceipts], "must not republish onto its own input topic")
	require.Len(t, pub.published[bus.TopicReceiptNotifications], 1)

	var event bus.ReceiptEvent
	require.NoError(t, json.Unmarshal(pub.published[bus.TopicReceiptNotifications][0], &event))
	assert.Equal(t, messageID, event.MessageID)
	assert.Equal(t, userID, event.UserID)
	assert.Equal(t, "read", event.Status)
}

func TestReceiptProcessor_Handle_MalformedFrameIsDropped(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	r := NewReceiptProcessor(store, pub)

	err := r.Handle(context.Background(), bus.Message{ID: "1-0", Payload: []byte("not json")})
	assert.NoError(t, err)
	assert.Empty(t, store.readMarks)
	assert.Empty(t, pub.published[bus.TopicReceiptNotifications])
}
