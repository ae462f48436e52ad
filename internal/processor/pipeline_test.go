package processor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/corehub/internal/bus"
)

// fakeMembers is an in-memory MembershipChecker for one conversation.
type fakeMembers struct {
	conversationID uuid.UUID
	members        []Member
	touched        []time.Time
}

func (f *fakeMembers) IsMember(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	if conversationID != f.conversationID {
		return false, nil
	}
	for _, m := range f.members {
		if m.UserID == userID {
			return !m.Banned, nil
		}
	}
	return false, nil
}

func (f *fakeMembers) ListMembers(_ context.Context, conversationID uuid.UUID) ([]Member, error) {
	if conversationID != f.conversationID {
		return nil, nil
	}
	return f.members, nil
}

func (f *fakeMembers) TouchConversationLastMessageAt(_ context.Context, _ uuid.UUID, at time.Time) error {
	f.touched = append(f.touched, at)
	return nil
}

// fakeStore is an in-memory Store recording every call the pipeline makes.
type fakeStore struct {
	mu               sync.Mutex
	inserted         map[uuid.UUID]bool
	insertCalls      int
	clearedUnread    []uuid.UUID
	upsertedInboxFor []uuid.UUID
	deliveryRecords  []DeliveryRecord
	readMarks        []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{inserted: map[uuid.UUID]bool{}}
}

func (s *fakeStore) InsertLogEntry(_ context.Context, entry LogEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.inserted[entry.MessageID] {
		return false, nil
	}
	s.inserted[entry.MessageID] = true
	return true, nil
}

func (s *fakeStore) UpsertInbox(_ context.Context, userID, _, _ uuid.UUID, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertedInboxFor = append(s.upsertedInboxFor, userID)
	return nil
}

func (s *fakeStore) ClearUnread(_ context.Context, userID, _, _ uuid.UUID, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearedUnread = append(s.clearedUnread, userID)
	return nil
}

func (s *fakeStore) InsertDeliveryRecords(_ context.Context, records []DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveryRecords = append(s.deliveryRecords, records...)
	return nil
}

func (s *fakeStore) MarkRead(_ context.Context, messageID, _ uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readMarks = append(s.readMarks, messageID)
	return nil
}

// fakePublisher records every published payload per topic.
type fakePublisher struct {
	mu        sync.Mutex
	published map[bus.Topic][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: map[bus.Topic][][]byte{}}
}

func (p *fakePublisher) Publish(_ context.Context, topic bus.Topic, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[topic] = append(p.published[topic], payload)
	return nil
}

func newTestEnvelope(conversationID, senderID uuid.UUID) bus.Envelope {
	return bus.Envelope{
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderDeviceID: "device-1",
		Ciphertext:     []byte("ciphertext"),
		Nonce:          []byte("nonce"),
		ClientSentAt:   time.Now(),
		ReceivedAt:     time.Now(),
	}
}

func TestPipeline_Process_DropsNonMember(t *testing.T) {
	conversationID := uuid.New()
	members := &fakeMembers{conversationID: conversationID}
	store := newFakeStore()
	pub := newFakePublisher()
	p := NewPipeline(members, store, pub)

	env := newTestEnvelope(conversationID, uuid.New())
	require.NoError(t, p.Process(context.Background(), env))

	assert.Equal(t, 0, store.insertCalls)
	assert.Empty(t, pub.published[bus.TopicProcessed])
}

func TestPipeline_Process_FansOutToMembersAndPublishes(t *testing.T) {
	conversationID := uuid.New()
	sender := uuid.New()
	recipient := uuid.New()
	banned := uuid.New()

	members := &fakeMembers{
		conversationID: conversationID,
		members: []Member{
			{UserID: sender},
			{UserID: recipient},
			{UserID: banned, Banned: true},
		},
	}
	store := newFakeStore()
	pub := newFakePublisher()
	p := NewPipeline(members, store, pub)

	env := newTestEnvelope(conversationID, sender)
	require.NoError(t, p.Process(context.Background(), env))

	assert.Equal(t, 1, store.insertCalls)
	assert.Equal(t, []uuid.UUID{sender}, store.clearedUnread)
	assert.Equal(t, []uuid.UUID{recipient}, store.upsertedInboxFor)
	assert.Len(t, store.deliveryRecords, 2)
	assert.Len(t, members.touched, 1)

	require.Len(t, pub.published[bus.TopicProcessed], 1)
	var processed bus.ProcessedEnvelope
	require.NoError(t, json.Unmarshal(pub.published[bus.TopicProcessed][0], &processed))
	assert.Equal(t, env.MessageID, processed.MessageID)
}

func TestPipeline_Process_DuplicateDeliveryIsNoOp(t *testing.T) {
	conversationID := uuid.New()
	sender := uuid.New()
	members := &fakeMembers{conversationID: conversationID, members: []Member{{UserID: sender}}}
	store := newFakeStore()
	pub := newFakePublisher()
	p := NewPipeline(members, store, pub)

	env := newTestEnvelope(conversationID, sender)
	require.NoError(t, p.Process(context.Background(), env))
	require.NoError(t, p.Process(context.Background(), env))

	assert.Equal(t, 2, store.insertCalls)
	assert.Len(t, pub.published[bus.TopicProcessed], 1)
}

func TestPipeline_Handle_MalformedEnvelopeIsDroppedNotRetried(t *testing.T) {
	members := &fakeMembers{conversationID: uuid.New()}
	store := newFakeStore()
	pub := newFakePublisher()
	p := NewPipeline(members, store, pub)

	err := p.Handle(context.Background(), bus.Message{ID: "1-0", Payload: []byte("not json")})
	assert.NoError(t, err)
	assert.Equal(t, 0, store.insertCalls)
}
