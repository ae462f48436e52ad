package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskrelay/corehub/internal/bus"
)

// fakeResolver is an in-memory MemberResolver fixed to one conversation.
type fakeResolver struct {
	conversationID uuid.UUID
	memberIDs      []uuid.UUID
}

func (f fakeResolver) ListMemberIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	if conversationID != f.conversationID {
		return nil, nil
	}
	return f.memberIDs, nil
}

// fakePublisher records every published payload per topic.
type fakePublisher struct {
	published map[bus.Topic][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: map[bus.Topic][][]byte{}}
}

func (p *fakePublisher) Publish(_ context.Context, topic bus.Topic, payload []byte) error {
	p.published[topic] = append(p.published[topic], payload)
	return nil
}

// testHub wires a Hub against miniredis presence and an in-memory member
// resolver, mirroring the wiring cmd/gatewayapi does at startup.
type testHub struct {
	hub      *Hub
	registry *Registry
	presence *PresenceStore
	pub      *fakePublisher
}

func newTestHub(t *testing.T, resolver MemberResolver) *testHub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry := NewRegistry()
	presence := NewPresenceStore(client)
	members, err := NewMemberCache(resolver)
	require.NoError(t, err)
	pub := newFakePublisher()

	return &testHub{
		hub:      New(registry, presence, members, pub, "test-instance"),
		registry: registry,
		presence: presence,
		pub:      pub,
	}
}

// dialConnection upgrades an httptest server connection into a registered
// *Connection, running Hub.Serve in the background the way cmd/gatewayapi's
// /ws handler does, and returns the client side for the test to drive.
func dialConnection(t *testing.T, h *testHub, userID uuid.UUID, deviceID string) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conn := NewConnection(ws, userID, deviceID)
		go h.hub.Serve(context.Background(), conn, "test-device")
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	cleanup := func() {
		client.Close()
		server.Close()
	}
	return client, cleanup
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestHub_DispatchMessage_PublishesToOutboundTopic(t *testing.T) {
	conversationID := uuid.New()
	sender := uuid.New()
	th := newTestHub(t, fakeResolver{conversationID: conversationID, memberIDs: []uuid.UUID{sender}})

	client, cleanup := dialConnection(t, th, sender, "device-1")
	defer cleanup()

	// drain the initial presence push so it doesn't interfere.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	payload, err := json.Marshal(MessagePayload{
		MessageID:      uuid.New(),
		ConversationID: conversationID,
		Ciphertext:     []byte("ct"),
		Nonce:          []byte("n"),
		ClientSentAt:   time.Now(),
	})
	require.NoError(t, err)
	frame, err := json.Marshal(Frame{Type: FrameMessage, Payload: payload})
	require.NoError(t, err)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, frame))

	require.Eventually(t, func() bool {
		return len(th.pub.published[bus.TopicOutbound]) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastTyping_SkipsSenderAndNonMembers(t *testing.T) {
	conversationID := uuid.New()
	typist := uuid.New()
	peer := uuid.New()
	th := newTestHub(t, fakeResolver{conversationID: conversationID, memberIDs: []uuid.UUID{typist, peer}})

	typistConn := NewConnection(nil, typist, "device-typist")
	th.registry.Add(typistConn)
	outsiderConn := NewConnection(nil, uuid.New(), "device-outsider")
	th.registry.Add(outsiderConn)
	peerRegistered := th.registry.Add(NewConnection(nil, peer, "device-peer"))
	assert.Nil(t, peerRegistered)

	err := th.hub.broadcastTyping(typistConn, TypingPayload{ConversationID: conversationID, IsTyping: true})
	require.NoError(t, err)

	peerConns := th.registry.ConnectionsFor(peer)
	require.Len(t, peerConns, 1)
	select {
	case payload := <-peerConns[0].Outbound():
		var frame Frame
		require.NoError(t, json.Unmarshal(payload, &frame))
		assert.Equal(t, FrameTyping, frame.Type)
	default:
		t.Fatal("expected a typing frame enqueued for the peer")
	}

	select {
	case <-typistConn.Outbound():
		t.Fatal("typist should not receive its own typing frame")
	default:
	}
	select {
	case <-outsiderConn.Outbound():
		t.Fatal("non-member should not receive the typing frame")
	default:
	}
}

func TestHub_HandleProcessed_SkipsAuthor(t *testing.T) {
	conversationID := uuid.New()
	author := uuid.New()
	recipient := uuid.New()
	th := newTestHub(t, fakeResolver{conversationID: conversationID, memberIDs: []uuid.UUID{author, recipient}})

	th.registry.Add(NewConnection(nil, author, "device-author"))
	th.registry.Add(NewConnection(nil, recipient, "device-recipient"))

	env := bus.ProcessedEnvelope{
		Envelope: bus.Envelope{
			MessageID:      uuid.New(),
			ConversationID: conversationID,
			SenderID:       author,
			Ciphertext:     []byte("ct"),
			Nonce:          []byte("n"),
		},
	}
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, th.hub.handleProcessed(context.Background(), bus.Message{ID: "1-0", Payload: payload}))

	authorConns := th.registry.ConnectionsFor(author)
	select {
	case <-authorConns[0].Outbound():
		t.Fatal("author should not receive its own message back")
	default:
	}

	recipientConns := th.registry.ConnectionsFor(recipient)
	select {
	case payload := <-recipientConns[0].Outbound():
		var frame Frame
		require.NoError(t, json.Unmarshal(payload, &frame))
		assert.Equal(t, FrameMessage, frame.Type)
	default:
		t.Fatal("expected a message frame enqueued for the recipient")
	}
}

func TestHub_HandleReceipt_DeliversNotificationToSender(t *testing.T) {
	th := newTestHub(t, fakeResolver{})
	userID := uuid.New()
	th.registry.Add(NewConnection(nil, userID, "device-1"))

	notification, err := json.Marshal(bus.ReceiptEvent{UserID: userID, Status: "read"})
	require.NoError(t, err)
	require.NoError(t, th.hub.handleReceipt(context.Background(), bus.Message{ID: "1-0", Payload: notification}))

	conns := th.registry.ConnectionsFor(userID)
	select {
	case payload := <-conns[0].Outbound():
		var frame Frame
		require.NoError(t, json.Unmarshal(payload, &frame))
		assert.Equal(t, FrameReadReceipt, frame.Type)
	default:
		t.Fatal("expected a read-receipt frame enqueued for the original sender")
	}
}

func TestHub_Sweep_ClosesStaleConnections(t *testing.T) {
	userID := uuid.New()
	th := newTestHub(t, fakeResolver{})

	client, cleanup := dialConnection(t, th, userID, "device-1")
	defer cleanup()
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool {
		return len(th.registry.ConnectionsFor(userID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn := th.registry.ConnectionsFor(userID)[0]
	conn.mu.Lock()
	conn.lastHeartbeat = time.Now().Add(-2 * staleAfter)
	conn.mu.Unlock()

	th.hub.Sweep(context.Background())

	select {
	case <-conn.Stopped():
	case <-time.After(2 * time.Second):
		t.Fatal("expected sweep to close the stale connection")
	}
}
