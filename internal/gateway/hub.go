package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/internal/bus"
)

// staleAfter is how long without any received frame before the sweeper
// drops a connection (spec §4.D: 60s, giving a 90s detection bound when
// combined with the 30s sweep period).
const staleAfter = 60 * time.Second

// sweepInterval is how often the heartbeat sweeper runs.
const sweepInterval = 30 * time.Second

// fanoutConsumerGroup and receiptsConsumerGroup are the consumer groups
// every hub instance joins (under its own instance name as consumer), so
// each processed-envelope and each read-receipt notification is
// delivered to exactly one hub process.
const (
	fanoutConsumerGroup   = "gateway-fanout"
	receiptsConsumerGroup = "gateway-receipts-fanout"
)

// Hub owns a single instance's connection registry and drives the
// fan-out loop, heartbeat sweeper, and inbound frame dispatch (spec §4.D).
// Cyclic ownership is avoided per spec §9: presence is a derived
// projection, never a back-reference held by Connection.
type Hub struct {
	registry  *Registry
	presence  *PresenceStore
	members   *MemberCache
	publisher bus.Publisher
	instance  string
}

// New builds a Hub. instance is this process's unique consumer name on
// the bus (e.g. hostname:pid), so XAUTOCLAIM can recognize a dead sibling.
func New(registry *Registry, presence *PresenceStore, members *MemberCache, publisher bus.Publisher, instance string) *Hub {
	return &Hub{registry: registry, presence: presence, members: members, publisher: publisher, instance: instance}
}

// Serve runs a connection's lifecycle end to end: read loop, write loop,
// and registry bookkeeping. It blocks until the connection closes.
func (h *Hub) Serve(ctx context.Context, c *Connection, deviceName string) {
	if displaced := h.registry.Add(c); displaced != nil {
		displaced.Close(closeReplaced, "replaced by a newer connection")
	}

	if err := h.presence.MarkOnline(ctx, c.UserID, c.DeviceID); err != nil {
		logx.Errorf("gateway: mark online for %s/%s: %v", c.UserID, c.DeviceID, err)
	}
	h.broadcastPresence(ctx, c.UserID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.WriteLoop()
	}()

	h.readLoop(ctx, c)

	wg.Wait()
	h.registry.Remove(c)
	if err := h.presence.MarkOffline(ctx, c.UserID, c.DeviceID); err != nil {
		logx.Errorf("gateway: mark offline for %s/%s: %v", c.UserID, c.DeviceID, err)
	}
	h.broadcastPresence(ctx, c.UserID)
}

// readLoop drains inbound frames from the websocket until the connection
// closes. A malformed frame is logged and the connection stays open
// (spec §7: single-frame isolation).
func (h *Hub) readLoop(ctx context.Context, c *Connection) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.Close(closeNormal, "read failed")
			return
		}
		c.Touch()

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logx.Infof("gateway: malformed frame from %s: %v", c.ID, err)
			continue
		}

		if err := h.dispatch(ctx, c, frame); err != nil {
			logx.Infof("gateway: dispatch %s frame from %s: %v", frame.Type, c.ID, err)
		}

		select {
		case <-c.Stopped():
			return
		default:
		}
	}
}

// dispatch implements the client->server half of the frame table
// (spec §4.D).
func (h *Hub) dispatch(ctx context.Context, c *Connection, frame Frame) error {
	switch frame.Type {
	case FrameHeartbeat:
		return nil

	case FrameMessage:
		var payload MessagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		env := bus.Envelope{
			MessageID:      payload.MessageID,
			ConversationID: payload.ConversationID,
			SenderID:       c.UserID,
			SenderDeviceID: c.DeviceID,
			ReplyToID:      payload.ReplyToID,
			Ciphertext:     payload.Ciphertext,
			Nonce:          payload.Nonce,
			ClientSentAt:   payload.ClientSentAt,
			ReceivedAt:     time.Now(),
		}
		raw, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return h.publisher.Publish(ctx, bus.TopicOutbound, raw)

	case FramePresence:
		var payload PresencePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		if payload.Custom != "" {
			if err := h.presence.SetCustom(ctx, c.UserID, c.DeviceID, payload.Custom); err != nil {
				return err
			}
		} else {
			if err := h.presence.MarkOnline(ctx, c.UserID, c.DeviceID); err != nil {
				return err
			}
		}
		h.broadcastPresence(ctx, c.UserID)
		return nil

	case FrameTyping:
		var payload TypingPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		return h.broadcastTyping(c, payload)

	case FrameReadReceipt:
		var payload ReadReceiptPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return err
		}
		raw, err := json.Marshal(readReceiptEnvelope{
			MessageID:      payload.MessageID.String(),
			ConversationID: payload.ConversationID.String(),
			UserID:         c.UserID.String(),
			ReadAt:         payload.ReadAt,
		})
		if err != nil {
			return err
		}
		return h.publisher.Publish(ctx, bus.TopicReceipts, raw)

	default:
		logx.Infof("gateway: unknown frame type %q from %s", frame.Type, c.ID)
		return nil
	}
}

type readReceiptEnvelope struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

// broadcastTyping fixes the REDESIGN FLAG in spec §9: typing indicators
// are scoped to the conversation's current members, not broadcast to
// every connection on the instance.
func (h *Hub) broadcastTyping(sender *Connection, payload TypingPayload) error {
	members, err := h.members.Members(payload.ConversationID)
	if err != nil {
		return err
	}

	encoded, err := encodeFrame(FrameTyping, payload)
	if err != nil {
		return err
	}

	for _, userID := range members {
		if userID == sender.UserID {
			continue
		}
		h.sendToUser(userID, encoded)
	}
	return nil
}

// broadcastPresence pushes a user's aggregate presence to every live
// connection of that same user on this instance, including the connection
// whose change triggered it (multi-device presence parity). No presence
// frame is sent to other users, and nothing is published on
// bus.TopicPresence.
func (h *Hub) broadcastPresence(ctx context.Context, userID uuid.UUID) {
	status, lastActive, err := h.presence.Aggregate(ctx, userID)
	if err != nil {
		logx.Errorf("gateway: aggregate presence for %s: %v", userID, err)
		return
	}

	encoded, err := encodeFrame(FramePresence, bus.PresenceEvent{
		UserID: userID, Status: status, LastActive: lastActive,
	})
	if err != nil {
		logx.Errorf("gateway: encode presence frame: %v", err)
		return
	}
	h.sendToUser(userID, encoded)
}

// sendToUser enqueues encoded onto every live connection of userID,
// isolating a slow consumer (closed with 4008) from its siblings
// (spec §4.D backpressure).
func (h *Hub) sendToUser(userID uuid.UUID, encoded []byte) {
	for _, conn := range h.registry.ConnectionsFor(userID) {
		if !conn.TrySend(encoded) {
			conn.Close(closeBackpressure, "slow consumer")
		}
	}
}

// RunFanout subscribes to processed envelopes and delivers each to every
// live connection of every recipient, except the author (spec §4.D
// fan-out loop). Blocks until ctx is cancelled.
func (h *Hub) RunFanout(ctx context.Context, b bus.Subscriber) error {
	return b.Subscribe(ctx, bus.TopicProcessed, fanoutConsumerGroup, h.instance, h.handleProcessed)
}

func (h *Hub) handleProcessed(ctx context.Context, msg bus.Message) error {
	var env bus.ProcessedEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logx.Errorf("gateway: malformed processed envelope %s: %v", msg.ID, err)
		return nil
	}

	members, err := h.members.Members(env.ConversationID)
	if err != nil {
		return err
	}

	encoded, err := encodeFrame(FrameMessage, MessagePayload{
		MessageID:      env.MessageID,
		ConversationID: env.ConversationID,
		ReplyToID:      env.ReplyToID,
		Ciphertext:     env.Ciphertext,
		Nonce:          env.Nonce,
		ClientSentAt:   env.ClientSentAt,
	})
	if err != nil {
		return err
	}

	for _, userID := range members {
		if userID == env.SenderID {
			continue
		}
		h.sendToUser(userID, encoded)
	}
	return nil
}

// RunReceiptFanout subscribes to the Message Processor's republished read
// receipts and pushes each to the original sender's live connections (spec
// §4.E "Read receipts"). TopicReceiptNotifications carries only processor
// output, never the raw client frames on TopicReceipts, so this consumer
// group never re-observes its own upstream's input.
func (h *Hub) RunReceiptFanout(ctx context.Context, b bus.Subscriber) error {
	return b.Subscribe(ctx, bus.TopicReceiptNotifications, receiptsConsumerGroup, h.instance, h.handleReceipt)
}

func (h *Hub) handleReceipt(ctx context.Context, msg bus.Message) error {
	var event bus.ReceiptEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logx.Errorf("gateway: malformed receipt event %s: %v", msg.ID, err)
		return nil
	}

	encoded, err := encodeFrame(FrameReadReceipt, event)
	if err != nil {
		return err
	}
	h.sendToUser(event.UserID, encoded)
	return nil
}

// Sweep closes every connection whose last received frame is older than
// staleAfter, emitting presence-offline for each (spec §4.D heartbeat
// sweeper).
func (h *Hub) Sweep(ctx context.Context) {
	for _, c := range h.registry.Snapshot() {
		if c.IdleSince() > staleAfter {
			c.Close(closeNormal, "heartbeat timeout")
		}
	}
}

// RunSweeper runs Sweep every sweepInterval until ctx is cancelled.
func (h *Hub) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// Shutdown closes every live connection with the shutdown policy code
// (spec §5 graceful shutdown).
func (h *Hub) Shutdown() {
	for _, c := range h.registry.Snapshot() {
		c.Close(closeShutdown, "server shutting down")
	}
}
