package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	payloadField = "payload"

	// claimIdleThreshold is how long an entry may sit pending before
	// another consumer in the group is allowed to claim and retry it.
	claimIdleThreshold = 30 * time.Second
	claimBatchSize     = 32
	readBlockDuration  = 5 * time.Second
	readBatchSize      = 64

	// publishTimeout bounds each XADD issued by Publish.
	publishTimeout = 5 * time.Second

	// deadLetterSuffix names the stream an entry is moved to once its
	// delivery count reaches maxDeliveryAttempts, mirroring the teacher's pattern of a
	// dedicated error-tracking sink (third_party/cache) for poison input.
	deadLetterSuffix   = ".deadletter"
	maxDeliveryAttempts = 5
)

// RedisStreamBus implements Bus over Redis Streams: XADD for publish,
// XREADGROUP + XACK for consumption, and XCLAIM for stealing entries
// stuck with a crashed consumer.
type RedisStreamBus struct {
	client *redis.Client
}

// NewRedisStreamBus wraps an already-connected *redis.Client. Grounded on
// third_party/cache/redis.go's connection-then-wrap pattern.
func NewRedisStreamBus(client *redis.Client) *RedisStreamBus {
	return &RedisStreamBus{client: client}
}

func (b *RedisStreamBus) Close() error {
	return b.client.Close()
}

func (b *RedisStreamBus) Publish(ctx context.Context, topic Topic, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(topic),
		Values: map[string]interface{}{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("bus: publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe runs the read-claim-dispatch loop until ctx is cancelled. It
// ensures the consumer group exists, then alternates between claiming
// abandoned entries from dead consumers and reading fresh ones.
func (b *RedisStreamBus) Subscribe(ctx context.Context, topic Topic, group, consumer string, handler Handler) error {
	stream := string(topic)
	if err := b.ensureGroup(ctx, stream, group); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := b.claimStale(ctx, stream, group, consumer, handler); err != nil {
			logx.Errorf("bus: claim stale entries on %s: %v", stream, err)
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    readBatchSize,
			Block:    readBlockDuration,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logx.Errorf("bus: read group on %s: %v", stream, err)
			continue
		}

		for _, s := range streams {
			for _, entry := range s.Messages {
				b.dispatch(ctx, stream, group, entry, handler)
			}
		}
	}
}

func (b *RedisStreamBus) ensureGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("bus: create group %s on %s: %w", group, stream, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func (b *RedisStreamBus) dispatch(ctx context.Context, stream, group string, entry redis.XMessage, handler Handler) {
	raw, _ := entry.Values[payloadField].(string)

	err := handler(ctx, Message{ID: entry.ID, Payload: []byte(raw)})
	if err == nil {
		if ackErr := b.client.XAck(ctx, stream, group, entry.ID).Err(); ackErr != nil {
			logx.Errorf("bus: ack %s on %s: %v", entry.ID, stream, ackErr)
		}
		return
	}

	logx.Errorf("bus: handler failed for %s on %s: %v", entry.ID, stream, err)

	if count, derr := b.deliveryCount(ctx, stream, group, entry.ID); derr == nil && count >= maxDeliveryAttempts {
		b.moveToDeadLetter(ctx, stream, group, entry)
	}
}

func (b *RedisStreamBus) deliveryCount(ctx context.Context, stream, group, id string) (int64, error) {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, errors.New("bus: no pending entry found")
	}
	return pending[0].RetryCount, nil
}

func (b *RedisStreamBus) moveToDeadLetter(ctx context.Context, stream, group string, entry redis.XMessage) {
	raw := entry.Values[payloadField]
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream + deadLetterSuffix,
		Values: map[string]interface{}{payloadField: raw, "original_id": entry.ID},
	}).Err()
	if err != nil {
		logx.Errorf("bus: move %s to dead letter: %v", entry.ID, err)
		return
	}
	if err := b.client.XAck(ctx, stream, group, entry.ID).Err(); err != nil {
		logx.Errorf("bus: ack dead-lettered %s: %v", entry.ID, err)
	}
}

// claimStale steals entries idle longer than claimIdleThreshold, so a
// consumer that crashed mid-processing doesn't strand its batch.
func (b *RedisStreamBus) claimStale(ctx context.Context, stream, group, consumer string, handler Handler) error {
	messages, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  claimIdleThreshold,
		Start:    "0-0",
		Count:    claimBatchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, entry := range messages {
		b.dispatch(ctx, stream, group, entry, handler)
	}
	return nil
}
