package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *RedisStreamBus {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStreamBus(client)
}

func TestRedisStreamBus_PublishAndSubscribeAcks(t *testing.T) {
	b := newTestBus(t)

	require.NoError(t, b.Publish(context.Background(), TopicOutbound, []byte("hello")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var mu sync.Mutex
	var received []string

	go func() {
		_ = b.Subscribe(ctx, TopicOutbound, "processors", "consumer-1", func(_ context.Context, msg Message) error {
			mu.Lock()
			received = append(received, string(msg.Payload))
			mu.Unlock()
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		pending, err := b.client.XPending(context.Background(), string(TopicOutbound), "processors").Result()
		return err == nil && n == 1 && pending.Count == 0
	}, time.Second, 10*time.Millisecond, "entry should be delivered and acknowledged")
	cancel()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hello"}, received)
}

func TestRedisStreamBus_FailedHandlerLeavesEntryPending(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.Publish(context.Background(), TopicReceipts, []byte("retry-me")))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	attempts := 0
	_ = b.Subscribe(ctx, TopicReceipts, "group-a", "consumer-a", func(_ context.Context, _ Message) error {
		attempts++
		cancel()
		return errors.New("boom")
	})

	assert.Equal(t, 1, attempts)

	pending, err := b.client.XPending(context.Background(), string(TopicReceipts), "group-a").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}
