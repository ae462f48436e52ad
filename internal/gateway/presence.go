package gateway

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// presenceTTL is how long a device's presence key survives without a
// refresh (spec §4.D presence store).
const presenceTTL = 300 * time.Second

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// PresenceStore is a Redis-backed best-effort presence projection. Device
// keys expire on their own; aggregate status is derived, never stored.
type PresenceStore struct {
	client *redis.Client
}

// NewPresenceStore wraps a Redis client for presence bookkeeping.
func NewPresenceStore(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

type deviceRecord struct {
	Status     string
	Custom     string
	LastActive time.Time
}

func deviceKey(userID uuid.UUID, deviceID string) string {
	return fmt.Sprintf("presence:%s:%s", userID, deviceID)
}

func userSetKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_presence:%s", userID)
}

// MarkOnline records a device as online and adds it to the user's device
// set, both with presenceTTL.
func (p *PresenceStore) MarkOnline(ctx context.Context, userID uuid.UUID, deviceID string) error {
	return p.setDevice(ctx, userID, deviceID, statusOnline, "")
}

// MarkOffline removes a device's presence key and set membership.
func (p *PresenceStore) MarkOffline(ctx context.Context, userID uuid.UUID, deviceID string) error {
	pipe := p.client.Pipeline()
	pipe.Del(ctx, deviceKey(userID, deviceID))
	pipe.SRem(ctx, userSetKey(userID), deviceID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("presence: mark offline: %w", err)
	}
	return nil
}

// SetCustom records a client-declared custom status for one device.
func (p *PresenceStore) SetCustom(ctx context.Context, userID uuid.UUID, deviceID, custom string) error {
	return p.setDevice(ctx, userID, deviceID, custom, custom)
}

func (p *PresenceStore) setDevice(ctx context.Context, userID uuid.UUID, deviceID, status, custom string) error {
	rec := fmt.Sprintf("%s|%s|%d", status, custom, time.Now().Unix())

	pipe := p.client.Pipeline()
	pipe.Set(ctx, deviceKey(userID, deviceID), rec, presenceTTL)
	pipe.SAdd(ctx, userSetKey(userID), deviceID)
	pipe.Expire(ctx, userSetKey(userID), presenceTTL)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("presence: set device: %w", err)
	}
	return nil
}

// Aggregate resolves a user's overall presence across devices, applying
// the precedence rule fixed by spec §9: online > custom > offline, with
// ties broken by the most recent last_active.
func (p *PresenceStore) Aggregate(ctx context.Context, userID uuid.UUID) (status string, lastActive time.Time, err error) {
	deviceIDs, err := p.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presence: list devices: %w", err)
	}
	if len(deviceIDs) == 0 {
		return statusOffline, time.Time{}, nil
	}

	records := make([]deviceRecord, 0, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		raw, getErr := p.client.Get(ctx, deviceKey(userID, deviceID)).Result()
		if getErr == redis.Nil {
			continue
		}
		if getErr != nil {
			return "", time.Time{}, fmt.Errorf("presence: get device: %w", getErr)
		}
		records = append(records, parseDeviceRecord(raw))
	}
	if len(records) == 0 {
		return statusOffline, time.Time{}, nil
	}

	sort.Slice(records, func(i, j int) bool {
		rankI, rankJ := presenceRank(records[i].Status), presenceRank(records[j].Status)
		if rankI != rankJ {
			return rankI > rankJ
		}
		return records[i].LastActive.After(records[j].LastActive)
	})

	best := records[0]
	return best.Status, best.LastActive, nil
}

// presenceRank gives "online" top precedence, any custom status next, and
// "offline" last.
func presenceRank(status string) int {
	switch status {
	case statusOnline:
		return 2
	case statusOffline:
		return 0
	default:
		return 1
	}
}

func parseDeviceRecord(raw string) deviceRecord {
	parts := splitPresenceRecord(raw)
	if len(parts) != 3 {
		return deviceRecord{Status: statusOffline}
	}

	var unixSeconds int64
	fmt.Sscanf(parts[2], "%d", &unixSeconds)

	return deviceRecord{Status: parts[0], Custom: parts[1], LastActive: time.Unix(unixSeconds, 0)}
}

func splitPresenceRecord(raw string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '|' {
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	parts = append(parts, raw[start:])
	return parts
}
