package gateway

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/collection"
)

// membershipCacheTTL is the short-lived window the fan-out loop is allowed
// to trust a conversation's member list before re-querying the Identity
// Store (spec §4.D fan-out loop).
const membershipCacheTTL = 5 * time.Second

// MemberResolver queries the current, non-banned member set of a
// conversation — implemented by IdentityResolver (over
// internal/identity.Store) in production.
type MemberResolver interface {
	ListMemberIDs(conversationID uuid.UUID) ([]uuid.UUID, error)
}

// MemberCache wraps go-zero's collection.Cache, already part of the
// teacher's zeromicro/go-zero dependency tree, so the fan-out loop
// doesn't hit the Identity Store on every single envelope. Entries expire
// after membershipCacheTTL; no size limit is set, so there is no LRU
// eviction.
type MemberCache struct {
	cache    *collection.Cache
	resolver MemberResolver
}

// NewMemberCache builds a cache in front of resolver.
func NewMemberCache(resolver MemberResolver) (*MemberCache, error) {
	c, err := collection.NewCache(membershipCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("gateway: init member cache: %w", err)
	}
	return &MemberCache{cache: c, resolver: resolver}, nil
}

// Members returns the conversation's current member ids, using the cached
// value when fresh and falling through to the resolver otherwise.
func (m *MemberCache) Members(conversationID uuid.UUID) ([]uuid.UUID, error) {
	key := conversationID.String()

	value, err := m.cache.Take(key, func() (any, error) {
		return m.resolver.ListMemberIDs(conversationID)
	})
	if err != nil {
		return nil, err
	}

	ids, ok := value.([]uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("gateway: member cache: unexpected value type for %s", key)
	}
	return ids, nil
}

// Invalidate drops a conversation's cached membership, used when a
// membership-changing operation needs the next fan-out to see it
// immediately rather than waiting out the TTL.
func (m *MemberCache) Invalidate(conversationID uuid.UUID) {
	m.cache.Del(conversationID.String())
}
