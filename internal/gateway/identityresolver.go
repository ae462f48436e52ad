package gateway

import (
	"context"

	"github.com/google/uuid"

	"github.com/duskrelay/corehub/internal/identity"
)

// IdentityResolver satisfies MemberResolver against the real Identity
// Store, filtering out banned members since a banned member is no longer
// a fan-out recipient (spec §4.D fan-out loop, §4.A membership). The
// MemberResolver interface predates any request context, so lookups run
// against context.Background(); the short TTL in MemberCache keeps any
// individual call's latency off the hot path.
type IdentityResolver struct {
	Store identity.Store
}

func (r IdentityResolver) ListMemberIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	members, err := r.Store.ListMembers(context.Background(), conversationID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		if m.Banned {
			continue
		}
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
