package processor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/duskrelay/corehub/internal/identity"
)

// IdentityAdapter satisfies MembershipChecker against the real Identity
// Store, translating identity.Member rows (which carry fields the
// pipeline has no use for) into the pipeline's minimal Member view.
type IdentityAdapter struct {
	Store identity.Store
}

func (a IdentityAdapter) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return a.Store.IsMember(ctx, conversationID, userID)
}

func (a IdentityAdapter) TouchConversationLastMessageAt(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	return a.Store.TouchConversationLastMessageAt(ctx, conversationID, at)
}

func (a IdentityAdapter) ListMembers(ctx context.Context, conversationID uuid.UUID) ([]Member, error) {
	rows, err := a.Store.ListMembers(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]Member, len(rows))
	for i, r := range rows {
		out[i] = Member{UserID: r.UserID, Banned: r.Banned}
	}
	return out, nil
}
