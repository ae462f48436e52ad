// Package identity implements the transactional relational store for users,
// device-bound sessions, and conversation membership (spec §4.A).
package identity

import (
	"time"

	"github.com/google/uuid"
)

// ConversationKind enumerates the conversation shapes the store tracks.
type ConversationKind string

const (
	ConversationDirect  ConversationKind = "direct"
	ConversationGroup   ConversationKind = "group"
	ConversationChannel ConversationKind = "channel"
)

// User is the stable account record. Users are never hard-deleted.
type User struct {
	ID              uuid.UUID `db:"id"`
	Username        string    `db:"username"`
	Email           string    `db:"email"`
	CredentialAlgo  string    `db:"credential_algo"`
	CredentialHash  string    `db:"credential_hash"`
	CredentialSalt  []byte    `db:"credential_salt"`
	PublicKey       string    `db:"public_key"`
	DHPublicKey     string    `db:"dh_public_key"`
	Active          bool      `db:"active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Session is a device-bound credential grant. Exactly one non-revoked session
// exists per (user, device) at any time.
type Session struct {
	ID                       uuid.UUID  `db:"id"`
	UserID                   uuid.UUID  `db:"user_id"`
	DeviceID                 string     `db:"device_id"`
	DeviceName               string     `db:"device_name"`
	AccessTokenHash          string     `db:"access_token_hash"`
	RefreshTokenHash         string     `db:"refresh_token_hash"`
	PreviousRefreshTokenHash *string    `db:"previous_refresh_token_hash"`
	CreatedAt                time.Time  `db:"created_at"`
	ExpiresAt                time.Time  `db:"expires_at"`
	RevokedAt                *time.Time `db:"revoked_at"`
}

// Active reports whether the session is neither revoked nor expired.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Conversation is a chat room: direct, group, or broadcast channel.
type Conversation struct {
	ID            uuid.UUID        `db:"id"`
	Kind          ConversationKind `db:"kind"`
	Name          *string          `db:"name"`
	Encrypted     bool             `db:"encrypted"`
	LastMessageAt *time.Time       `db:"last_message_at"`
	CreatedAt     time.Time        `db:"created_at"`
}

// Member is a (conversation, user) membership row.
type Member struct {
	ConversationID uuid.UUID `db:"conversation_id"`
	UserID         uuid.UUID `db:"user_id"`
	Role           string    `db:"role"`
	Permissions    int64     `db:"permissions"`
	Banned         bool      `db:"banned"`
	JoinedAt       time.Time `db:"joined_at"`
}
