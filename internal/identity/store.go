package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("identity: not found")

// ErrConflict is returned when a unique constraint would be violated.
var ErrConflict = errors.New("identity: already exists")

// ErrInvalidCredential is returned by VerifyCredential on a password mismatch.
var ErrInvalidCredential = errors.New("identity: invalid credential")

// Store is the transactional relational store backing the identity
// service: accounts, device-bound sessions, and conversation membership.
type Store interface {
	CreateUser(ctx context.Context, username, email, password, publicKey, dhPublicKey string) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
	FindUserByIdentifier(ctx context.Context, identifier string) (User, error)
	VerifyCredential(ctx context.Context, user User, password string) error

	CreateSession(ctx context.Context, sessionID, userID uuid.UUID, deviceID, deviceName, accessToken, refreshToken string, ttl time.Duration) (Session, error)
	RotateSessionTokens(ctx context.Context, sessionID uuid.UUID, accessToken, refreshToken string, ttl time.Duration) error
	RevokeSession(ctx context.Context, sessionID uuid.UUID) error
	RevokeAllSessions(ctx context.Context, userID uuid.UUID) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (Session, error)
	GetSessionByRefreshToken(ctx context.Context, refreshToken string) (Session, error)
	// GetSessionByPreviousRefreshToken finds the session a refresh token
	// used to belong to before it was rotated away, for distinguishing a
	// genuine reuse of an already-rotated token from a token that was
	// never issued at all.
	GetSessionByPreviousRefreshToken(ctx context.Context, refreshToken string) (Session, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]Session, error)

	CreateConversation(ctx context.Context, kind ConversationKind, name *string, encrypted bool, creatorID uuid.UUID) (Conversation, error)
	AddMember(ctx context.Context, conversationID, userID uuid.UUID, role string) error
	SetMemberBanned(ctx context.Context, conversationID, userID uuid.UUID, banned bool) error
	IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	ListMembers(ctx context.Context, conversationID uuid.UUID) ([]Member, error)

	// TouchConversationLastMessageAt advances conversations.last_message_at
	// to at, guarding monotonically (spec §4.E step 4): a late or
	// replayed envelope never moves the timestamp backwards.
	TouchConversationLastMessageAt(ctx context.Context, conversationID uuid.UUID, at time.Time) error
}

// store is the Postgres-backed Store implementation. It follows the
// teacher's BaseRepository split: NamedExecContext for writes keyed by
// struct tags, positional GetContext/SelectContext for reads, and a
// Transaction helper that rolls back on error or panic.
type store struct {
	db     *sqlx.DB
	pepper string
}

// NewStore wires a Store against an already-open *sqlx.DB. pepper is the
// server-wide secret mixed into every token-at-rest hash.
func NewStore(db *sqlx.DB, pepper string) Store {
	return &store{db: db, pepper: pepper}
}

func (s *store) transaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)
	return err
}

func (s *store) CreateUser(ctx context.Context, username, email, password, publicKey, dhPublicKey string) (User, error) {
	var conflict uuid.UUID
	err := s.db.GetContext(ctx, &conflict, selectUserConflictQuery, username, email)
	if err == nil {
		return User{}, ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("check conflict: %w", err)
	}

	hash, salt, err := hashPasswordArgon2(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := User{
		ID:             uuid.New(),
		Username:       username,
		Email:          email,
		CredentialAlgo: credentialAlgoArgon2id,
		CredentialHash: hash,
		CredentialSalt: salt,
		PublicKey:      publicKey,
		DHPublicKey:    dhPublicKey,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := s.db.NamedExecContext(ctx, insertUserQuery, user); err != nil {
		logx.Errorf("create user: %v", err)
		return User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (s *store) FindUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	if err := s.db.GetContext(ctx, &u, selectUserByIDQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		logx.Errorf("find user by id: %v", err)
		return User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (s *store) FindUserByIdentifier(ctx context.Context, identifier string) (User, error) {
	var u User
	if err := s.db.GetContext(ctx, &u, selectUserByIdentifierQuery, identifier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		logx.Errorf("find user by identifier: %v", err)
		return User{}, fmt.Errorf("find user by identifier: %w", err)
	}
	return u, nil
}

// VerifyCredential checks password against the user's stored credential,
// accepting the legacy bcrypt algorithm so accounts predating the
// argon2id migration keep authenticating.
func (s *store) VerifyCredential(ctx context.Context, user User, password string) error {
	var ok bool
	switch user.CredentialAlgo {
	case credentialAlgoArgon2id:
		ok = verifyPasswordArgon2(password, user.CredentialHash, user.CredentialSalt)
	case credentialAlgoBcrypt:
		ok = verifyPasswordBcrypt(password, user.CredentialHash)
	default:
		return fmt.Errorf("identity: unknown credential algo %q", user.CredentialAlgo)
	}

	if !ok {
		return ErrInvalidCredential
	}
	return nil
}

// CreateSession revokes any prior active session for (user, device) and
// inserts the new one atomically, so a device never holds two live
// sessions at once (spec §4.B login). sessionID is supplied by the caller
// so it matches the session_id claim already baked into the token pair.
func (s *store) CreateSession(ctx context.Context, sessionID, userID uuid.UUID, deviceID, deviceName, accessToken, refreshToken string, ttl time.Duration) (Session, error) {
	now := time.Now()
	session := Session{
		ID:               sessionID,
		UserID:           userID,
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		AccessTokenHash:  hashToken(s.pepper, accessToken),
		RefreshTokenHash: hashToken(s.pepper, refreshToken),
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}

	err := s.transaction(ctx, func(tx *sqlx.Tx) error {
		var prior Session
		err := tx.GetContext(ctx, &prior, selectActiveSessionByDeviceQuery, userID, deviceID)
		switch {
		case err == nil:
			logx.Infof("identity: device %s rebinding, revoking prior session %s", deviceID, prior.ID)
			if _, err := tx.ExecContext(ctx, revokeSessionByIDQuery, now, prior.ID); err != nil {
				return fmt.Errorf("revoke prior session: %w", err)
			}
		case errors.Is(err, sql.ErrNoRows):
			// no active session on this device yet, nothing to revoke.
		default:
			return fmt.Errorf("look up prior session: %w", err)
		}

		if _, err := tx.NamedExecContext(ctx, insertSessionQuery, session); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		logx.Errorf("create session: %v", err)
		return Session{}, err
	}

	return session, nil
}

func (s *store) RotateSessionTokens(ctx context.Context, sessionID uuid.UUID, accessToken, refreshToken string, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl)
	res, err := s.db.ExecContext(ctx, rotateSessionTokensQuery,
		hashToken(s.pepper, accessToken), hashToken(s.pepper, refreshToken), expiresAt, sessionID)
	if err != nil {
		logx.Errorf("rotate session tokens: %v", err)
		return fmt.Errorf("rotate session tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate session tokens: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, revokeSessionByIDQuery, time.Now(), sessionID)
	if err != nil {
		logx.Errorf("revoke session: %v", err)
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllSessions tears down every active session for a user. Used when
// refresh-token reuse is detected, to kill the whole session family.
func (s *store) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, revokeAllSessionsForUserQuery, time.Now(), userID)
	if err != nil {
		logx.Errorf("revoke all sessions: %v", err)
		return fmt.Errorf("revoke all sessions: %w", err)
	}
	return nil
}

func (s *store) GetSession(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	var sess Session
	if err := s.db.GetContext(ctx, &sess, selectSessionByIDQuery, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *store) GetSessionByRefreshToken(ctx context.Context, refreshToken string) (Session, error) {
	var sess Session
	err := s.db.GetContext(ctx, &sess, selectSessionByRefreshHashQuery, hashToken(s.pepper, refreshToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session by refresh token: %w", err)
	}
	return sess, nil
}

func (s *store) GetSessionByPreviousRefreshToken(ctx context.Context, refreshToken string) (Session, error) {
	var sess Session
	err := s.db.GetContext(ctx, &sess, selectSessionByPreviousRefreshHashQuery, hashToken(s.pepper, refreshToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session by previous refresh token: %w", err)
	}
	return sess, nil
}

func (s *store) ListSessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	var sessions []Session
	if err := s.db.SelectContext(ctx, &sessions, listSessionsForUserQuery, userID); err != nil {
		logx.Errorf("list sessions: %v", err)
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *store) CreateConversation(ctx context.Context, kind ConversationKind, name *string, encrypted bool, creatorID uuid.UUID) (Conversation, error) {
	conv := Conversation{
		ID:        uuid.New(),
		Kind:      kind,
		Name:      name,
		Encrypted: encrypted,
		CreatedAt: time.Now(),
	}

	err := s.transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertConversationQuery, conv); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		member := Member{ConversationID: conv.ID, UserID: creatorID, Role: "owner", JoinedAt: conv.CreatedAt}
		if _, err := tx.NamedExecContext(ctx, insertMemberQuery, member); err != nil {
			return fmt.Errorf("insert creator membership: %w", err)
		}
		return nil
	})
	if err != nil {
		logx.Errorf("create conversation: %v", err)
		return Conversation{}, err
	}
	return conv, nil
}

func (s *store) AddMember(ctx context.Context, conversationID, userID uuid.UUID, role string) error {
	member := Member{ConversationID: conversationID, UserID: userID, Role: role, JoinedAt: time.Now()}
	if _, err := s.db.NamedExecContext(ctx, insertMemberQuery, member); err != nil {
		logx.Errorf("add member: %v", err)
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *store) SetMemberBanned(ctx context.Context, conversationID, userID uuid.UUID, banned bool) error {
	_, err := s.db.ExecContext(ctx, setMemberBannedQuery, banned, conversationID, userID)
	if err != nil {
		logx.Errorf("set member banned: %v", err)
		return fmt.Errorf("set member banned: %w", err)
	}
	return nil
}

func (s *store) TouchConversationLastMessageAt(ctx context.Context, conversationID uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, touchConversationLastMessageAtQuery, at, conversationID)
	if err != nil {
		logx.Errorf("touch conversation last_message_at: %v", err)
		return fmt.Errorf("touch conversation last_message_at: %w", err)
	}
	return nil
}

func (s *store) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var ok bool
	if err := s.db.GetContext(ctx, &ok, selectIsMemberQuery, conversationID, userID); err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return ok, nil
}

func (s *store) ListMembers(ctx context.Context, conversationID uuid.UUID) ([]Member, error) {
	var members []Member
	if err := s.db.SelectContext(ctx, &members, listMembersQuery, conversationID); err != nil {
		logx.Errorf("list members: %v", err)
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}
