package identity

// SQL text for the relational store, following the teacher's named-parameter
// INSERT / positional-parameter SELECT split (shared/repository/repository.go).
const (
	insertUserQuery = `
		INSERT INTO users (id, username, email, credential_algo, credential_hash, credential_salt,
			public_key, dh_public_key, active, created_at, updated_at)
		VALUES (:id, :username, :email, :credential_algo, :credential_hash, :credential_salt,
			:public_key, :dh_public_key, :active, :created_at, :updated_at)`

	selectUserByIDQuery = `
		SELECT id, username, email, credential_algo, credential_hash, credential_salt,
			public_key, dh_public_key, active, created_at, updated_at
		FROM users WHERE id = $1`

	selectUserByIdentifierQuery = `
		SELECT id, username, email, credential_algo, credential_hash, credential_salt,
			public_key, dh_public_key, active, created_at, updated_at
		FROM users WHERE username = $1 OR email = $1`

	selectUserConflictQuery = `
		SELECT id FROM users WHERE username = $1 OR email = $2`

	insertSessionQuery = `
		INSERT INTO sessions (id, user_id, device_id, device_name, access_token_hash,
			refresh_token_hash, previous_refresh_token_hash, created_at, expires_at, revoked_at)
		VALUES (:id, :user_id, :device_id, :device_name, :access_token_hash,
			:refresh_token_hash, :previous_refresh_token_hash, :created_at, :expires_at, :revoked_at)`

	revokeSessionByIDQuery = `
		UPDATE sessions SET revoked_at = $1
		WHERE id = $2 AND revoked_at IS NULL`

	revokeAllSessionsForUserQuery = `
		UPDATE sessions SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL`

	// rotateSessionTokensQuery shifts the outgoing refresh hash into
	// previous_refresh_token_hash before overwriting it, so a replayed
	// copy of the just-rotated-away token can still be recognized as
	// reuse after this update runs.
	rotateSessionTokensQuery = `
		UPDATE sessions SET access_token_hash = $1, refresh_token_hash = $2,
			previous_refresh_token_hash = refresh_token_hash, expires_at = $3
		WHERE id = $4 AND revoked_at IS NULL`

	selectSessionByIDQuery = `
		SELECT id, user_id, device_id, device_name, access_token_hash, refresh_token_hash,
			previous_refresh_token_hash, created_at, expires_at, revoked_at
		FROM sessions WHERE id = $1`

	selectSessionByRefreshHashQuery = `
		SELECT id, user_id, device_id, device_name, access_token_hash, refresh_token_hash,
			previous_refresh_token_hash, created_at, expires_at, revoked_at
		FROM sessions WHERE refresh_token_hash = $1`

	// selectSessionByPreviousRefreshHashQuery finds the session a refresh
	// token used to belong to, even after it has been rotated away,
	// letting the caller tell a genuine reuse of an old token apart from
	// a token that was simply never issued (spec §4.B token reuse
	// detection).
	selectSessionByPreviousRefreshHashQuery = `
		SELECT id, user_id, device_id, device_name, access_token_hash, refresh_token_hash,
			previous_refresh_token_hash, created_at, expires_at, revoked_at
		FROM sessions WHERE previous_refresh_token_hash = $1`

	selectActiveSessionByDeviceQuery = `
		SELECT id, user_id, device_id, device_name, access_token_hash, refresh_token_hash,
			previous_refresh_token_hash, created_at, expires_at, revoked_at
		FROM sessions WHERE user_id = $1 AND device_id = $2 AND revoked_at IS NULL`

	listSessionsForUserQuery = `
		SELECT id, user_id, device_id, device_name, access_token_hash, refresh_token_hash,
			previous_refresh_token_hash, created_at, expires_at, revoked_at
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`

	selectIsMemberQuery = `
		SELECT EXISTS(
			SELECT 1 FROM group_members
			WHERE conversation_id = $1 AND user_id = $2 AND banned = false
		)`

	listMembersQuery = `
		SELECT conversation_id, user_id, role, permissions, banned, joined_at
		FROM group_members WHERE conversation_id = $1 AND banned = false`

	insertConversationQuery = `
		INSERT INTO conversations (id, kind, name, encrypted, last_message_at, created_at)
		VALUES (:id, :kind, :name, :encrypted, :last_message_at, :created_at)`

	insertMemberQuery = `
		INSERT INTO group_members (conversation_id, user_id, role, permissions, banned, joined_at)
		VALUES (:conversation_id, :user_id, :role, :permissions, :banned, :joined_at)`

	setMemberBannedQuery = `
		UPDATE group_members SET banned = $1
		WHERE conversation_id = $2 AND user_id = $3`

	touchConversationLastMessageAtQuery = `
		UPDATE conversations SET last_message_at = $1
		WHERE id = $2 AND (last_message_at IS NULL OR last_message_at < $1)`
)
