// Package authtoken wires gourdiantoken's JWT maker and Redis-backed
// repository into the access/refresh token lifecycle used by cmd/authapi
// (spec §4.B).
package authtoken

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/gourdian25/gourdiantoken"
)

// Config controls token signing and lifetime policy. It is embedded into
// the authapi service config and loaded via conf.MustLoad.
type Config struct {
	SymmetricKey             string        `json:",optional"`
	Issuer                   string        `json:",default=corehub"`
	Audience                 []string      `json:",optional"`
	AccessExpiryDuration     time.Duration `json:",default=15m"`
	AccessMaxLifetimeExpiry  time.Duration `json:",default=24h"`
	RefreshExpiryDuration    time.Duration `json:",default=168h"`
	RefreshMaxLifetimeExpiry time.Duration `json:",default=720h"`
	RefreshReuseInterval     time.Duration `json:",default=5m"`
	CleanupInterval          time.Duration `json:",default=1h"`
}

// Pair bundles the tokens minted for a single login or rotation.
type Pair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// Maker issues, verifies, rotates, and revokes the JWTs that back sessions.
// It is the sole owner of the gourdiantoken.GourdianTokenMaker instance.
type Maker struct {
	inner gourdiantoken.GourdianTokenMaker
}

// New builds a Maker backed by Redis for revocation and rotation-reuse
// tracking, matching the teacher's pattern of constructing long-lived
// service dependencies once at startup (services/microservices/auth).
func New(ctx context.Context, cfg Config, redisClient *redis.Client) (*Maker, error) {
	repo, err := gourdiantoken.NewRedisTokenRepository(redisClient)
	if err != nil {
		return nil, fmt.Errorf("authtoken: init redis repository: %w", err)
	}

	tokenCfg := gourdiantoken.NewGourdianTokenConfig(
		gourdiantoken.Symmetric,
		true, true,
		cfg.Audience,
		[]string{"HS256", "HS384", "HS512"},
		[]string{"iss", "aud", "nbf", "mle"},
		"HS256", cfg.SymmetricKey, "", "",
		cfg.Issuer,
		cfg.AccessExpiryDuration, cfg.AccessMaxLifetimeExpiry,
		cfg.RefreshExpiryDuration, cfg.RefreshMaxLifetimeExpiry,
		cfg.RefreshReuseInterval, cfg.CleanupInterval,
	)

	inner, err := gourdiantoken.NewGourdianTokenMaker(ctx, tokenCfg, repo)
	if err != nil {
		return nil, fmt.Errorf("authtoken: init token maker: %w", err)
	}

	return &Maker{inner: inner}, nil
}

// IssuePair mints a fresh access/refresh token pair for a session.
func (m *Maker) IssuePair(ctx context.Context, userID uuid.UUID, username string, roles []string, sessionID uuid.UUID) (Pair, error) {
	access, err := m.inner.CreateAccessToken(ctx, userID, username, roles, sessionID)
	if err != nil {
		return Pair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := m.inner.CreateRefreshToken(ctx, userID, username, sessionID)
	if err != nil {
		return Pair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return Pair{
		AccessToken:           access.Token,
		RefreshToken:          refresh.Token,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
	}, nil
}

// VerifyAccess validates an access token and returns its claims.
func (m *Maker) VerifyAccess(ctx context.Context, token string) (*gourdiantoken.AccessTokenClaims, error) {
	return m.inner.VerifyAccessToken(ctx, token)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (m *Maker) VerifyRefresh(ctx context.Context, token string) (*gourdiantoken.RefreshTokenClaims, error) {
	return m.inner.VerifyRefreshToken(ctx, token)
}

// Rotate exchanges a refresh token for a new one and mints a matching
// access token. On reuse of an already-rotated refresh token, gourdiantoken
// fails the rotation — the caller is expected to escalate to revoking the
// whole session family (spec §4.B token reuse detection).
func (m *Maker) Rotate(ctx context.Context, oldRefreshToken, username string, userID uuid.UUID, roles []string, sessionID uuid.UUID) (Pair, error) {
	newRefresh, err := m.inner.RotateRefreshToken(ctx, oldRefreshToken)
	if err != nil {
		logx.Infof("authtoken: refresh rotation rejected: %v", err)
		return Pair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, err := m.inner.CreateAccessToken(ctx, userID, username, roles, sessionID)
	if err != nil {
		return Pair{}, fmt.Errorf("issue access token after rotation: %w", err)
	}

	return Pair{
		AccessToken:           access.Token,
		RefreshToken:          newRefresh.Token,
		AccessTokenExpiresAt:  access.ExpiresAt,
		RefreshTokenExpiresAt: newRefresh.ExpiresAt,
	}, nil
}

// RevokePair revokes both tokens of a session, used on logout.
func (m *Maker) RevokePair(ctx context.Context, accessToken, refreshToken string) error {
	if err := m.inner.RevokeAccessToken(ctx, accessToken); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if err := m.inner.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
