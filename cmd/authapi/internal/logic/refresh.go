package logic

import (
	"context"
	"errors"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
	"github.com/duskrelay/corehub/cmd/authapi/internal/types"
	"github.com/duskrelay/corehub/internal/identity"
	"github.com/duskrelay/corehub/pkg/apierr"
)

type RefreshLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRefreshLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RefreshLogic {
	return &RefreshLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Refresh rotates a session's token pair (spec §4.B "Token refresh").
// gourdiantoken's own rotation bookkeeping rejects an already-rotated
// refresh token before it ever parses that token's claims, so neither a
// failed VerifyRefresh nor a failed Rotate carries the subject to revoke.
// Either failure falls back to onInvalidRefresh, which looks the
// presented token up by its *previous* hash: a hit means this exact token
// was genuinely issued and has since been rotated away, i.e. reuse, and
// escalates to a full family revocation (spec §4.B "Token reuse
// detection"); a miss means the token was never valid to begin with and
// gets the plain unauthorized response.
func (l *RefreshLogic) Refresh(req *types.RefreshRequest) (*types.AuthResponse, error) {
	if req.RefreshToken == "" {
		return nil, apierr.New(apierr.KindValidation, "missing_field", "refresh_token is required")
	}

	claims, err := l.svcCtx.Tokens.VerifyRefresh(l.ctx, req.RefreshToken)
	if err != nil {
		return nil, l.onInvalidRefresh(req.RefreshToken)
	}

	user, err := l.svcCtx.Store.FindUserByID(l.ctx, claims.Subject)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "lookup_user_failed", "could not look up account", err)
	}

	pair, err := l.svcCtx.Tokens.Rotate(l.ctx, req.RefreshToken, user.Username, user.ID, defaultRoles, claims.SessionID)
	if err != nil {
		return nil, l.onInvalidRefresh(req.RefreshToken)
	}

	ttl := l.svcCtx.Config.Token.RefreshExpiryDuration
	if err := l.svcCtx.Store.RotateSessionTokens(l.ctx, claims.SessionID, pair.AccessToken, pair.RefreshToken, ttl); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "rotate_session_failed", "could not persist rotated session", err)
	}

	return &types.AuthResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		ExpiresInSeconds: int64(l.svcCtx.Config.Token.AccessExpiryDuration.Seconds()),
		User: types.User{
			ID:          user.ID.String(),
			Username:    user.Username,
			Email:       user.Email,
			PublicKey:   user.PublicKey,
			DHPublicKey: user.DHPublicKey,
			CreatedAt:   user.CreatedAt,
		},
	}, nil
}

func (l *RefreshLogic) onInvalidRefresh(refreshToken string) error {
	session, err := l.svcCtx.Store.GetSessionByPreviousRefreshToken(l.ctx, refreshToken)
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return apierr.New(apierr.KindUnauthorized, "invalid_refresh_token", "refresh token is invalid or expired")
	case err != nil:
		return apierr.Wrap(apierr.KindInternal, "lookup_session_failed", "could not look up session", err)
	}

	if revokeErr := l.svcCtx.Store.RevokeAllSessions(l.ctx, session.UserID); revokeErr != nil {
		logx.Errorf("authapi: revoke sessions after reuse detection for %s: %v", session.UserID, revokeErr)
	}
	return apierr.New(apierr.KindUnauthorized, "refresh_reuse_detected", "refresh token already used; all sessions revoked")
}
