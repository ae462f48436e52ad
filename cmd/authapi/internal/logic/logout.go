package logic

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
	"github.com/duskrelay/corehub/cmd/authapi/internal/types"
	"github.com/duskrelay/corehub/pkg/apierr"
)

type LogoutLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewLogoutLogic(ctx context.Context, svcCtx *svc.ServiceContext) *LogoutLogic {
	return &LogoutLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Logout revokes the calling session's token pair and marks it revoked in
// the store (spec §4.B "Logout"). accessToken is the bearer token the
// handler extracted from the Authorization header; sessionID comes from
// its verified claims.
func (l *LogoutLogic) Logout(req *types.LogoutRequest, accessToken, sessionID string) (*types.OK, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, apierr.New(apierr.KindUnauthorized, "invalid_session", "session id missing from token")
	}

	if req.RefreshToken != "" {
		if err := l.svcCtx.Tokens.RevokePair(l.ctx, accessToken, req.RefreshToken); err != nil {
			logx.Errorf("authapi: revoke token pair for session %s: %v", sid, err)
		}
	}

	if err := l.svcCtx.Store.RevokeSession(l.ctx, sid); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "revoke_session_failed", "could not revoke session", err)
	}

	return &types.OK{OK: true}, nil
}
