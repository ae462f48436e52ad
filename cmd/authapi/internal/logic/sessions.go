package logic

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
	"github.com/duskrelay/corehub/cmd/authapi/internal/types"
	"github.com/duskrelay/corehub/pkg/apierr"
)

type ListSessionsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewListSessionsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ListSessionsLogic {
	return &ListSessionsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// ListSessions returns every session recorded for the calling user, newest
// first and including revoked and expired ones (spec §4.B "Session
// listing"), marking which entry is the caller's own.
func (l *ListSessionsLogic) ListSessions(userID, currentSessionID string) (*types.SessionsResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apierr.New(apierr.KindUnauthorized, "invalid_user", "user id missing from token")
	}

	sessions, err := l.svcCtx.Store.ListSessions(l.ctx, uid)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "list_sessions_failed", "could not list sessions", err)
	}

	out := make([]types.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, types.Session{
			ID:         s.ID.String(),
			DeviceID:   s.DeviceID,
			DeviceName: s.DeviceName,
			CreatedAt:  s.CreatedAt,
			ExpiresAt:  s.ExpiresAt,
			RevokedAt:  s.RevokedAt,
			Current:    s.ID.String() == currentSessionID,
		})
	}

	return &types.SessionsResponse{Sessions: out}, nil
}

type RevokeSessionLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRevokeSessionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RevokeSessionLogic {
	return &RevokeSessionLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// RevokeSession revokes one of the caller's own sessions (spec §4.B
// "Session revocation"). A user may only revoke sessions they own, so the
// target session is looked up and its owner compared against the caller.
func (l *RevokeSessionLogic) RevokeSession(userID string, req *types.RevokeSessionRequest) (*types.OK, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apierr.New(apierr.KindUnauthorized, "invalid_user", "user id missing from token")
	}
	sid, err := uuid.Parse(req.SessionID)
	if err != nil {
		return nil, apierr.New(apierr.KindValidation, "invalid_session_id", "session id is not a valid uuid")
	}

	session, err := l.svcCtx.Store.GetSession(l.ctx, sid)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "session_not_found", "session does not exist")
	}
	if session.UserID != uid {
		return nil, apierr.New(apierr.KindForbidden, "not_session_owner", "cannot revoke a session that is not your own")
	}

	if err := l.svcCtx.Store.RevokeSession(l.ctx, sid); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "revoke_session_failed", "could not revoke session", err)
	}
	return &types.OK{OK: true}, nil
}
