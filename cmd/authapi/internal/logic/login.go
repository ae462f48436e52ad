package logic

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
	"github.com/duskrelay/corehub/cmd/authapi/internal/types"
	"github.com/duskrelay/corehub/internal/identity"
	"github.com/duskrelay/corehub/pkg/apierr"
)

// defaultRoles is the role set every session is minted with. The system has
// no role hierarchy yet (spec Non-goals); a single "user" role keeps the
// gourdiantoken claims shape populated without inventing unspecified tiers.
var defaultRoles = []string{"user"}

type LoginLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewLoginLogic(ctx context.Context, svcCtx *svc.ServiceContext) *LoginLogic {
	return &LoginLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Login authenticates a device and mints a session (spec §4.B "Login").
// A prior active session on the same device is revoked atomically by the
// store, so a device never carries two live token pairs.
func (l *LoginLogic) Login(req *types.LoginRequest) (*types.AuthResponse, error) {
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" || req.DeviceID == "" {
		return nil, apierr.New(apierr.KindValidation, "missing_field", "identifier, password, and device_id are required")
	}

	user, err := l.svcCtx.Store.FindUserByIdentifier(l.ctx, identifier)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, apierr.New(apierr.KindUnauthorized, "invalid_credentials", "invalid username/email or password")
		}
		return nil, apierr.Wrap(apierr.KindInternal, "lookup_user_failed", "could not look up account", err)
	}

	if err := l.svcCtx.Store.VerifyCredential(l.ctx, user, req.Password); err != nil {
		return nil, apierr.New(apierr.KindUnauthorized, "invalid_credentials", "invalid username/email or password")
	}

	if !user.Active {
		return nil, apierr.New(apierr.KindForbidden, "account_deactivated", "account has been deactivated")
	}

	sessionID := uuid.New()
	pair, err := l.svcCtx.Tokens.IssuePair(l.ctx, user.ID, user.Username, defaultRoles, sessionID)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "issue_token_failed", "could not issue session tokens", err)
	}

	ttl := l.svcCtx.Config.Token.RefreshExpiryDuration
	session, err := l.svcCtx.Store.CreateSession(l.ctx, sessionID, user.ID, req.DeviceID, req.DeviceName, pair.AccessToken, pair.RefreshToken, ttl)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "create_session_failed", "could not persist session", err)
	}
	_ = session

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
