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

// RegisterLogic creates a new account (spec §4.A "Account creation").
// Grounded on the teacher's goctl logic shape (services/gateway/growth/
// internal/logic/habits/listHabitsLogic.go): a struct embedding logx.Logger
// plus ctx/svcCtx, one exported method matching the RPC/handler name.
type RegisterLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRegisterLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RegisterLogic {
	return &RegisterLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Register creates an account and then the caller's first device-bound
// session, returning the same AuthResponse shape Login returns so a
// freshly registered device can start sending over the gateway without a
// second round trip. The account and the session are separate writes, not
// one transaction: if issuing tokens or creating the session fails, the
// account stays created without a session.
func (l *RegisterLogic) Register(req *types.RegisterRequest) (*types.AuthResponse, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, apierr.New(apierr.KindValidation, "missing_field", "username, email, and password are required")
	}
	if req.PublicKey == "" || req.DHPublicKey == "" {
		return nil, apierr.New(apierr.KindValidation, "missing_key_material", "public_key and dh_public_key are required")
	}
	if len(req.Password) < 8 {
		return nil, apierr.New(apierr.KindValidation, "weak_password", "password must be at least 8 characters")
	}
	if req.DeviceID == "" {
		return nil, apierr.New(apierr.KindValidation, "missing_field", "device_id is required")
	}

	user, err := l.svcCtx.Store.CreateUser(l.ctx, req.Username, req.Email, req.Password, req.PublicKey, req.DHPublicKey)
	if err != nil {
		if errors.Is(err, identity.ErrConflict) {
			return nil, apierr.New(apierr.KindConflict, "account_exists", "username or email already registered")
		}
		return nil, apierr.Wrap(apierr.KindInternal, "create_user_failed", "could not create account", err)
	}

	sessionID := uuid.New()
	pair, err := l.svcCtx.Tokens.IssuePair(l.ctx, user.ID, user.Username, defaultRoles, sessionID)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "issue_token_failed", "could not issue session tokens", err)
	}

	ttl := l.svcCtx.Config.Token.RefreshExpiryDuration
	if _, err := l.svcCtx.Store.CreateSession(l.ctx, sessionID, user.ID, req.DeviceID, req.DeviceName, pair.AccessToken, pair.RefreshToken, ttl); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "create_session_failed", "could not persist session", err)
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
