package logic

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
	"github.com/duskrelay/corehub/cmd/authapi/internal/types"
	"github.com/duskrelay/corehub/pkg/apierr"
)

type MeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewMeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *MeLogic {
	return &MeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Me returns the caller's own profile, including the public key material
// other clients fetch to establish sessions with them (spec's supplemental
// "GET /me" addition, SPEC_FULL.md Component B).
func (l *MeLogic) Me(userID string) (*types.User, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apierr.New(apierr.KindUnauthorized, "invalid_user", "user id missing from token")
	}

	user, err := l.svcCtx.Store.FindUserByID(l.ctx, uid)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, "user_not_found", "account no longer exists")
	}

	return &types.User{
		ID:          user.ID.String(),
		Username:    user.Username,
		Email:       user.Email,
		PublicKey:   user.PublicKey,
		DHPublicKey: user.DHPublicKey,
		CreatedAt:   user.CreatedAt,
	}, nil
}
