// Code in the teacher's goctl-scaffolded shape. Safe to edit.
package svc

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"

	"github.com/duskrelay/corehub/cmd/authapi/internal/config"
	"github.com/duskrelay/corehub/cmd/authapi/internal/middleware"
	"github.com/duskrelay/corehub/internal/authtoken"
	"github.com/duskrelay/corehub/internal/identity"
	"github.com/duskrelay/corehub/third_party/cache"
	"github.com/duskrelay/corehub/third_party/database"
)

// ServiceContext bundles everything a logic layer needs, built once at
// startup and threaded through every handler (teacher's svc.ServiceContext
// pattern, services/gateway/growth/internal/svc/serviceContext.go).
type ServiceContext struct {
	Config       config.Config
	Store        identity.Store
	Tokens       *authtoken.Maker
	RequiredAuth rest.Middleware
}

// NewServiceContext wires Postgres, Redis, and the token maker the way
// main() wires RPC clients in the teacher: fail fast on any dependency
// that can't come up.
func NewServiceContext(c config.Config) *ServiceContext {
	db, err := database.NewPostgresConnection(c.Database)
	if err != nil {
		logx.Must(err)
	}

	redisConn, err := cache.NewRedisConnection(c.Redis)
	if err != nil {
		logx.Must(err)
	}

	tokens, err := authtoken.New(context.Background(), c.Token, redisConn.GetClient())
	if err != nil {
		logx.Must(err)
	}

	return &ServiceContext{
		Config:       c,
		Store:        identity.NewStore(db, c.Auth.Pepper),
		Tokens:       tokens,
		RequiredAuth: middleware.NewRequiredAuthMiddleware(tokens).Handle,
	}
}
