// Code in the teacher's goctl-scaffolded shape. Safe to edit.
package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"github.com/duskrelay/corehub/cmd/authapi/internal/middleware"
	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
)

// RegisterHandlers wires every Auth Authority route (spec §4.B/§6) onto
// server, mirroring the teacher's handler.RegisterHandlers entry point
// (services/gateway/growth/growthapi.go calls this exact function name).
func RegisterHandlers(server *rest.Server, svcCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{Method: http.MethodGet, Path: "/healthz", Handler: HealthzHandler()},
			{Method: http.MethodPost, Path: "/v1/auth/register", Handler: RegisterHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/v1/auth/login", Handler: LoginHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/v1/auth/refresh", Handler: RefreshHandler(svcCtx)},
		},
		rest.WithMiddlewares([]rest.Middleware{middleware.CorrelationID}),
	)

	server.AddRoutes(
		[]rest.Route{
			{Method: http.MethodPost, Path: "/v1/auth/logout", Handler: LogoutHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/v1/me", Handler: MeHandler(svcCtx)},
			{Method: http.MethodGet, Path: "/v1/sessions", Handler: ListSessionsHandler(svcCtx)},
			{Method: http.MethodPost, Path: "/v1/sessions/:id/revoke", Handler: RevokeSessionHandler(svcCtx)},
		},
		rest.WithMiddlewares([]rest.Middleware{middleware.CorrelationID, svcCtx.RequiredAuth}),
	)
}
