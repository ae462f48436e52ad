package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/duskrelay/corehub/cmd/authapi/internal/logic"
	authmw "github.com/duskrelay/corehub/cmd/authapi/internal/middleware"
	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
	"github.com/duskrelay/corehub/cmd/authapi/internal/types"
	"github.com/duskrelay/corehub/pkg/apierr"
)

func ListSessionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authmw.UserID(r.Context())
		if !ok {
			httpx.ErrorCtx(r.Context(), w, apierr.New(apierr.KindUnauthorized, "unauthorized", "missing user"))
			return
		}
		sessionID, _ := authmw.SessionID(r.Context())

		l := logic.NewListSessionsLogic(r.Context(), svcCtx)
		resp, err := l.ListSessions(userID, sessionID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}

func RevokeSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RevokeSessionRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		userID, ok := authmw.UserID(r.Context())
		if !ok {
			httpx.ErrorCtx(r.Context(), w, apierr.New(apierr.KindUnauthorized, "unauthorized", "missing user"))
			return
		}

		l := logic.NewRevokeSessionLogic(r.Context(), svcCtx)
		resp, err := l.RevokeSession(userID, &req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
