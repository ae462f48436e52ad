package handler

import (
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/duskrelay/corehub/cmd/authapi/internal/logic"
	authmw "github.com/duskrelay/corehub/cmd/authapi/internal/middleware"
	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
	"github.com/duskrelay/corehub/cmd/authapi/internal/types"
	"github.com/duskrelay/corehub/pkg/apierr"
)

func LogoutHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.LogoutRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		sessionID, ok := authmw.SessionID(r.Context())
		if !ok {
			httpx.ErrorCtx(r.Context(), w, apierr.New(apierr.KindUnauthorized, "unauthorized", "missing session"))
			return
		}
		accessToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		l := logic.NewLogoutLogic(r.Context(), svcCtx)
		resp, err := l.Logout(&req, accessToken, sessionID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
