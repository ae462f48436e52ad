package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/duskrelay/corehub/cmd/authapi/internal/logic"
	authmw "github.com/duskrelay/corehub/cmd/authapi/internal/middleware"
	"github.com/duskrelay/corehub/cmd/authapi/internal/svc"
	"github.com/duskrelay/corehub/pkg/apierr"
)

func MeHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := authmw.UserID(r.Context())
		if !ok {
			httpx.ErrorCtx(r.Context(), w, apierr.New(apierr.KindUnauthorized, "unauthorized", "missing user"))
			return
		}

		l := logic.NewMeLogic(r.Context(), svcCtx)
		resp, err := l.Me(userID)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
