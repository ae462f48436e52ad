package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
)

const correlationIDHeader = "X-Correlation-Id"

type correlationKey struct{}

// CorrelationID stamps every request with a correlation id (reusing the
// caller's own X-Correlation-Id if it sent one), echoes it back in the
// response header per spec.md §7 ("returned in a header for support"), and
// attaches it to the request-scoped logger so every logx line emitted
// while handling the request carries it.
func CorrelationID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(correlationIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(correlationIDHeader, id)

		ctx := context.WithValue(r.Context(), correlationKey{}, id)
		ctx = logx.ContextWithFields(ctx, logx.Field("correlation_id", id))
		next(w, r.WithContext(ctx))
	}
}

// CorrelationIDFromContext extracts the id stamped by CorrelationID, for
// logic layers that want to include it in a returned error's Details.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(correlationKey{}).(string)
	return v, ok
}
