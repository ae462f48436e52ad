package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/internal/authtoken"
)

// handshakeTimeout bounds how long the upgrade + token validation step may
// take before the hub gives up on a client.
const handshakeTimeout = 5 * time.Second

// upgrader is shared across all handshakes; gorilla/websocket recommends
// reusing a single instance. Origin checking is delegated to the reverse
// proxy in front of this service, matching the teacher's pattern of
// leaving network-edge concerns (TLS termination, CORS) to infrastructure
// rather than application code.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var errAuthFailed = errors.New("gateway: handshake auth failed")

// Handshake validates the token and device_id query parameters and
// upgrades the HTTP connection to a WebSocket, without a round-trip to the
// Auth Authority (spec §4.D: "validates the token signature and expiry
// locally").
func Handshake(w http.ResponseWriter, r *http.Request, maker *authtoken.Maker) (*Connection, error) {
	token := r.URL.Query().Get("token")
	deviceID := r.URL.Query().Get("device_id")
	if token == "" || deviceID == "" {
		http.Error(w, "missing token or device_id", http.StatusBadRequest)
		return nil, errAuthFailed
	}

	ctx, cancel := context.WithTimeout(r.Context(), handshakeTimeout)
	defer cancel()

	claims, err := maker.VerifyAccess(ctx, token)
	if err != nil {
		logx.Infof("gateway: reject handshake: %v", err)
		rejectWithCloseCode(w, r, closeAuthFailure, "invalid or expired token")
		return nil, errAuthFailed
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	return NewConnection(ws, claims.Subject, deviceID), nil
}

// rejectWithCloseCode upgrades just far enough to send a policy close
// code the client can read, then tears the socket down. A plain HTTP
// error would not carry a WebSocket close code.
func rejectWithCloseCode(w http.ResponseWriter, r *http.Request, code int, reason string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = ws.Close()
}
