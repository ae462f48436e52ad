// Code in the teacher's goctl-scaffolded shape. Safe to edit.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/proc"

	"github.com/duskrelay/corehub/cmd/gatewayapi/internal/config"
	"github.com/duskrelay/corehub/cmd/gatewayapi/internal/svc"
	"github.com/duskrelay/corehub/internal/gateway"
)

var configFile = flag.String("f", "etc/gatewayapi.yaml", "the config file")

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcCtx := svc.NewServiceContext(c)

	go func() {
		if err := svcCtx.Hub.RunFanout(ctx, svcCtx.Bus); err != nil && ctx.Err() == nil {
			logx.Errorf("gatewayapi: fanout loop stopped: %v", err)
		}
	}()
	go func() {
		if err := svcCtx.Hub.RunReceiptFanout(ctx, svcCtx.Bus); err != nil && ctx.Err() == nil {
			logx.Errorf("gatewayapi: receipt fanout loop stopped: %v", err)
		}
	}()
	go svcCtx.Hub.RunSweeper(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := gateway.Handshake(w, r, svcCtx.Tokens)
		if err != nil {
			return
		}
		deviceName := r.URL.Query().Get("device_name")
		svcCtx.Hub.Serve(r.Context(), conn, deviceName)
	})

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	proc.AddShutdownListener(func() {
		cancel()
		svcCtx.Hub.Shutdown()
		_ = svcCtx.Bus.Close()
		_ = server.Close()
	})

	fmt.Printf("Starting gateway hub at %s...\n", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.Errorf("gatewayapi: server stopped: %v", err)
	}
}
