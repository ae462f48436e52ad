// Code in the teacher's goctl-scaffolded shape. Safe to edit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/proc"

	"github.com/duskrelay/corehub/cmd/processor/internal/config"
	"github.com/duskrelay/corehub/cmd/processor/internal/svc"
	"github.com/duskrelay/corehub/internal/bus"
)

var configFile = flag.String("f", "etc/processor.yaml", "the config file")

const (
	outboundConsumerGroup = "processor-outbound"
	receiptsConsumerGroup = "processor-receipts"
)

func main() {
	flag.Parse()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcCtx := svc.NewServiceContext(c)
	consumer := consumerName()

	done := make(chan struct{}, 2)
	go func() {
		defer func() { done <- struct{}{} }()
		if err := svcCtx.Bus.Subscribe(ctx, bus.TopicOutbound, outboundConsumerGroup, consumer, svcCtx.Pipeline.Handle); err != nil && ctx.Err() == nil {
			logx.Errorf("processor: outbound consumer stopped: %v", err)
		}
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		if err := svcCtx.Bus.Subscribe(ctx, bus.TopicReceipts, receiptsConsumerGroup, consumer, svcCtx.ReceiptProcessor.Handle); err != nil && ctx.Err() == nil {
			logx.Errorf("processor: receipts consumer stopped: %v", err)
		}
	}()

	proc.AddShutdownListener(func() {
		cancel()
		_ = svcCtx.Bus.Close()
	})

	fmt.Println("Starting message processor...")
	<-done
	<-done
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "processor"
	}
	return host + "-" + fmt.Sprint(os.Getpid())
}
