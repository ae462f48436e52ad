// Code in the teacher's goctl-scaffolded shape. Safe to edit.
package svc

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/duskrelay/corehub/cmd/processor/internal/config"
	"github.com/duskrelay/corehub/internal/bus"
	"github.com/duskrelay/corehub/internal/identity"
	"github.com/duskrelay/corehub/internal/processor"
	"github.com/duskrelay/corehub/third_party/cache"
	"github.com/duskrelay/corehub/third_party/database"
)

// ServiceContext wires the Message Processor's dependencies: the
// relational Identity Store (membership checks), the wide-column Store
// (conversation log, inbox, delivery status), and the bus both pipelines
// consume from and publish to.
type ServiceContext struct {
	Config           config.Config
	Bus              bus.Bus
	Pipeline         *processor.Pipeline
	ReceiptProcessor *processor.ReceiptProcessor
}

func NewServiceContext(c config.Config) *ServiceContext {
	db, err := database.NewPostgresConnection(c.Database)
	if err != nil {
		logx.Must(err)
	}

	redisConn, err := cache.NewRedisConnection(c.Redis)
	if err != nil {
		logx.Must(err)
	}
	redisBus := bus.NewRedisStreamBus(redisConn.GetClient())

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.DynamoDB.Region))
	if err != nil {
		logx.Must(err)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = &c.DynamoDB.Endpoint
		}
	})
	wideStore := processor.NewDynamoStore(dynamoClient, c.DynamoDB.Tables)

	// The pepper is irrelevant here: the processor never creates or
	// rotates a session, only checks membership.
	relStore := identity.NewStore(db, "")
	adapter := processor.IdentityAdapter{Store: relStore}

	return &ServiceContext{
		Config:           c,
		Bus:              redisBus,
		Pipeline:         processor.NewPipeline(adapter, wideStore, redisBus),
		ReceiptProcessor: processor.NewReceiptProcessor(wideStore, redisBus),
	}
}
