// Code in the teacher's goctl-scaffolded shape. Safe to edit.
package config

import (
	"github.com/zeromicro/go-zero/core/service"

	"github.com/duskrelay/corehub/internal/processor"
	"github.com/duskrelay/corehub/third_party/cache"
	"github.com/duskrelay/corehub/third_party/database"
)

// Config is the Message Processor's configuration (spec §4.E). It is a
// pure bus-consumer worker with no listener, so it embeds
// service.ServiceConf rather than rest.RestConf for logging/shutdown
// wiring only.
type Config struct {
	service.ServiceConf

	Database database.PostgresConfig
	Redis    cache.RedisConfig

	DynamoDB struct {
		Region   string
		Endpoint string `json:",optional"`
		Tables   processor.TableNames
	}
}
