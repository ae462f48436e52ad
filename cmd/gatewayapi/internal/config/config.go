// Code in the teacher's goctl-scaffolded shape. Safe to edit.
package config

import (
	"github.com/zeromicro/go-zero/core/service"

	"github.com/duskrelay/corehub/internal/authtoken"
	"github.com/duskrelay/corehub/third_party/cache"
	"github.com/duskrelay/corehub/third_party/database"
)

// Config is the Gateway Hub's configuration (spec §4.D). It embeds
// service.ServiceConf rather than rest.RestConf: the WebSocket listener is
// a raw net/http server so it can hijack the connection for the upgrade,
// which rest.Server does not expose (SPEC_FULL.md Component D).
type Config struct {
	service.ServiceConf
	Host string
	Port int

	Database database.PostgresConfig
	Redis    cache.RedisConfig
	Token    authtoken.Config
}
