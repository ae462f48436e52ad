// Code in the teacher's goctl-scaffolded shape. Safe to edit.
package config

import (
	"github.com/zeromicro/go-zero/rest"

	"github.com/duskrelay/corehub/internal/authtoken"
	"github.com/duskrelay/corehub/third_party/cache"
	"github.com/duskrelay/corehub/third_party/database"
)

// Config is the Auth Authority's (spec §4.B) REST service configuration,
// following the teacher's pattern of embedding rest.RestConf and nesting
// a struct per backing dependency rather than flattening every field.
type Config struct {
	rest.RestConf

	Database database.PostgresConfig
	Redis    cache.RedisConfig
	Token    authtoken.Config

	Auth struct {
		// Pepper is mixed into every stored token hash (spec §4.A); it is
		// never written to the database, only held in process memory.
		Pepper string
	}
}
