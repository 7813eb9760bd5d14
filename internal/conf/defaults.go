// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "faultline")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", time.Sunday)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.debug", false)

	viper.SetDefault("search.host", "http://localhost:9200")
	viper.SetDefault("search.username", "")
	viper.SetDefault("search.password", "")
	viper.SetDefault("search.scope", "faultline")
	viper.SetDefault("search.timeout", 30)
	viper.SetDefault("search.requestspersec", 0)

	viper.SetDefault("migration.source.host", "")
	viper.SetDefault("migration.source.username", "")
	viper.SetDefault("migration.source.password", "")
	viper.SetDefault("migration.retentiondays", 90)
	viper.SetDefault("migration.cutoffdate", "")
	viper.SetDefault("migration.collections", []string{"organization", "project", "stack", "token"})

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")
}
