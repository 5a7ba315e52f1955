package cmd

import (
	"github.com/mbertho/scrapview/pkg/refresh"
	"github.com/spf13/viper"
)

// refreshConfig assembles the refresh configuration from viper,
// resolving local paths against the data directory.
func refreshConfig(dir string) refresh.Config {
	return refresh.Config{
		SourcePath:    resolvePath(dir, viper.GetString("source.path")),
		Sheet:         viper.GetString("source.sheet"),
		PricingDir:    resolvePath(dir, viper.GetString("pricing.dir")),
		PricingPrefix: viper.GetString("pricing.prefix"),
	}
}
