package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rendis/sectorscan/internal/config"
	"github.com/rendis/sectorscan/internal/tui"
)

var version = "dev"

var cfg *config.Config

// flagKeys maps command-line flags to configuration keys. Every command
// binds the flags it defines, so a flag set on the command line overrides
// the file and the environment.
var flagKeys = map[string]string{
	"keyword":      "search.keyword",
	"zone":         "search.zone",
	"lat":          "search.center_lat",
	"lng":          "search.center_lng",
	"grid":         "search.grid_size",
	"block-km":     "search.block_size_km",
	"min-radius":   "search.min_radius_m",
	"rps":          "search.requests_per_second",
	"dense-pages":  "search.dense_pages",
	"region":       "search.region",
	"output":       "output.csv",
	"db":           "output.db",
	"call-log":     "output.call_log",
	"page-delay":   "provider.page_delay",
	"chrome-tls":   "provider.chrome_tls",
	"proxy":        "provider.proxy",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-file":     "log.file",
	"metrics-addr": "metrics.addr",
}

var rootCmd = &cobra.Command{
	Use:   "sectorscan",
	Short: "Adaptive sector search for places",
	Long: "Finds every place matching a keyword in an area by recursively splitting " +
		"search sectors that hit the provider's result cap. Without a subcommand the " +
		"interactive interface starts.",
	SilenceUsage: true,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return tui.Run(cfg, version)
	},
}

// persistentPreRun is assigned to rootCmd in init because it refers to rootCmd.
func persistentPreRun(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	opts := []config.Option{config.WithConfigFile(configFile)}
	for name, key := range flagKeys {
		opts = append(opts, config.WithFlag(key, cmd.Flags().Lookup(name)))
	}

	c, err := config.Load(opts...)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	cfg = c

	// The interactive interface owns the terminal, so it logs to a file.
	if cmd == rootCmd && cfg.Log.File == "" {
		cfg.Log.File = config.SessionLogPath(time.Now())
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = persistentPreRun

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default ./sectorscan.yaml or $XDG_CONFIG_HOME/sectorscan/sectorscan.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "json", "log format (json or console)")
	pf.String("log-file", "", "write logs to this file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
