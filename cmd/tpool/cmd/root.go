// Package cmd implements the tpool command line.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tahsin716/tpool/internal/cli"
	"github.com/tahsin716/tpool/internal/config"
	"github.com/tahsin716/tpool/internal/logging"
)

var (
	// cfg is the loaded configuration, with flag overrides applied.
	cfg *config.Config
	// console prints user-facing status lines.
	console *cli.Console
	// logger is the structured logger handed to the pool.
	logger *zap.Logger

	flagConfigPath string
	flagLogLevel   string
	flagLogJSON    bool
	flagQuiet      bool

	// Version is set at build time with -ldflags "-X ...cmd.Version=v1.2.3".
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "tpool",
	Short: "Run workloads on a fixed-lifecycle worker pool.",
	Long: `Run workloads on a fixed-lifecycle worker pool.

Workers are spawned up front, fed through an unbounded FIFO queue and
stopped cooperatively. For example:
  tpool run --concurrency 5 --runs 20
  tpool run --drain --fail-every 4 --error-mode fail-fast
  tpool config init`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		console = cli.New(flagQuiet)

		// Commands that create the config file or print the version must
		// work even when the current file is broken.
		switch cmd.Name() {
		case "init", "version", "completion":
			logger = zap.NewNop()
			return nil
		}

		var err error
		cfg, err = config.Load(flagConfigPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		if cmd.Flags().Changed("log-json") {
			cfg.LogJSON = flagLogJSON
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.LogLevel, cfg.LogJSON)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit JSON logs")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only print errors")

	rootCmd.AddCommand(runCmd, configCmd, versionCmd)
}
