package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/netmon-labs/netmon/internal/cliconfig"
)

const helpDescription = `
Track network traffic per application on this machine.

netmon runs nethogs in the background, attributes traffic to the process
that generated it, and stores aggregates in a local sqlite database.
Reports are available from the CLI and can be delivered to an HTTP
endpoint on a schedule.
`

var exampleUsage = strings.TrimSpace(`
  netmon start
  netmon report --days 7
  netmon exclude add 192.168.1.1 "home router"
  netmon webhook set https://example.com/hook --interval 1440
`)

var (
	cfg     = cliconfig.DefaultConfig()
	cfgPath string
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// resolveConfig finishes configuration for the executing command: config
// file first, then environment, with explicitly set flags winning over both.
func resolveConfig(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	path := cfgPath
	if path == "" {
		path = cliconfig.DefaultConfigPath
	}
	if cliconfig.FileExists(path) {
		fc, err := cliconfig.LoadFileConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

func main() {
	root := &cobra.Command{
		Use:     "netmon",
		Short:   "Per-application network traffic monitor",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", fmt.Sprintf("path to config file (default: %s)", cliconfig.DefaultConfigPath))
	pf.StringSliceVar(&cfg.Interfaces, "interfaces", cfg.Interfaces, "interfaces to monitor (default: autodetect)")
	pf.StringVar(&cfg.NethogsPath, "nethogs-path", cfg.NethogsPath, "path to the nethogs binary")
	pf.DurationVar(&cfg.NethogsRefresh, "nethogs-refresh", cfg.NethogsRefresh, "nethogs sampling refresh interval")
	pf.DurationVar(&cfg.DBWriteInterval, "write-interval", cfg.DBWriteInterval, "interval between database flushes")
	pf.DurationVar(&cfg.CheckInterval, "check-interval", cfg.CheckInterval, "supervision check interval")
	pf.IntVar(&cfg.DataRetentionDays, "retention-days", cfg.DataRetentionDays, "days of traffic history to keep")
	pf.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the traffic database")
	pf.StringVar(&cfg.PIDFile, "pid-file", cfg.PIDFile, "pidfile path")
	pf.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file path (empty disables file logging)")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		startCmd(),
		stopCmd(),
		statusCmd(),
		reportCmd(),
		unknownCmd(),
		collectCmd(),
		excludeCmd(),
		webhookCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "netmon: %v\n", err)
		os.Exit(1)
	}
}
