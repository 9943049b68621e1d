package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/netmon-labs/netmon/internal/cliconfig"
	"github.com/netmon-labs/netmon/internal/collector"
	"github.com/netmon-labs/netmon/internal/daemon"
	"github.com/netmon-labs/netmon/internal/netutil"
	"github.com/netmon-labs/netmon/internal/store"
	"github.com/netmon-labs/netmon/internal/webhook"
)

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the monitoring daemon",
		Long: "Start the monitoring daemon in the foreground.\n" +
			"Use a service manager such as systemd to run it in the background.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			return runStart(cmd.Context())
		},
	}
}

func runStart(parent context.Context) error {
	log := cliconfig.Logger(&cfg)
	log.Info().
		Strs("interfaces", cfg.Interfaces).
		Str("data_dir", cfg.DataDir).
		Dur("write_interval", cfg.DBWriteInterval).
		Int("retention_days", cfg.DataRetentionDays).
		Msg("starting netmon")

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("cannot open %s: permission denied (run as root or change --data-dir)", cfg.DBPath())
		}
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	// Repair rows from older versions that stored pids or socket addresses
	// as application names.
	if n, err := st.FixInvalidAppNames(); err != nil {
		log.Warn().Err(err).Msg("failed to repair invalid app names")
	} else if n > 0 {
		log.Info().Int64("rows", n).Msg("repaired invalid app names")
	}

	interfaces := cfg.Interfaces
	if len(interfaces) == 0 {
		interfaces = netutil.Interfaces()
		log.Info().Strs("interfaces", interfaces).Msg("autodetected interfaces")
	}

	col := collector.New(&cfg, st, interfaces, log)
	worker := webhook.NewWorker(st, webhook.NewSender(log), interfaces, log)
	pid := daemon.NewPIDFile(cfg.PIDFile)

	d := daemon.New(&cfg, col, worker.Run, pid, log)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reload the config file on changes. Only the log level can be applied
	// live; everything else needs a restart.
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath
	}
	if cliconfig.FileExists(cfgFile) {
		watcher := cliconfig.NewWatcher(cfgFile, log, func(nc cliconfig.Config) {
			if nc.LogLevel != cfg.LogLevel {
				if lvl, err := zerolog.ParseLevel(nc.LogLevel); err == nil {
					zerolog.SetGlobalLevel(lvl)
					log.Info().Str("level", nc.LogLevel).Msg("log level updated")
				}
			} else {
				log.Info().Msg("config file changed, restart to apply")
			}
		})
		go watcher.Run(ctx)
	}

	err = d.Run(ctx)
	switch {
	case errors.Is(err, collector.ErrToolMissing):
		return fmt.Errorf("nethogs not found: install it (e.g. apt install nethogs) or set --nethogs-path")
	case errors.Is(err, daemon.ErrAlreadyRunning):
		return fmt.Errorf("%w; use 'netmon stop' or remove a stale %s", err, cfg.PIDFile)
	case err != nil && os.IsPermission(err):
		return fmt.Errorf("permission denied: netmon needs root to run nethogs (%w)", err)
	}
	return err
}
