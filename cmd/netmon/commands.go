package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/netmon-labs/netmon/internal/cliconfig"
	"github.com/netmon-labs/netmon/internal/collector"
	"github.com/netmon-labs/netmon/internal/daemon"
	"github.com/netmon-labs/netmon/internal/netutil"
	"github.com/netmon-labs/netmon/internal/store"
	"github.com/netmon-labs/netmon/internal/webhook"
)

// openStore opens the database for a read-only style CLI command.
func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("cannot open %s: permission denied", cfg.DBPath())
		}
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			pid := daemon.NewPIDFile(cfg.PIDFile)
			if err := pid.Stop(5 * time.Second); err != nil {
				return err
			}
			fmt.Println("netmon stopped")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}

			pidf := daemon.NewPIDFile(cfg.PIDFile)
			if pid, running := pidf.Running(); running {
				fmt.Printf("status:  running (pid %d)\n", pid)
				if up, err := pidf.Uptime(); err == nil {
					fmt.Printf("uptime:  %s\n", up.Round(time.Second))
				}
			} else {
				fmt.Println("status:  not running")
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if last, err := st.LastTrafficAt(); err == nil {
				fmt.Printf("last record: %s (%s ago)\n",
					last.Format("2006-01-02 15:04:05"),
					time.Since(last).Round(time.Second))
			} else {
				fmt.Println("last record: none")
			}

			wc, err := st.WebhookConfig()
			if err != nil {
				return err
			}
			switch {
			case wc == nil:
				fmt.Println("webhook: not configured")
			case wc.Enabled:
				fmt.Printf("webhook: enabled, %s every %dm\n", wc.URL, wc.IntervalMinutes)
			default:
				fmt.Printf("webhook: disabled (%s)\n", wc.URL)
			}
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var days float64
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show per-application traffic totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			apps, err := st.TrafficReport(days, time.Now())
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				fmt.Printf("no traffic recorded in the last %g day(s)\n", days)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "APPLICATION\tSENT\tRECEIVED\tTOTAL\t%")
			for _, a := range apps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\n",
					a.Name, a.SentFormatted, a.RecvFormatted, a.TotalFormatted, a.Percentage)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Float64Var(&days, "days", 1, "report window in days")
	return cmd
}

func unknownCmd() *cobra.Command {
	var days float64
	cmd := &cobra.Command{
		Use:   "unknown",
		Short: "Show unattributed traffic grouped by remote IP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.UnknownTrafficReport(days, time.Now())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Printf("no unattributed traffic in the last %g day(s)\n", days)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REMOTE IP\tSENT\tRECEIVED\tTOTAL\tRECORDS")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					r.RemoteIP,
					netutil.FormatBytes(float64(r.BytesSent)),
					netutil.FormatBytes(float64(r.BytesRecv)),
					netutil.FormatBytes(float64(r.BytesTotal)),
					r.Records)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Float64Var(&days, "days", 1, "report window in days")
	return cmd
}

func collectCmd() *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Sample traffic in the foreground without persisting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			interfaces := cfg.Interfaces
			if len(interfaces) == 0 {
				interfaces = netutil.Interfaces()
			}
			log := cliconfig.Logger(&cfg)
			col := collector.New(&cfg, st, interfaces, log)

			fmt.Printf("sampling for %s...\n", duration)
			data, err := col.CollectOnce(cmd.Context(), duration)
			if err != nil {
				if errors.Is(err, collector.ErrToolMissing) {
					return fmt.Errorf("nethogs not found: install it (e.g. apt install nethogs) or set --nethogs-path")
				}
				return err
			}
			if len(data) == 0 {
				fmt.Println("no traffic observed")
				return nil
			}

			apps := make([]string, 0, len(data))
			for app := range data {
				apps = append(apps, app)
			}
			sort.Slice(apps, func(i, j int) bool {
				a, b := data[apps[i]], data[apps[j]]
				return a.Sent+a.Recv > b.Sent+b.Recv
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "APPLICATION\tSENT\tRECEIVED\tREMOTE IPS")
			for _, app := range apps {
				e := data[app]
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					app,
					netutil.FormatBytes(e.Sent),
					netutil.FormatBytes(e.Recv),
					len(e.IPs))
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "how long to sample")
	return cmd
}

func excludeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "Manage IPs excluded from monitoring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List excluded IPs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ips, err := st.ExcludedIPList()
			if err != nil {
				return err
			}
			if len(ips) == 0 {
				fmt.Println("no excluded IPs")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IP\tDESCRIPTION\tADDED")
			for _, e := range ips {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.IP, e.Description, e.AddedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <ip> [description]",
		Short: "Exclude an IP from monitoring",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			ip := args[0]
			if !netutil.IsValidIP(ip) {
				return fmt.Errorf("%q is not a valid IP address", ip)
			}
			desc := ""
			if len(args) == 2 {
				desc = args[1]
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.AddExcludedIP(ip, desc); err != nil {
				return err
			}
			fmt.Printf("excluded %s\n", ip)
			fmt.Println("note: a running daemon applies the change after its next process restart")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <ip>",
		Short: "Stop excluding an IP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			removed, err := st.RemoveExcludedIP(args[0])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Printf("%s was not excluded\n", args[0])
				return nil
			}
			fmt.Printf("removed %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage scheduled report delivery",
	}
	cmd.AddCommand(
		webhookSetCmd(),
		webhookEnableCmd(true),
		webhookEnableCmd(false),
		webhookTestCmd(),
		webhookLogsCmd(),
	)
	return cmd
}

func webhookSetCmd() *cobra.Command {
	var interval int
	cmd := &cobra.Command{
		Use:   "set <url>",
		Short: "Configure the delivery endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			if interval < 1 {
				return fmt.Errorf("interval must be at least 1 minute, got %d", interval)
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetWebhookConfig(args[0], interval, true); err != nil {
				return err
			}
			fmt.Printf("webhook set: %s every %dm\n", args[0], interval)
			return nil
		},
	}
	cmd.Flags().IntVar(&interval, "interval", 1440, "delivery interval in minutes")
	return cmd
}

func webhookEnableCmd(enable bool) *cobra.Command {
	use, short := "enable", "Enable report delivery"
	if !enable {
		use, short = "disable", "Disable report delivery"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ok, err := st.SetWebhookEnabled(enable)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no webhook configured, use 'netmon webhook set' first")
			}
			fmt.Printf("webhook %sd\n", use)
			return nil
		},
	}
}

func webhookTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Deliver a report to the configured endpoint now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			return webhookTest(cmd, st)
		},
	}
}

// webhookTest probes the configured endpoint and then delivers a full
// report, recording the attempt like the scheduled worker would.
func webhookTest(cmd *cobra.Command, st *store.Store) error {
	wc, err := st.WebhookConfig()
	if err != nil {
		return err
	}
	if wc == nil || wc.URL == "" {
		return fmt.Errorf("no webhook configured, use 'netmon webhook set' first")
	}

	log := cliconfig.Logger(&cfg)
	sender := webhook.NewSender(log)

	ok, msg := sender.TestConnection(cmd.Context(), wc.URL)
	fmt.Printf("endpoint check: %s\n", msg)
	if !ok {
		return fmt.Errorf("endpoint unreachable")
	}

	interfaces := cfg.Interfaces
	if len(interfaces) == 0 {
		interfaces = netutil.Interfaces()
	}
	worker := webhook.NewWorker(st, sender, interfaces, log)
	if err := worker.SendNow(cmd.Context()); err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	fmt.Println("report delivered")
	return nil
}

func webhookLogsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent delivery attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd); err != nil {
				return err
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			logs, err := st.WebhookLogs(limit)
			if err != nil {
				return err
			}
			if len(logs) == 0 {
				fmt.Println("no delivery attempts recorded")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSTATUS\tCODE\tMESSAGE")
			for _, l := range logs {
				code := "-"
				if l.ResponseCode != 0 {
					code = strconv.Itoa(l.ResponseCode)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					l.Timestamp.Format("2006-01-02 15:04:05"), l.Status, code, l.Message)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of attempts to show")
	return cmd
}
