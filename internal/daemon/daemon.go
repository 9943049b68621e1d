package daemon

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/netmon-labs/netmon/internal/cliconfig"
	"github.com/netmon-labs/netmon/internal/collector"
)

// restartDelay is how long to wait before relaunching a dead sampling
// process, giving the old one time to release its handles.
const restartDelay = 5 * time.Second

// spawn starts a worker goroutine and returns a channel closed when it exits.
type spawn func(ctx context.Context) <-chan struct{}

// Daemon runs the collector and its workers under supervision. Every check
// interval it restarts whatever died: the sampling process, the reader, the
// writer, or the webhook worker, each independently of the others.
type Daemon struct {
	cfg *cliconfig.Config
	col *collector.Collector
	pid *PIDFile
	log zerolog.Logger

	startReader  spawn
	startWriter  spawn
	startWebhook spawn

	processAlive   func() bool
	restartProcess func() error

	delay time.Duration

	readerDone  <-chan struct{}
	writerDone  <-chan struct{}
	webhookDone <-chan struct{}
}

// New wires a daemon around a collector. webhookRun is the webhook worker's
// blocking loop; pass nil to run without webhook delivery.
func New(cfg *cliconfig.Config, col *collector.Collector, webhookRun func(ctx context.Context), pid *PIDFile, log zerolog.Logger) *Daemon {
	d := &Daemon{
		cfg:          cfg,
		col:          col,
		pid:          pid,
		log:          log,
		startReader:  col.StartReader,
		startWriter:  col.StartWriter,
		processAlive: col.ProcessAlive,
		delay:        restartDelay,
	}
	d.restartProcess = func() error {
		col.Stop()
		return col.Start()
	}
	if webhookRun != nil {
		d.startWebhook = func(ctx context.Context) <-chan struct{} {
			done := make(chan struct{})
			go func() {
				defer close(done)
				webhookRun(ctx)
			}()
			return done
		}
	}
	return d
}

// Run starts everything and supervises until ctx is canceled. The pidfile is
// claimed for the duration and removed on the way out.
func (d *Daemon) Run(ctx context.Context) error {
	if d.pid != nil {
		if err := d.pid.Write(); err != nil {
			return err
		}
		defer d.pid.Remove()
	}

	if err := d.col.Start(); err != nil {
		return err
	}

	d.readerDone = d.startReader(ctx)
	d.writerDone = d.startWriter(ctx)
	if d.startWebhook != nil {
		d.webhookDone = d.startWebhook(ctx)
	}

	d.log.Info().
		Dur("check_interval", d.cfg.CheckInterval).
		Msg("daemon running")

	ticker := time.NewTicker(d.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		case <-ticker.C:
			d.check(ctx)
		}
	}
}

// check is one supervision pass. Errors and panics are logged, never fatal:
// a failed restart is retried on the next pass.
func (d *Daemon) check(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("supervision check failed")
		}
	}()

	if !d.processAlive() {
		d.log.Warn().Msg("sampling process died, restarting")
		if !sleepCtx(ctx, d.delay) {
			return
		}
		if err := d.restartProcess(); err != nil {
			d.log.Error().Err(err).Msg("failed to restart sampling process")
			return
		}
		// The old reader exited with the closed output stream.
		d.readerDone = d.startReader(ctx)
		d.log.Info().Msg("sampling process restarted")
	} else if !alive(d.readerDone) {
		d.log.Warn().Msg("reader died, restarting")
		d.readerDone = d.startReader(ctx)
	}

	if !alive(d.writerDone) {
		d.log.Warn().Msg("writer died, restarting")
		d.writerDone = d.startWriter(ctx)
	}

	if d.startWebhook != nil && !alive(d.webhookDone) {
		d.log.Warn().Msg("webhook worker died, restarting")
		d.webhookDone = d.startWebhook(ctx)
	}
}

// shutdown stops the sampling process and waits for the writer to run its
// final flush.
func (d *Daemon) shutdown() {
	d.log.Info().Msg("daemon stopping")
	d.col.Stop()
	if d.writerDone != nil {
		select {
		case <-d.writerDone:
		case <-time.After(10 * time.Second):
			d.log.Warn().Msg("writer did not finish final flush in time")
		}
	}
	d.log.Info().Msg("daemon stopped")
}

// alive reports whether a worker's done channel is still open.
func alive(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// sleepCtx waits d or until ctx is canceled; false means canceled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
