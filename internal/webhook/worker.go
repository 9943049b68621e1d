package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/netmon-labs/netmon/internal/store"
)

const (
	enabledPoll = 60 * time.Second
	idlePoll    = 300 * time.Second
)

// Worker periodically checks the stored webhook configuration and delivers
// a traffic report when the configured interval has elapsed. When no webhook
// is configured or it is disabled the worker backs off to a slower poll.
type Worker struct {
	store      Store
	sender     *Sender
	interfaces []string
	log        zerolog.Logger

	now func() time.Time
}

func NewWorker(st Store, sender *Sender, interfaces []string, log zerolog.Logger) *Worker {
	return &Worker{
		store:      st,
		sender:     sender,
		interfaces: interfaces,
		log:        log,
		now:        time.Now,
	}
}

// Run loops until ctx is canceled, delivering reports as they come due.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().Msg("webhook worker started")
	for {
		wait := w.tick(ctx)
		select {
		case <-ctx.Done():
			w.log.Info().Msg("webhook worker stopped")
			return
		case <-time.After(wait):
		}
	}
}

// tick runs one check and returns how long to sleep before the next one.
func (w *Worker) tick(ctx context.Context) time.Duration {
	cfg, err := w.store.WebhookConfig()
	if err != nil {
		w.log.Error().Err(err).Msg("failed to load webhook config")
		return idlePoll
	}
	if cfg == nil || !cfg.Enabled || cfg.URL == "" {
		return idlePoll
	}

	if !w.due(cfg) {
		return enabledPoll
	}

	if err := w.deliver(ctx, cfg); err != nil {
		w.log.Error().Err(err).Str("url", cfg.URL).Msg("webhook delivery failed")
	}
	return enabledPoll
}

func (w *Worker) due(cfg *store.WebhookConfig) bool {
	if cfg.LastSent == nil {
		return true
	}
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	return w.now().Sub(*cfg.LastSent) >= interval
}

// deliver builds the report for the configured interval and posts it,
// recording the outcome in the webhook log. LastSent only advances on
// success so a failed delivery is retried on the next due check.
func (w *Worker) deliver(ctx context.Context, cfg *store.WebhookConfig) error {
	period, days := PeriodForInterval(cfg.IntervalMinutes)

	payload, err := BuildPayload(w.store, period, days, w.interfaces, w.now())
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	code, err := w.sender.Send(ctx, cfg.URL, payload)
	if err != nil {
		if logErr := w.store.AppendWebhookLog(w.now(), "error", code, err.Error()); logErr != nil {
			w.log.Error().Err(logErr).Msg("failed to record webhook log")
		}
		return err
	}

	if err := w.store.AppendWebhookLog(w.now(), "success", code, "OK"); err != nil {
		w.log.Error().Err(err).Msg("failed to record webhook log")
	}
	if err := w.store.UpdateWebhookLastSent(w.now()); err != nil {
		return fmt.Errorf("update last sent: %w", err)
	}
	return nil
}

// SendNow forces an immediate delivery regardless of the interval. Used by
// the CLI to test a configured webhook end to end.
func (w *Worker) SendNow(ctx context.Context) error {
	cfg, err := w.store.WebhookConfig()
	if err != nil {
		return fmt.Errorf("load webhook config: %w", err)
	}
	if cfg == nil || cfg.URL == "" {
		return fmt.Errorf("no webhook configured")
	}
	return w.deliver(ctx, cfg)
}
