package collector

import (
	"context"

	"github.com/netmon-labs/netmon/internal/parser"
)

// StartReader launches the reader task. The returned done channel closes when
// the task exits, which the daemon supervisor uses as its liveness check.
// The exclusion set is reloaded on every start so restarts pick up IPs
// excluded since the last one.
func (c *Collector) StartReader(ctx context.Context) <-chan struct{} {
	c.RefreshExcludedIPs()

	c.mu.Lock()
	lines := c.lines
	done := make(chan struct{})
	c.readerDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.runReader(ctx, lines)
	}()
	return done
}

// ReaderAlive reports whether the reader task is running.
func (c *Collector) ReaderAlive() bool {
	c.mu.Lock()
	done := c.readerDone
	c.mu.Unlock()
	return alive(done)
}

// runReader consumes nethogs output lines until shutdown or until the line
// channel closes. A closed channel means the monitored process exited; the
// reader returns and the supervisor treats the next liveness check as a
// process-death event rather than a normal stop.
func (c *Collector) runReader(ctx context.Context, lines <-chan string) {
	c.log.Info().Msg("reader started")
	defer c.log.Info().Msg("reader stopped")

	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lines:
			if !ok {
				if ctx.Err() == nil {
					c.log.Warn().Msg("nethogs output closed, process exited")
				}
				return
			}

			s, ok := parser.Parse(line)
			if !ok {
				c.log.Debug().Str("line", line).Msg("skipped line")
				continue
			}
			if s.RemoteIP != "" && c.isExcluded(s.RemoteIP) {
				continue
			}
			c.buf.Add(s.App, s.BytesSent, s.BytesRecv, s.RemoteIP)
		}
	}
}

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
