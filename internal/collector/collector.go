// Package collector owns the nethogs sampling process and the reader/writer
// tasks that turn its output stream into persisted traffic aggregates.
package collector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/netmon-labs/netmon/internal/cliconfig"
)

// ErrToolMissing indicates the nethogs executable is not installed.
var ErrToolMissing = errors.New("nethogs executable not found")

// stopGrace is how long Stop waits after SIGTERM before force-killing.
const stopGrace = 5 * time.Second

// lineChanSize buffers the stdout pump so a slow flush cannot stall nethogs.
const lineChanSize = 256

// Store is the persistence surface the collector needs.
type Store interface {
	SaveTraffic(data map[string]*Entry, ts time.Time) error
	CleanupOldData(cutoff time.Time) (int64, error)
	ExcludedIPs() (map[string]struct{}, error)
}

// Collector supervises the nethogs process and feeds its output through the
// buffer into the store. Reader and writer tasks are started separately so
// the daemon supervisor can restart them independently.
type Collector struct {
	cfg        *cliconfig.Config
	store      Store
	buf        *Buffer
	log        zerolog.Logger
	interfaces []string

	mu       sync.Mutex
	state    State
	cmd      *exec.Cmd
	lines    chan string
	exited   chan struct{}
	stopping chan struct{}

	exMu     sync.RWMutex
	excluded map[string]struct{}

	readerDone chan struct{}
	writerDone chan struct{}

	now func() time.Time
}

// New creates a collector. interfaces is the nethogs device list; pass the
// result of netutil.Interfaces() when the config leaves it empty.
func New(cfg *cliconfig.Config, st Store, interfaces []string, log zerolog.Logger) *Collector {
	return &Collector{
		cfg:        cfg,
		store:      st,
		buf:        NewBuffer(),
		log:        log,
		interfaces: interfaces,
		excluded:   make(map[string]struct{}),
		now:        time.Now,
	}
}

// Buffer exposes the traffic buffer for diagnostics.
func (c *Collector) Buffer() *Buffer {
	return c.buf
}

// State returns the sampling process state.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start launches the nethogs process with its stdout wired into the line
// channel consumed by the reader. Returns ErrToolMissing when the executable
// cannot be found.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStarting || c.state == StateRunning {
		return fmt.Errorf("collector already %s", c.state)
	}
	c.state = StateStarting

	path, err := exec.LookPath(c.cfg.NethogsPath)
	if err != nil {
		c.state = StateCrashed
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %q (install with: apt install nethogs)", ErrToolMissing, c.cfg.NethogsPath)
		}
		return fmt.Errorf("locate nethogs: %w", err)
	}

	refresh := int(c.cfg.NethogsRefresh / time.Second)
	if refresh < 1 {
		refresh = 1
	}
	args := append([]string{"-t", "-d", strconv.Itoa(refresh)}, c.interfaces...)

	cmd := exec.Command(path, args...)
	// Force C locale so the output grammar stays stable.
	cmd.Env = append(os.Environ(), "LANG=C", "LC_ALL=C")
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.state = StateCrashed
		return fmt.Errorf("stdout pipe: %w", err)
	}

	c.log.Info().Str("cmd", path).Strs("interfaces", c.interfaces).Int("refresh_sec", refresh).
		Msg("starting nethogs")

	if err := cmd.Start(); err != nil {
		c.state = StateCrashed
		return fmt.Errorf("start nethogs: %w", err)
	}

	lines := make(chan string, lineChanSize)
	exited := make(chan struct{})
	stopping := make(chan struct{})

	// Pump stdout into the line channel; the channel closing is the
	// reader's signal that the process has exited. The send must stay
	// abortable: with no reader draining during shutdown, a blocking send
	// would keep the pump from ever reaching Wait.
	go func() {
		scanner := bufio.NewScanner(stdout)
	scan:
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stopping:
				break scan
			}
		}
		// Drain the pipe so the process is not blocked on a full
		// stdout while it shuts down.
		for scanner.Scan() {
		}
		close(lines)
		cmd.Wait()
		close(exited)
	}()

	c.cmd = cmd
	c.lines = lines
	c.exited = exited
	c.stopping = stopping
	c.state = StateRunning
	return nil
}

// Stop terminates the nethogs process: SIGTERM, a bounded grace period, then
// SIGKILL. Idempotent.
func (c *Collector) Stop() {
	c.mu.Lock()
	cmd, exited := c.cmd, c.exited
	if c.stopping != nil {
		close(c.stopping)
		c.stopping = nil
	}
	c.state = StateStopped
	c.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	select {
	case <-exited:
		return
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		c.log.Debug().Err(err).Msg("sigterm failed, process likely gone")
	}

	select {
	case <-exited:
	case <-time.After(stopGrace):
		c.log.Warn().Msg("nethogs unresponsive, killing")
		cmd.Process.Kill()
		select {
		case <-exited:
		case <-time.After(stopGrace):
			c.log.Error().Msg("nethogs did not exit after kill")
		}
	}
	c.log.Info().Msg("collector stopped")
}

// ProcessAlive reports whether the nethogs process is running.
func (c *Collector) ProcessAlive() bool {
	c.mu.Lock()
	exited := c.exited
	c.mu.Unlock()

	if exited == nil {
		return false
	}
	select {
	case <-exited:
		return false
	default:
		return true
	}
}

// RefreshExcludedIPs reloads the exclusion set from the store. StartReader
// calls this on every (re)start; excluded IPs added mid-run take effect on
// the next reader restart.
func (c *Collector) RefreshExcludedIPs() {
	set, err := c.store.ExcludedIPs()
	if err != nil {
		c.log.Error().Err(err).Msg("load excluded ips")
		return
	}
	c.exMu.Lock()
	c.excluded = set
	c.exMu.Unlock()
	c.log.Debug().Int("count", len(set)).Msg("excluded ips refreshed")
}

func (c *Collector) isExcluded(ip string) bool {
	c.exMu.RLock()
	defer c.exMu.RUnlock()
	_, ok := c.excluded[ip]
	return ok
}
