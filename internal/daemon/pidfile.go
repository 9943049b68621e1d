// Package daemon supervises the collector process and its workers, restarting
// whichever part dies while the daemon itself stays up.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning is returned when another live daemon holds the pidfile.
var ErrAlreadyRunning = errors.New("daemon already running")

// PIDFile records the daemon's process id so other invocations can find it.
type PIDFile struct {
	path string
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

func (p *PIDFile) Path() string { return p.path }

// Write claims the pidfile for the current process. A pidfile pointing at a
// live process fails with ErrAlreadyRunning; a stale one is overwritten.
func (p *PIDFile) Write() error {
	if pid, ok := p.Read(); ok && processAlive(pid) {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create pidfile dir: %w", err)
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(p.path, []byte(pid+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pidfile: %w", err)
	}
	return nil
}

// Read returns the recorded pid. ok is false when the file is missing or
// does not contain a pid.
func (p *PIDFile) Read() (pid int, ok bool) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, false
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Remove deletes the pidfile. Missing file is not an error.
func (p *PIDFile) Remove() error {
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Running reports whether the recorded process is alive. A stale pidfile
// counts as not running.
func (p *PIDFile) Running() (int, bool) {
	pid, ok := p.Read()
	if !ok {
		return 0, false
	}
	if !processAlive(pid) {
		return pid, false
	}
	return pid, true
}

// Stop signals the recorded process with SIGTERM and waits up to timeout for
// it to exit.
func (p *PIDFile) Stop(timeout time.Duration) error {
	pid, running := p.Running()
	if !running {
		return fmt.Errorf("daemon not running")
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("pid %d did not exit within %s", pid, timeout)
}

// Uptime returns how long the recorded process has been running, based on
// the start time of its /proc entry.
func (p *PIDFile) Uptime() (time.Duration, error) {
	pid, running := p.Running()
	if !running {
		return 0, fmt.Errorf("daemon not running")
	}
	info, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	if err != nil {
		return 0, fmt.Errorf("stat /proc/%d: %w", pid, err)
	}
	return time.Since(info.ModTime()), nil
}

// processAlive probes a pid with signal 0. EPERM means the process exists
// but belongs to another user, which still counts as alive.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
