package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func testPIDFile(t *testing.T) *PIDFile {
	t.Helper()
	return NewPIDFile(filepath.Join(t.TempDir(), "netmon.pid"))
}

func TestPIDFile_WriteReadRemove(t *testing.T) {
	p := testPIDFile(t)

	if err := p.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pid, ok := p.Read()
	if !ok {
		t.Fatal("Read failed after Write")
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	if err := p.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := p.Read(); ok {
		t.Error("Read succeeded after Remove")
	}
}

func TestPIDFile_RemoveMissing(t *testing.T) {
	p := testPIDFile(t)
	if err := p.Remove(); err != nil {
		t.Errorf("Remove on missing file: %v", err)
	}
}

func TestPIDFile_WriteRefusesLiveProcess(t *testing.T) {
	p := testPIDFile(t)

	// Claim it as ourselves; a second write must detect the live process.
	if err := p.Write(); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	err := p.Write()
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Write = %v, want ErrAlreadyRunning", err)
	}
}

func TestPIDFile_StaleOverwritten(t *testing.T) {
	p := testPIDFile(t)

	// Pick a pid that almost certainly does not exist.
	stale := 1 << 22
	if err := os.WriteFile(p.Path(), []byte(strconv.Itoa(stale)), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := p.Write(); err != nil {
		t.Fatalf("Write over stale pidfile: %v", err)
	}
	pid, _ := p.Read()
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestPIDFile_Running(t *testing.T) {
	p := testPIDFile(t)

	if _, running := p.Running(); running {
		t.Error("Running = true with no pidfile")
	}

	if err := p.Write(); err != nil {
		t.Fatal(err)
	}
	pid, running := p.Running()
	if !running || pid != os.Getpid() {
		t.Errorf("Running = (%d, %v), want (%d, true)", pid, running, os.Getpid())
	}
}

func TestPIDFile_ReadGarbage(t *testing.T) {
	p := testPIDFile(t)
	if err := os.WriteFile(p.Path(), []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Read(); ok {
		t.Error("Read accepted a non-numeric pidfile")
	}
}
