package instance

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/shimrun/shimrun/internal/errdefs"
	"github.com/shimrun/shimrun/internal/state"
	"github.com/shimrun/shimrun/internal/workload"
)

func testChain() *workload.Chain {
	return workload.NewChain(workload.NativeExecutor{})
}

// writeBundle lays out a bundle whose process.json runs the given argv.
func writeBundle(t *testing.T, args ...string) string {
	t.Helper()
	bundle := t.TempDir()
	spec := `{"args":[`
	for i, a := range args {
		if i > 0 {
			spec += ","
		}
		spec += `"` + a + `"`
	}
	spec += `]}`
	if err := os.WriteFile(filepath.Join(bundle, "process.json"), []byte(spec), 0644); err != nil {
		t.Fatalf("writing process.json: %v", err)
	}
	return bundle
}

func newTestInstance(t *testing.T, id, bundle string) *Instance {
	t.Helper()
	inst, err := New(id, Config{
		Bundle: bundle,
		Root:   t.TempDir(),
		Chain:  testChain(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return inst
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("sh not available: %v", err)
	}
}

func TestNewContractViolations(t *testing.T) {
	chain := testChain()
	tests := []struct {
		name string
		id   string
		cfg  Config
	}{
		{"empty id", "", Config{Bundle: "/b", Chain: chain}},
		{"missing bundle and root", "x", Config{Chain: chain}},
		{"missing chain", "x", Config{Bundle: "/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.id, tt.cfg); !errors.Is(err, errdefs.ErrInvalidArgument) {
				t.Errorf("New() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestRootOnlyInstance(t *testing.T) {
	// Kill, delete and state address an existing record; a root alone is
	// enough to construct the controller. Starting still needs the bundle.
	inst, err := New("root-only", Config{Root: t.TempDir(), Chain: testChain()})
	if err != nil {
		t.Fatalf("New() error = %v with root but no bundle", err)
	}

	if _, err := inst.Start(); !errors.Is(err, errdefs.ErrStart) {
		t.Errorf("Start() error = %v without a bundle, want ErrStart", err)
	}
	if err := inst.Kill(unix.SIGKILL); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Kill() error = %v for an unknown id, want ErrNotFound", err)
	}
	inst.Delete()
}

func TestStartAndWait(t *testing.T) {
	requireSh(t)

	inst := newTestInstance(t, "exit7", writeBundle(t, "sh", "-c", "exit 7"))
	pid, err := inst.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if pid <= 0 {
		t.Fatalf("Start() pid = %d", pid)
	}

	ch := make(chan ExitStatus, 1)
	inst.Wait(ch)

	select {
	case st := <-ch:
		if st.Code != 7 {
			t.Errorf("exit code = %d, want 7", st.Code)
		}
		if st.ExitedAt.IsZero() {
			t.Error("exit timestamp is zero")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for exit status")
	}

	// The reaper persists the terminal state.
	rec, err := state.Load(inst.Root(), inst.ID())
	if err != nil {
		t.Fatalf("loading record after exit: %v", err)
	}
	if rec.Status != state.Stopped {
		t.Errorf("record status = %v after exit, want Stopped", rec.Status)
	}
}

func TestStartFailureLeavesRecordCreated(t *testing.T) {
	inst := newTestInstance(t, "missing-bin",
		writeBundle(t, "shimrun-test-definitely-not-a-binary"))

	_, err := inst.Start()
	if !errors.Is(err, errdefs.ErrStart) {
		t.Fatalf("Start() error = %v, want ErrStart", err)
	}

	rec, err := state.Load(inst.Root(), inst.ID())
	if err != nil {
		t.Fatalf("loading record after failed start: %v", err)
	}
	if rec.Status != state.Created {
		t.Errorf("record status = %v after failed start, want Created", rec.Status)
	}
}

func TestReapAlreadyReapedChild(t *testing.T) {
	requireSh(t)

	// Reap the child through the stdlib first, so the shim's own wait sees
	// no such child left.
	cmd := exec.Command("sh", "-c", "exit 3")
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("running child: %v", err)
		}
	}

	inst := newTestInstance(t, "already-reaped", writeBundle(t, "sh"))
	go inst.reap(cmd.Process.Pid)

	select {
	case <-inst.Exit().Done():
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the reaper")
	}

	if st := inst.Exit().Wait(); st.Code != 0 {
		t.Errorf("exit code = %d for an already-reaped child, want 0", st.Code)
	}
}

func TestKillSignalValidation(t *testing.T) {
	inst := newTestInstance(t, "sig-check", writeBundle(t, "sh", "-c", "exit 0"))

	// Unsupported signals fail up front, in every instance state: here the
	// instance was never even started.
	for _, sig := range []unix.Signal{unix.SIGTERM, unix.SIGHUP, unix.SIGUSR1} {
		if err := inst.Kill(sig); !errors.Is(err, errdefs.ErrInvalidArgument) {
			t.Errorf("Kill(%s) error = %v, want ErrInvalidArgument", unix.SignalName(sig), err)
		}
	}

	// A supported signal against a never-created record is NotFound.
	if err := inst.Kill(unix.SIGKILL); !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("Kill(SIGKILL) error = %v, want ErrNotFound", err)
	}
}

func TestKillRunningInstance(t *testing.T) {
	requireSh(t)

	inst := newTestInstance(t, "killable", writeBundle(t, "sh", "-c", "sleep 30"))
	if _, err := inst.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := inst.Kill(unix.SIGKILL); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	st := inst.Exit().Wait()
	if st.Code != uint32(unix.SIGKILL) {
		t.Errorf("exit code = %d for signaled process, want signal number %d", st.Code, unix.SIGKILL)
	}

	// The process is gone and the record reads Stopped, so another kill is
	// the distinguished not-running error.
	if err := inst.Kill(unix.SIGKILL); !errors.Is(err, errdefs.ErrNotRunning) {
		t.Errorf("Kill() after exit error = %v, want ErrNotRunning", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	inst := newTestInstance(t, "never-created", writeBundle(t, "sh"))

	// Never-created id: immediate success, any number of times.
	inst.Delete()
	inst.Delete()

	if state.Exists(inst.Root(), inst.ID()) {
		t.Error("record exists after Delete() of a never-created instance")
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	requireSh(t)

	inst := newTestInstance(t, "deleted", writeBundle(t, "sh", "-c", "exit 0"))
	if _, err := inst.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	inst.Exit().Wait()

	inst.Delete()
	if state.Exists(inst.Root(), inst.ID()) {
		t.Error("record exists after Delete()")
	}

	// Deleting again is still success.
	inst.Delete()
}
