// Package instance implements the lifecycle of a single container
// instance: create, start, kill, delete and wait, plus the background
// reaper that reports the init process's exit status exactly once.
//
// Controller state moves Created -> Starting -> Running -> Exited, with
// Deleted terminal from any prior state. The persisted record only
// distinguishes Created/Running/Stopped; the refinements live here.
package instance

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/shimrun/shimrun/internal/cgroups"
	"github.com/shimrun/shimrun/internal/errdefs"
	"github.com/shimrun/shimrun/internal/metrics"
	"github.com/shimrun/shimrun/internal/rootdir"
	"github.com/shimrun/shimrun/internal/state"
	"github.com/shimrun/shimrun/internal/stdio"
	"github.com/shimrun/shimrun/internal/workload"
	"github.com/shimrun/shimrun/pkg/logging"
)

// Config carries everything an instance needs besides its id. Chain is
// always required. Bundle is required to start; kill, delete and state
// address an existing record and may supply Root instead.
type Config struct {
	Bundle    string
	Namespace string
	Stdin     string
	Stdout    string
	Stderr    string

	// Root overrides the resolved state directory; when empty it is
	// derived from the bundle's options.json and the namespace.
	Root string

	// Limits are optional resource caps applied to the instance's cgroup
	// after launch.
	Limits *cgroups.Limits

	Chain   *workload.Chain
	Logger  *logging.Logger
	Metrics *metrics.Lifecycle
}

// Instance controls one container. It is safe to use from the goroutines
// servicing concurrent orchestrator calls; kill and delete never trust
// in-memory state and reload the persisted record instead.
type Instance struct {
	id     string
	bundle string
	stdin  string
	stdout string
	stderr string
	root   string

	chain  *workload.Chain
	exit   *ExitChannel
	log    *logging.Logger
	met    *metrics.Lifecycle
	cg     *cgroups.Manager
	limits *cgroups.Limits
}

// New creates the controller for an instance: resolves the state root,
// captures the stdio paths and initializes an empty exit channel. Nothing
// is persisted yet.
func New(id string, cfg Config) (*Instance, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty instance id", errdefs.ErrInvalidArgument)
	}
	if cfg.Bundle == "" && cfg.Root == "" {
		return nil, fmt.Errorf("%w: neither bundle nor root for instance %s", errdefs.ErrInvalidArgument, id)
	}
	if cfg.Chain == nil {
		return nil, fmt.Errorf("%w: no executor chain for instance %s", errdefs.ErrInvalidArgument, id)
	}

	root := cfg.Root
	if root == "" {
		var err error
		root, err = rootdir.Resolve(cfg.Bundle, cfg.Namespace)
		if err != nil {
			return nil, err
		}
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New(logging.INFO, false)
	}

	return &Instance{
		id:     id,
		bundle: cfg.Bundle,
		stdin:  cfg.Stdin,
		stdout: cfg.Stdout,
		stderr: cfg.Stderr,
		root:   root,
		chain:  cfg.Chain,
		exit:   NewExitChannel(),
		log:    log.WithField("id", id),
		met:    cfg.Metrics,
		cg:     cgroups.New(),
		limits: cfg.Limits,
	}, nil
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// Root returns the resolved state directory.
func (i *Instance) Root() string { return i.root }

// Exit exposes the exit channel for callers that select on completion.
func (i *Instance) Exit() *ExitChannel { return i.exit }

// Start launches the init process and returns its pid. The stdio swap runs
// strictly before dispatch because some executors replace the process image
// and never return. On build or launch failure the persisted record stays
// at Created and no reaper is spawned, so the caller may retry or delete.
func (i *Instance) Start() (int, error) {
	if i.bundle == "" {
		return 0, fmt.Errorf("%w: no bundle for instance %s", errdefs.ErrStart, i.id)
	}
	if err := os.MkdirAll(i.root, 0711); err != nil {
		return 0, fmt.Errorf("%w: creating root %s: %v", errdefs.ErrIO, i.root, err)
	}

	if err := stdio.Bind(i.stdin, i.stdout, i.stderr); err != nil {
		return 0, err
	}

	spec, err := workload.Load(i.bundle)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errdefs.ErrStart, err)
	}

	rec, err := i.prepareRecord()
	if err != nil {
		return 0, err
	}

	res, err := i.chain.Launch(spec)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errdefs.ErrStart, err)
	}

	if err := rec.SetRunning(res.Pid); err != nil {
		// The workload is already running; losing the record write must
		// not orphan it. The reaper still reports the exit.
		i.log.Error("failed to persist running state", map[string]interface{}{"error": err.Error()})
	}

	// Cgroup placement is best effort: the workload keeps running even
	// when the host refuses it.
	if _, err := i.cg.Setup(i.id, res.Pid, i.limits); err != nil {
		i.log.Warn("cgroup placement failed", map[string]interface{}{"error": err.Error()})
	}

	if i.met != nil {
		i.met.Started.Inc()
		i.met.Dispatches.WithLabelValues(res.Outcome.String()).Inc()
	}
	i.log.Info("instance started", map[string]interface{}{"pid": res.Pid})

	go i.reap(res.Pid)
	return res.Pid, nil
}

// prepareRecord creates the persisted record, or reuses a Created one left
// behind by a failed earlier start.
func (i *Instance) prepareRecord() (*state.Record, error) {
	if !state.Exists(i.root, i.id) {
		rec, err := state.Create(i.root, i.id, i.bundle)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errdefs.ErrStart, err)
		}
		return rec, nil
	}

	rec, err := state.Load(i.root, i.id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrStart, err)
	}
	if rec.Status != state.Created {
		return nil, fmt.Errorf("%w: instance %s already started", errdefs.ErrStart, i.id)
	}
	return rec, nil
}

// reap blocks on the init process and publishes the exit status. There is
// no cancellation: once started it must run to completion, because the
// orchestrator must always eventually learn the exit status. Any wait
// failure other than "no such child" is therefore fatal to the whole shim;
// a visible crash beats silently losing the exit report.
func (i *Instance) reap(pid int) {
	var code uint32
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, 0, nil)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.ECHILD:
			// Already reaped elsewhere.
			code = 0
		case err != nil:
			i.log.Fatal("wait for init process failed", map[string]interface{}{
				"pid":   pid,
				"error": err.Error(),
			})
		case ws.Signaled():
			code = uint32(ws.Signal())
		case ws.Exited():
			code = uint32(ws.ExitStatus())
		}
		break
	}

	if rec, err := state.Load(i.root, i.id); err == nil {
		if err := rec.SetStopped(); err != nil {
			i.log.Warn("failed to persist stopped state", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := i.cg.Remove(i.id); err != nil {
		i.log.Warn("cgroup removal failed", map[string]interface{}{"error": err.Error()})
	}

	if i.met != nil {
		i.met.Reaped.Inc()
	}
	i.log.Info("instance exited", map[string]interface{}{"pid": pid, "code": code})
	i.exit.Set(code, time.Now().UTC())
}

// Kill delivers sig to the init process and all its descendants. Only
// SIGKILL and SIGINT are accepted. The persisted record is reloaded fresh:
// this call may be serviced by a different shim activation than the one
// that started the container. A failed send against a record that already
// reads Stopped becomes ErrNotRunning so callers can retry idempotently;
// the record is not re-read after the failure.
func (i *Instance) Kill(sig unix.Signal) error {
	if sig != unix.SIGKILL && sig != unix.SIGINT {
		return fmt.Errorf("%w: only SIGKILL and SIGINT are supported, got %s",
			errdefs.ErrInvalidArgument, unix.SignalName(sig))
	}

	rec, err := state.Load(i.root, i.id)
	if err != nil {
		return err
	}

	if err := rec.Kill(sig, true); err != nil {
		if rec.Status == state.Stopped {
			i.killMetric("not_running")
			return fmt.Errorf("%w: %s", errdefs.ErrNotRunning, i.id)
		}
		i.killMetric("error")
		return fmt.Errorf("killing instance %s: %w", i.id, err)
	}

	i.killMetric("delivered")
	return nil
}

func (i *Instance) killMetric(result string) {
	if i.met != nil {
		i.met.Kills.WithLabelValues(result).Inc()
	}
}

// Delete tears down the persisted record. It is idempotent and by design
// never fails: a missing record is immediate success, and load or teardown
// errors are logged and swallowed so cleanup always makes progress.
func (i *Instance) Delete() {
	if i.met != nil {
		i.met.Deletes.Inc()
	}

	if err := i.cg.Remove(i.id); err != nil {
		i.log.Warn("cgroup removal failed", map[string]interface{}{"error": err.Error()})
	}

	if !state.Exists(i.root, i.id) {
		return
	}

	rec, err := state.Load(i.root, i.id)
	if err != nil {
		i.log.Error("could not load record, skipping cleanup", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := rec.Delete(true); err != nil {
		i.log.Error("record teardown failed", map[string]interface{}{"error": err.Error()})
	}
}

// Wait registers ch for the exit status. The notification fires whether
// registration happens before or after the actual exit, and every waiter
// sees the same value.
func (i *Instance) Wait(ch chan<- ExitStatus) {
	go func() {
		ch <- i.exit.Wait()
	}()
}
