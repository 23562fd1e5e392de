// Package workload turns a process specification into a running workload
// through an ordered chain of pluggable executors. The default executor
// forks and execs on the host; alternate executors hand the workload to an
// embedded runtime engine.
package workload

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/shimrun/shimrun/internal/errdefs"
)

// Outcome describes how an executor disposed of a workload.
type Outcome int

const (
	// Declined means the executor did not take ownership of the spec.
	Declined Outcome = iota
	// Ran means the workload was launched and Result.Pid is valid.
	Ran
	// ForciblyTerminated means an in-place engine completed the workload
	// and the executor forced the process to end as a workaround for
	// engines that hang after completion.
	ForciblyTerminated
)

func (o Outcome) String() string {
	switch o {
	case Ran:
		return "ran"
	case ForciblyTerminated:
		return "forcibly_terminated"
	default:
		return "declined"
	}
}

// Result is the disposition of a dispatch.
type Result struct {
	Outcome Outcome
	Pid     int
}

// Executor turns a process specification into a running workload.
type Executor interface {
	// Name identifies the executor for dispatch-annotation matching.
	Name() string
	// CanHandle probes eligibility without side effects.
	CanHandle(spec *Spec) bool
	// Run launches the workload. An error means the executor accepted the
	// spec but could not run it; it is fatal to the dispatch, not a
	// decline.
	Run(spec *Spec) (Result, error)
}

// Chain is an ordered set of executors. Probing order is fixed at assembly;
// the first executor that accepts a spec is exclusive and later executors
// are never consulted.
type Chain struct {
	executors []Executor
}

// NewChain assembles a chain in dispatch order.
func NewChain(executors ...Executor) *Chain {
	return &Chain{executors: executors}
}

// Launch dispatches the spec to the first eligible executor.
func (c *Chain) Launch(spec *Spec) (Result, error) {
	for _, e := range c.executors {
		if !e.CanHandle(spec) {
			continue
		}
		res, err := e.Run(spec)
		if err != nil {
			return Result{}, fmt.Errorf("%w: executor %s: %v", errdefs.ErrExecution, e.Name(), err)
		}
		return res, nil
	}
	return Result{}, errdefs.ErrNoExecutor
}

// eligible implements the shared dispatch-annotation check: an absent
// annotation leaves every executor eligible, otherwise the value must match
// the executor's name case-insensitively.
func eligible(spec *Spec, name string) bool {
	handler := spec.Handler()
	return handler == "" || strings.EqualFold(handler, name)
}

// spawn starts argv as a child process in its own process group so signals
// can later be propagated to all descendants. The caller reaps the pid
// directly; the returned process is not waited on here.
func spawn(argv, env []string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty argv")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return 0, fmt.Errorf("locating workload %s: %w", argv[0], err)
	}

	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting workload: %w", err)
	}
	return cmd.Process.Pid, nil
}
