package workload

import (
	"fmt"
	"os"
)

// Engine translates a process specification into a host command line that
// runs the workload under an alternate runtime. The engine itself is a
// black box to the chain; only translation failures are visible here, and
// they are fatal to the dispatch.
type Engine interface {
	Name() string
	Translate(spec *Spec) (argv []string, err error)
}

// SpawnExecutor runs an engine-translated workload as a child process.
type SpawnExecutor struct {
	engine Engine
}

// NewSpawnExecutor wraps an engine in the spawning executor shape.
func NewSpawnExecutor(engine Engine) *SpawnExecutor {
	return &SpawnExecutor{engine: engine}
}

// Name implements Executor.
func (e *SpawnExecutor) Name() string { return e.engine.Name() }

// CanHandle implements Executor.
func (e *SpawnExecutor) CanHandle(spec *Spec) bool {
	return eligible(spec, e.engine.Name())
}

// Run implements Executor. A translation failure (workload module or engine
// binary missing) is an execution failure, not a decline.
func (e *SpawnExecutor) Run(spec *Spec) (Result, error) {
	argv, err := e.engine.Translate(spec)
	if err != nil {
		return Result{}, fmt.Errorf("translating workload: %w", err)
	}
	pid, err := spawn(argv, spec.Environ())
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: Ran, Pid: pid}, nil
}

// InPlaceEngine runs the workload inside the calling process and blocks
// until it completes. Some of these engines do not reliably end the process
// when the workload finishes.
type InPlaceEngine interface {
	Name() string
	Run(spec *Spec) error
}

// InPlaceExecutor adapts an InPlaceEngine to the chain. After the engine's
// run call returns, the executor forcibly terminates the process: leaving it
// alive would hang the lifecycle, because these engines are known not to end
// the process on completion. The forced exit is injectable for tests.
type InPlaceExecutor struct {
	engine InPlaceEngine
	exit   func(code int)
}

// NewInPlaceExecutor wraps an in-place engine.
func NewInPlaceExecutor(engine InPlaceEngine) *InPlaceExecutor {
	return &InPlaceExecutor{engine: engine, exit: os.Exit}
}

// Name implements Executor.
func (e *InPlaceExecutor) Name() string { return e.engine.Name() }

// CanHandle implements Executor.
func (e *InPlaceExecutor) CanHandle(spec *Spec) bool {
	return eligible(spec, e.engine.Name())
}

// Run implements Executor.
func (e *InPlaceExecutor) Run(spec *Spec) (Result, error) {
	if err := e.engine.Run(spec); err != nil {
		return Result{}, fmt.Errorf("running workload in place: %w", err)
	}
	e.exit(0)
	return Result{Outcome: ForciblyTerminated, Pid: os.Getpid()}, nil
}
