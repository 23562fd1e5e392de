package workload

// NativeExecutor forks and execs the workload directly on the host. It is
// the catch-all default: it accepts any spec, including ones whose dispatch
// annotation names an executor that is not in the chain, so it must sit last.
type NativeExecutor struct{}

// Name implements Executor.
func (NativeExecutor) Name() string { return "native" }

// CanHandle implements Executor. The native executor is always eligible.
func (NativeExecutor) CanHandle(*Spec) bool { return true }

// Run implements Executor.
func (NativeExecutor) Run(spec *Spec) (Result, error) {
	pid, err := spawn(spec.Command(), spec.Environ())
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: Ran, Pid: pid}, nil
}
