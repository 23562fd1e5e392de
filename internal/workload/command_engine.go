package workload

import (
	"fmt"
	"os/exec"
)

// CommandEngine runs workloads under an external runtime binary by
// prefixing the runtime's invocation onto the workload's command line,
// e.g. {"wasmtime", "run"} turns ["app.wasm"] into
// ["wasmtime", "run", "app.wasm"].
type CommandEngine struct {
	name    string
	command []string
}

// NewCommandEngine creates an engine named name that launches workloads
// through the given invocation prefix.
func NewCommandEngine(name string, command ...string) *CommandEngine {
	return &CommandEngine{name: name, command: command}
}

// Name implements Engine.
func (e *CommandEngine) Name() string { return e.name }

// Translate implements Engine. A missing runtime binary is a translation
// failure, which the chain treats as fatal rather than a decline.
func (e *CommandEngine) Translate(spec *Spec) ([]string, error) {
	if len(e.command) == 0 {
		return nil, fmt.Errorf("engine %s has no invocation configured", e.name)
	}
	if _, err := exec.LookPath(e.command[0]); err != nil {
		return nil, fmt.Errorf("engine %s runtime unavailable: %w", e.name, err)
	}
	argv := make([]string, 0, len(e.command)+len(spec.Args))
	argv = append(argv, e.command...)
	argv = append(argv, spec.BundleCommand()...)
	return argv, nil
}
