// Package errdefs defines the error kinds surfaced by the shim.
//
// Callers classify failures with errors.Is; the message carried alongside a
// kind is informational only.
package errdefs

import "errors"

var (
	// ErrConfig indicates an invalid configuration file or value.
	ErrConfig = errors.New("invalid configuration")

	// ErrResolution indicates the state root could not be resolved.
	ErrResolution = errors.New("root resolution failed")

	// ErrIO indicates a filesystem or descriptor failure.
	ErrIO = errors.New("io failure")

	// ErrStart indicates the workload could not be launched.
	ErrStart = errors.New("start failed")

	// ErrNotFound indicates no persisted record exists for the instance.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a caller passed an unsupported value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExecution indicates an executor accepted the workload but failed to
	// run it. This is fatal to the dispatch, never a decline.
	ErrExecution = errors.New("workload execution failed")

	// ErrNotRunning is returned by kill when the signal could not be
	// delivered and the persisted record already shows the container
	// stopped. Callers use it for idempotent retries.
	ErrNotRunning = errors.New("container not running")

	// ErrNoExecutor indicates the dispatch chain was exhausted without any
	// executor accepting the workload. Unreachable when a catch-all
	// executor terminates the chain.
	ErrNoExecutor = errors.New("no executor accepted the workload")
)
