package workload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shimrun/shimrun/internal/errdefs"
)

// HandlerAnnotation is the dispatch annotation consulted by every executor
// in the chain. Its value names the executor that owns the workload.
const HandlerAnnotation = "shimrun.workload.handler"

// Spec is the container's process specification: what to run, with which
// environment, and any dispatch annotations. Bundle parsing beyond this
// narrow shape is owned by the caller.
type Spec struct {
	Args        []string          `json:"args"`
	Env         []string          `json:"env,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Load reads the process specification from bundle/process.json.
func Load(bundle string) (*Spec, error) {
	path := filepath.Join(bundle, "process.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", errdefs.ErrIO, path, err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", errdefs.ErrConfig, path, err)
	}
	return &spec, nil
}

// Handler returns the value of the dispatch annotation, or "" if unset.
func (s *Spec) Handler() string {
	if s.Annotations == nil {
		return ""
	}
	return s.Annotations[HandlerAnnotation]
}

// Command returns a copy of the workload's argv, unmodified. The native
// executor launches exactly what the orchestrator wrote, absolute paths
// included.
func (s *Spec) Command() []string {
	if len(s.Args) == 0 {
		return nil
	}
	argv := make([]string, len(s.Args))
	copy(argv, s.Args)
	return argv
}

// BundleCommand returns the argv with a leading path separator stripped
// from argv[0]. Engine-backed executors use it: orchestrators write module
// paths bundle-relative but with a leading separator, and the engine
// resolves them against the bundle, not the host filesystem.
func (s *Spec) BundleCommand() []string {
	argv := s.Command()
	if len(argv) > 0 {
		argv[0] = strings.TrimPrefix(argv[0], string(os.PathSeparator))
	}
	return argv
}

// Environ returns the well-formed KEY=VALUE environment pairs. Entries
// without an '=' and entries carrying a NUL byte in either half are dropped;
// keys and values are trimmed of surrounding whitespace.
func (s *Spec) Environ() []string {
	env := make([]string, 0, len(s.Env))
	for _, e := range s.Env {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if strings.ContainsRune(key, 0) || strings.ContainsRune(value, 0) {
			continue
		}
		env = append(env, strings.TrimSpace(key)+"="+strings.TrimSpace(value))
	}
	return env
}
