// Package cgroups places workload init processes into per-instance
// cgroups and applies optional resource caps. Placement is best effort:
// the shim must never take a workload down because cgroup setup failed,
// so permission problems degrade to "no cgroup" instead of erroring.
package cgroups

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	mountRoot   = "/sys/fs/cgroup"
	groupPrefix = "shimrun"
)

// Limits are the resource caps applied to an instance's cgroup. Zero
// values mean "no cap".
type Limits struct {
	// CPUMax is the cgroup v2 "quota period" pair, e.g. "50000 100000",
	// or "max" for unlimited. Ignored on v1 hosts.
	CPUMax string
	// CPUWeight is the relative CPU share, 1-10000. Mapped to cpu.shares
	// on v1 hosts.
	CPUWeight int
	// MemoryMax caps memory in bytes.
	MemoryMax int64
}

func (l *Limits) validate() error {
	if l.CPUWeight < 0 || l.CPUWeight > 10000 {
		return fmt.Errorf("cpu weight %d out of range 1-10000", l.CPUWeight)
	}
	if l.MemoryMax < 0 {
		return fmt.Errorf("negative memory limit %d", l.MemoryMax)
	}
	return nil
}

// Version returns the cgroup version mounted on this host, 1 or 2.
func Version() int {
	if _, err := os.Stat(filepath.Join(mountRoot, "cgroup.controllers")); err == nil {
		return 2
	}
	return 1
}

// Manager creates, populates and removes per-instance cgroups.
type Manager struct {
	version int
}

func New() *Manager {
	return &Manager{version: Version()}
}

func (m *Manager) path(id string) string {
	name := filepath.Join(groupPrefix, id)
	if m.version == 1 {
		return filepath.Join(mountRoot, "cpu", name)
	}
	return filepath.Join(mountRoot, name)
}

// Setup creates the instance's cgroup, applies lim and moves pid into it.
// The returned path is empty when the host refuses cgroup creation; that
// is not an error.
func (m *Manager) Setup(id string, pid int, lim *Limits) (string, error) {
	if lim != nil {
		if err := lim.validate(); err != nil {
			return "", err
		}
	}
	if pid <= 0 {
		return "", fmt.Errorf("invalid pid %d", pid)
	}

	path, err := m.create(id)
	if err != nil || path == "" {
		return "", err
	}
	if lim != nil {
		if err := m.apply(path, lim); err != nil {
			return path, err
		}
	}
	return path, m.join(path, pid)
}

func (m *Manager) create(id string) (string, error) {
	path := m.path(id)
	if err := os.MkdirAll(path, 0755); err != nil {
		if os.IsPermission(err) {
			return "", nil
		}
		return "", fmt.Errorf("creating cgroup %s: %w", path, err)
	}
	if m.version == 1 {
		// Memory controller lives in its own hierarchy on v1.
		os.MkdirAll(strings.Replace(path, "/cpu/", "/memory/", 1), 0755)
	}
	return path, nil
}

func (m *Manager) apply(path string, lim *Limits) error {
	if lim.CPUMax != "" && m.version == 2 {
		if err := os.WriteFile(filepath.Join(path, "cpu.max"), []byte(lim.CPUMax), 0644); err != nil {
			return fmt.Errorf("setting cpu.max: %w", err)
		}
	}
	if lim.CPUWeight > 0 {
		if err := m.applyCPUWeight(path, lim.CPUWeight); err != nil {
			return err
		}
	}
	if lim.MemoryMax > 0 {
		if err := m.applyMemoryMax(path, lim.MemoryMax); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) applyCPUWeight(path string, weight int) error {
	if m.version == 2 {
		err := os.WriteFile(filepath.Join(path, "cpu.weight"),
			[]byte(fmt.Sprintf("%d", weight)), 0644)
		if err != nil {
			return fmt.Errorf("setting cpu.weight: %w", err)
		}
		return nil
	}
	// v1 expresses shares, with 1024 as the default unit weight.
	shares := (weight * 1024) / 100
	err := os.WriteFile(filepath.Join(path, "cpu.shares"),
		[]byte(fmt.Sprintf("%d", shares)), 0644)
	if err != nil {
		return fmt.Errorf("setting cpu.shares: %w", err)
	}
	return nil
}

func (m *Manager) applyMemoryMax(path string, bytes int64) error {
	file := filepath.Join(path, "memory.max")
	if m.version == 1 {
		file = filepath.Join(strings.Replace(path, "/cpu/", "/memory/", 1),
			"memory.limit_in_bytes")
	}
	if err := os.WriteFile(file, []byte(fmt.Sprintf("%d", bytes)), 0644); err != nil {
		return fmt.Errorf("setting memory limit: %w", err)
	}
	return nil
}

func (m *Manager) join(path string, pid int) error {
	procs := filepath.Join(path, "cgroup.procs")
	if err := os.WriteFile(procs, []byte(fmt.Sprintf("%d", pid)), 0644); err != nil {
		return fmt.Errorf("joining cgroup %s: %w", path, err)
	}
	if m.version == 1 {
		memProcs := filepath.Join(strings.Replace(path, "/cpu/", "/memory/", 1), "cgroup.procs")
		os.WriteFile(memProcs, []byte(fmt.Sprintf("%d", pid)), 0644)
	}
	return nil
}

// Remove deletes the instance's cgroup. Missing groups are success; a
// group that still holds processes is left in place for the next sweep.
func (m *Manager) Remove(id string) error {
	path := m.path(id)
	if m.version == 1 {
		os.Remove(strings.Replace(path, "/cpu/", "/memory/", 1))
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cgroup %s: %w", path, err)
	}
	return nil
}
