// Package state owns the on-disk lifecycle record for an instance. The
// record is the source of truth across shim activations: a kill or delete
// may be serviced by a different process than the one that started the
// container, so callers always load fresh from disk instead of trusting
// in-memory state.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/shimrun/shimrun/internal/errdefs"
)

const stateFile = "state.json"

// Status is the persisted run state of a container.
type Status string

const (
	Created Status = "created"
	Running Status = "running"
	Stopped Status = "stopped"
)

// Record is the persisted lifecycle record, stored under rootDir/id.
type Record struct {
	ID        string    `json:"id"`
	Bundle    string    `json:"bundle"`
	Pid       int       `json:"pid,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	root string
}

// Exists reports whether a record exists for the instance.
func Exists(root, id string) bool {
	_, err := os.Stat(filepath.Join(root, id, stateFile))
	return err == nil
}

// Create writes a fresh record in the Created state. The id must not be in
// use under this root.
func Create(root, id, bundle string) (*Record, error) {
	if Exists(root, id) {
		return nil, fmt.Errorf("record for %s already exists under %s", id, root)
	}
	if err := os.MkdirAll(filepath.Join(root, id), 0711); err != nil {
		return nil, fmt.Errorf("creating record directory: %w", err)
	}
	r := &Record{
		ID:        id,
		Bundle:    bundle,
		Status:    Created,
		CreatedAt: time.Now().UTC(),
		root:      root,
	}
	if err := r.save(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads the record from disk. A record persisted as Running whose
// process is gone is refreshed to Stopped, so callers in other activations
// observe the real run state.
func Load(root, id string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(root, id, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no record for %s under %s", errdefs.ErrNotFound, id, root)
		}
		return nil, fmt.Errorf("reading record for %s: %w", id, err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing record for %s: %w", id, err)
	}
	r.root = root

	if r.Status == Running && !processAlive(r.Pid) {
		r.Status = Stopped
		// Best effort: the next loader refreshes again if this fails.
		_ = r.save()
	}
	return &r, nil
}

// List returns every record under root, skipping unreadable entries.
func List(root string) ([]*Record, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading root %s: %w", root, err)
	}
	var records []*Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := Load(root, e.Name())
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// SetRunning transitions the record to Running with the init process pid.
func (r *Record) SetRunning(pid int) error {
	r.Pid = pid
	r.Status = Running
	return r.save()
}

// SetStopped transitions the record to Stopped.
func (r *Record) SetStopped() error {
	r.Status = Stopped
	return r.save()
}

// Kill delivers sig to the recorded init process. With all set, the signal
// goes to the whole process group so descendants receive it too.
func (r *Record) Kill(sig unix.Signal, all bool) error {
	if r.Pid == 0 {
		return fmt.Errorf("no pid recorded for %s", r.ID)
	}
	pid := r.Pid
	if all {
		pid = -pid
	}
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("sending %s to %d: %w", unix.SignalName(sig), pid, err)
	}
	return nil
}

// Delete removes the record from disk. Without force a running container is
// refused; teardown during delete passes force to always make progress.
func (r *Record) Delete(force bool) error {
	if !force && r.Status == Running {
		return fmt.Errorf("record for %s is running", r.ID)
	}
	if err := os.RemoveAll(filepath.Join(r.root, r.ID)); err != nil {
		return fmt.Errorf("removing record for %s: %w", r.ID, err)
	}
	return nil
}

// save writes the record atomically via a rename.
func (r *Record) save() error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding record for %s: %w", r.ID, err)
	}
	dir := filepath.Join(r.root, r.ID)
	tmp := filepath.Join(dir, stateFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing record for %s: %w", r.ID, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, stateFile)); err != nil {
		return fmt.Errorf("committing record for %s: %w", r.ID, err)
	}
	return nil
}

// processAlive probes the pid with the null signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}
