// Package stdio redirects the process-level standard streams to
// operator-specified files before the workload executor takes control.
//
// The swap is process-wide and must happen exactly once, strictly before
// dispatch: some executors replace the process image and never return, so
// there is no second chance to wire the streams.
package stdio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/shimrun/shimrun/internal/errdefs"
)

// Bind redirects stdin, stdout and stderr to the given paths. An empty path
// leaves the stream untouched. A path that does not exist also leaves the
// stream untouched without error: orchestrators may pass stale placeholder
// paths. Any other open failure is fatal.
//
// Before each replacement the current descriptor is duplicated so the
// original stream stays open (non-destructive swap).
func Bind(stdin, stdout, stderr string) error {
	streams := []struct {
		path string
		fd   int
		name string
	}{
		{stdin, unix.Stdin, "stdin"},
		{stdout, unix.Stdout, "stdout"},
		{stderr, unix.Stderr, "stderr"},
	}

	for _, s := range streams {
		f, err := maybeOpen(s.path)
		if err != nil {
			return fmt.Errorf("%w: opening %s %s: %v", errdefs.ErrIO, s.name, s.path, err)
		}
		if f == nil {
			continue
		}

		// Keep the original stream reachable through the duplicate.
		if _, err := unix.Dup(s.fd); err != nil {
			f.Close()
			return fmt.Errorf("%w: duplicating %s: %v", errdefs.ErrIO, s.name, err)
		}
		if err := unix.Dup3(int(f.Fd()), s.fd, 0); err != nil {
			f.Close()
			return fmt.Errorf("%w: replacing %s: %v", errdefs.ErrIO, s.name, err)
		}
		f.Close()
	}

	return nil
}

// maybeOpen opens path read-write. Empty and nonexistent paths yield a nil
// file and no error.
func maybeOpen(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}
