// Package pid keeps two captures from driving the same device at once.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
)

const (
	pidPrefix = "iiocapture-"
	pidSuffix = ".pid"
	pidPerm   = 0o600
)

// Lock is a PID file held for one device.
type Lock struct {
	path string
}

// Path returns the PID file location for a device below dir. An empty dir
// selects the system temporary directory.
func Path(dir, device string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	name := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(device)
	return filepath.Join(dir, pidPrefix+name+pidSuffix)
}

// Acquire writes the current process ID to the device PID file. It fails
// with ErrAlreadyRunning while another live process holds the file; stale
// or unreadable files are replaced.
func Acquire(dir, device string) (*Lock, error) {
	errFactory := errors.New()
	path := Path(dir, device)

	if data, err := os.ReadFile(path); err == nil {
		if owner, ok := running(data); ok {
			return nil, errFactory.WithData(errors.ErrAlreadyRunning, struct {
				Device string
				PID    int
			}{device, owner})
		}
		logger.Debug().Str("path", path).Msg("Replacing stale PID file")
	} else if !os.IsNotExist(err) {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), pidPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrInternal, err)
	}

	return &Lock{path: path}, nil
}

func running(data []byte) (int, bool) {
	owner, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || owner <= 0 {
		return 0, false
	}

	process, err := os.FindProcess(owner)
	if err != nil {
		return 0, false
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return owner, true
}

// Release removes the PID file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return nil
}
