// Package instance enforces the single-daemon-instance invariant with
// a PID file plus a POSIX advisory lock, and detects stale records left
// by a daemon that crashed without cleaning up.
//
// Grounded on internal/instance/manager.go's PID-file record
// (PID/port/startedAt/hostname) and stale-record detection, adapted to
// golang.org/x/sys/unix.Flock instead of the teacher's
// golang.org/x/sys/windows handle — see DESIGN.md for why the
// Windows-only subpackage was dropped.
package instance

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Record is the JSON structure persisted alongside the advisory lock.
type Record struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
	Hostname  string    `json:"hostname"`
	SocketAddr string   `json:"socketAddr,omitempty"`
}

// Lock represents a held advisory lock on the instance's PID file.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the single-instance lock at path, returning a *Lock the
// caller must Release at shutdown. If another process already holds
// the lock, returns an error identifying its PID. A PID file left by a
// process that is no longer running is treated as stale and reclaimed
// automatically.
func Acquire(path string, socketAddr string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open instance lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		existing, readErr := readRecord(f)
		f.Close()
		if readErr == nil && processRunning(existing.PID) {
			return nil, fmt.Errorf("another collabotd instance is already running (pid %d)", existing.PID)
		}
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}

	record := Record{
		PID:        os.Getpid(),
		StartedAt:  time.Now().UTC(),
		SocketAddr: socketAddr,
	}
	if hostname, err := os.Hostname(); err == nil {
		record.Hostname = hostname
	}

	if err := writeRecord(f, record); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, err
	}

	return &Lock{path: path, file: f}, nil
}

// Release unlocks and removes the PID file. Safe to call once; a
// second call is a no-op.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove instance lock file: %w", err)
	}
	return nil
}

func readRecord(f *os.File) (Record, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.NewDecoder(f).Decode(&record); err != nil {
		return Record{}, err
	}
	return record, nil
}

func writeRecord(f *os.File, record Record) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate instance lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek instance lock file: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal instance record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write instance record: %w", err)
	}
	return nil
}

// processRunning reports whether pid identifies a live process, using
// signal 0 which performs existence/permission checks without actually
// signaling the process.
func processRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
