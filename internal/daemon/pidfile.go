package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrDaemonAlreadyRunning indicates that another run loop holds the PID file.
var ErrDaemonAlreadyRunning = errors.New("daemon already running")

// PIDFile guards against two run loops archiving the same export directory.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PIDFile at path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the path to the PID file.
func (p *PIDFile) Path() string {
	return p.path
}

// Read returns the PID recorded in the file.
func (p *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file; %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file; %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID %d; must be positive", pid)
	}

	return pid, nil
}

// Remove removes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove PID file; %w", err)
	}
	return nil
}

// CheckAndClaim writes the current PID to the file. An existing file whose
// process is gone, or whose content is unreadable, is replaced; a live one
// yields ErrDaemonAlreadyRunning.
func (p *PIDFile) CheckAndClaim() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID file directory; %w", err)
	}

	err := p.create()
	if !errors.Is(err, os.ErrExist) {
		return err
	}

	if pid, readErr := p.Read(); readErr == nil && processAlive(pid) {
		return ErrDaemonAlreadyRunning
	}

	if err := p.Remove(); err != nil {
		return fmt.Errorf("failed to remove stale PID file; %w", err)
	}
	if err := p.create(); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrDaemonAlreadyRunning
		}
		return err
	}
	return nil
}

func (p *PIDFile) create() error {
	f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return fmt.Errorf("failed to create PID file; %w", err)
	}

	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(p.path)
		return fmt.Errorf("failed to write PID file; %w", errors.Join(werr, cerr))
	}
	return nil
}

// processAlive reports whether pid names a running process. EPERM means it
// exists but belongs to someone else.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
