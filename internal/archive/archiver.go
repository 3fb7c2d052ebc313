package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leefowlercu/timelapse/internal/fsutil"
	"github.com/leefowlercu/timelapse/internal/metrics"
)

// Mode selects how a capture file is transferred into the archive.
type Mode string

const (
	// ModeMove relocates the capture; the source is gone afterwards.
	ModeMove Mode = "move"

	// ModeCopy duplicates the capture; the source is left in place.
	ModeCopy Mode = "copy"
)

// ParseMode converts a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMove, ModeCopy:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown archive mode %q", s)
	}
}

// Status is the outcome of a successful Archive call.
type Status string

const (
	// StatusArchived means the capture now exists at the destination.
	StatusArchived Status = "archived"

	// StatusSkipped means the destination already existed; nothing changed.
	StatusSkipped Status = "skipped"
)

// Result describes one archive operation.
type Result struct {
	Status      Status
	Source      string
	Destination string
	Mode        Mode
}

// ArchiverOption configures the Archiver.
type ArchiverOption func(*Archiver)

// WithLogger sets the logger for the archiver.
func WithLogger(logger *slog.Logger) ArchiverOption {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// Archiver transfers capture files into one archive directory. The
// destination is claimed with an exclusive create, so of two racing archives
// to the same name exactly one wins and the other is skipped.
type Archiver struct {
	dir    Directory
	mode   Mode
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing into dir.
func NewArchiver(dir Directory, mode Mode, opts ...ArchiverOption) (*Archiver, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}

	a := &Archiver{
		dir:    dir,
		mode:   mode,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Directory returns the archive directory.
func (a *Archiver) Directory() Directory {
	return a.dir
}

// Mode returns the transfer mode.
func (a *Archiver) Mode() Mode {
	return a.mode
}

// Destination returns the path src would be archived to under name. The
// source file's extension is preserved.
func (a *Archiver) Destination(src, name string) string {
	return filepath.Join(a.dir.Path, name+filepath.Ext(src))
}

// Archive transfers src into the archive directory as name plus the source
// extension. An existing destination is never overwritten; the call returns
// StatusSkipped and a nil error instead.
func (a *Archiver) Archive(src, name string) (Result, error) {
	start := time.Now()
	dst := a.Destination(src, name)
	res := Result{Source: src, Destination: dst, Mode: a.mode}

	if fsutil.Exists(dst) {
		return a.skipped(res), nil
	}

	var err error
	switch a.mode {
	case ModeMove:
		err = a.move(src, dst)
	default:
		err = fsutil.CopyExclusive(src, dst)
	}

	if errors.Is(err, os.ErrExist) {
		return a.skipped(res), nil
	}
	if err != nil {
		metrics.RecordCapture(metrics.ResultFailed)
		return res, fmt.Errorf("failed to %s %s to %s; %w", a.mode, src, dst, err)
	}

	metrics.RecordCapture(metrics.ResultArchived)
	metrics.RecordArchive(string(a.mode), time.Since(start))

	res.Status = StatusArchived
	a.logger.Info("capture archived",
		"source", src,
		"destination", dst,
		"mode", a.mode,
	)
	return res, nil
}

// move claims dst with a hard link and then drops src. Filesystems without
// hard link support fall back to an exclusive copy.
func (a *Archiver) move(src, dst string) error {
	err := fsutil.LinkExclusive(src, dst)
	if err != nil {
		if !fsutil.IsLinkUnsupported(err) {
			return err
		}
		a.logger.Debug("hard link unavailable, copying", "source", src, "error", err)
		if err := fsutil.CopyExclusive(src, dst); err != nil {
			return err
		}
	}

	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("archived but failed to remove source; %w", err)
	}
	return nil
}

func (a *Archiver) skipped(res Result) Result {
	metrics.RecordCapture(metrics.ResultSkipped)
	res.Status = StatusSkipped
	a.logger.Debug("archive destination exists, skipping",
		"source", res.Source,
		"destination", res.Destination,
	)
	return res
}
