// Package fsutil holds small filesystem helpers shared by the archiver,
// the watcher, and the CLI.
package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// HashFile computes the SHA-256 hash of a file's contents.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashBytes computes the SHA-256 hash of the provided bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SplitName splits a file name into its base and extension.
// The extension keeps its leading dot; "Farm.png" yields ("Farm", ".png").
func SplitName(name string) (base, ext string) {
	name = filepath.Base(name)
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// LinkExclusive publishes src at dst with a hard link. The call fails with an
// error satisfying errors.Is(err, fs.ErrExist) when dst already exists, so
// concurrent publishers to the same destination cannot overwrite each other.
func LinkExclusive(src, dst string) error {
	return os.Link(src, dst)
}

// CopyExclusive copies src to dst without ever replacing an existing dst.
// Content is written to a temp file next to dst, synced, and then published
// with LinkExclusive. If the filesystem refuses hard links, publication falls
// back to an O_EXCL create of dst.
func CopyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source; %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source; %w", err)
	}

	parent := filepath.Dir(dst)
	tmp, err := os.CreateTemp(parent, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file; %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file; %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file; %w", err)
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file; %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file; %w", err)
	}

	err = LinkExclusive(tmpPath, dst)
	if err == nil {
		syncDir(parent)
		return nil
	}
	if errors.Is(err, os.ErrExist) || !IsLinkUnsupported(err) {
		return err
	}

	return copyCreateExclusive(tmpPath, dst, info.Mode().Perm())
}

// copyCreateExclusive copies src into a freshly created dst, failing if dst
// exists. A partially written dst is removed on failure.
func copyCreateExclusive(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to reopen temp file; %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to write destination; %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to sync destination; %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to close destination; %w", err)
	}

	syncDir(filepath.Dir(dst))
	return nil
}

// IsLinkUnsupported reports whether a link error means hard links cannot be
// used between these paths (cross-device or unsupported filesystem), as
// opposed to a real failure such as a missing source.
func IsLinkUnsupported(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	return errors.Is(err, syscall.EXDEV) ||
		errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.EMLINK)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
