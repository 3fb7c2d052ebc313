// Package archive owns the on-disk side of a timelapse: locating the export
// directory, naming frames, and moving or copying export files into a
// per-session archive directory without ever overwriting a frame.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrInvalidSessionKey is returned when a player or game identifier cannot
// form a safe directory name.
var ErrInvalidSessionKey = errors.New("invalid session key")

// Directory is a resolved session archive directory.
type Directory struct {
	// ExportDir is the host's export directory, where capture files appear.
	ExportDir string

	// Path is the session archive directory inside ExportDir.
	Path string

	// SessionKey identifies the session, e.g. "Abby-123".
	SessionKey string
}

// Frame is one archived file.
type Frame struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// SessionKey derives the session key from a player name and an optional game
// identifier: "{player}-{gameID}", or "{player}" alone.
func SessionKey(player, gameID string) (string, error) {
	player = strings.TrimSpace(player)
	gameID = strings.TrimSpace(gameID)

	if player == "" {
		return "", fmt.Errorf("%w: player name is empty", ErrInvalidSessionKey)
	}
	for _, part := range []string{player, gameID} {
		if strings.ContainsAny(part, `/\`) || strings.ContainsRune(part, 0) || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q is not a valid path element", ErrInvalidSessionKey, part)
		}
	}

	if gameID == "" {
		return player, nil
	}
	return player + "-" + gameID, nil
}

// DirName returns the archive directory name for a session key.
func DirName(prefix, sessionKey string) string {
	return prefix + "-" + sessionKey
}

// EnsureExportDir returns the export directory under rootBase, creating it
// when absent.
func EnsureExportDir(rootBase, exportDirName string) (string, error) {
	exportDir, err := filepath.Abs(filepath.Join(rootBase, exportDirName))
	if err != nil {
		return "", fmt.Errorf("failed to resolve export directory; %w", err)
	}
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory; %w", err)
	}
	return exportDir, nil
}

// Resolve locates or creates the export directory and the session archive
// directory "{prefix}-{sessionKey}" inside it. Existing directories are
// reused; only I/O failures are returned.
func Resolve(rootBase, exportDirName, prefix, sessionKey string) (Directory, error) {
	if sessionKey == "" {
		return Directory{}, fmt.Errorf("%w: session key is empty", ErrInvalidSessionKey)
	}

	exportDir, err := EnsureExportDir(rootBase, exportDirName)
	if err != nil {
		return Directory{}, err
	}

	path := filepath.Join(exportDir, DirName(prefix, sessionKey))
	if err := os.Mkdir(path, 0755); err != nil && !errors.Is(err, os.ErrExist) {
		return Directory{}, fmt.Errorf("failed to create archive directory; %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Directory{}, fmt.Errorf("failed to stat archive directory; %w", err)
	}
	if !info.IsDir() {
		return Directory{}, fmt.Errorf("archive path exists and is not a directory: %s", path)
	}

	return Directory{
		ExportDir:  exportDir,
		Path:       path,
		SessionKey: sessionKey,
	}, nil
}

// Locate finds an existing session archive directory without creating
// anything. The error satisfies errors.Is(err, os.ErrNotExist) when the
// directory is absent.
func Locate(rootBase, exportDirName, prefix, sessionKey string) (Directory, error) {
	exportDir, err := filepath.Abs(filepath.Join(rootBase, exportDirName))
	if err != nil {
		return Directory{}, fmt.Errorf("failed to resolve export directory; %w", err)
	}

	path := filepath.Join(exportDir, DirName(prefix, sessionKey))
	info, err := os.Stat(path)
	if err != nil {
		return Directory{}, fmt.Errorf("failed to stat archive directory; %w", err)
	}
	if !info.IsDir() {
		return Directory{}, fmt.Errorf("archive path exists and is not a directory: %s", path)
	}

	return Directory{
		ExportDir:  exportDir,
		Path:       path,
		SessionKey: sessionKey,
	}, nil
}

// Frames lists the archived files in the directory. Sequence frames sort
// numerically ahead of any other names, which sort lexically.
func (d Directory) Frames() ([]Frame, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory; %w", err)
	}

	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed while listing
		}
		frames = append(frames, Frame{
			Name:    entry.Name(),
			Path:    filepath.Join(d.Path, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		ii, iok := ParseIndex(frames[i].Name)
		ji, jok := ParseIndex(frames[j].Name)
		switch {
		case iok && jok:
			return ii < ji
		case iok != jok:
			return iok
		default:
			return frames[i].Name < frames[j].Name
		}
	})

	return frames, nil
}
