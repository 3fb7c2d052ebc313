package archive

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// newTestArchiver resolves a session directory under a temp root and writes
// an export file into its export directory.
func newTestArchiver(t *testing.T, mode Mode) (*Archiver, string) {
	t.Helper()

	dir := resolve(t, t.TempDir(), "Abby-123")

	a, err := NewArchiver(dir, mode)
	if err != nil {
		t.Fatalf("NewArchiver() error = %v", err)
	}

	src := filepath.Join(dir.ExportDir, "Farm.png")
	if err := os.WriteFile(src, []byte("frame one"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	return a, src
}

func mustArchive(t *testing.T, a *Archiver, src, name string) Result {
	t.Helper()
	res, err := a.Archive(src, name)
	if err != nil {
		t.Fatalf("Archive(%s) error = %v", name, err)
	}
	return res
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return string(b)
}

func TestParseMode(t *testing.T) {
	for _, want := range []Mode{ModeMove, ModeCopy} {
		got, err := ParseMode(string(want))
		if err != nil {
			t.Fatalf("ParseMode(%q) error = %v", want, err)
		}
		if got != want {
			t.Errorf("ParseMode(%q) = %q", want, got)
		}
	}

	if _, err := ParseMode("rename"); err == nil {
		t.Error("ParseMode() accepted an unknown mode")
	}
}

func TestNewArchiver_InvalidMode(t *testing.T) {
	if _, err := NewArchiver(Directory{Path: t.TempDir()}, Mode("link")); err == nil {
		t.Error("NewArchiver() accepted an unknown mode")
	}
}

func TestArchive_MoveRemovesSource(t *testing.T) {
	a, src := newTestArchiver(t, ModeMove)

	res := mustArchive(t, a, src, "spring-1")

	if res.Status != StatusArchived {
		t.Errorf("Status = %v, want %v", res.Status, StatusArchived)
	}
	if want := filepath.Join(a.Directory().Path, "spring-1.png"); res.Destination != want {
		t.Errorf("Destination = %q, want %q", res.Destination, want)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Error("move left the export in place")
	}
	if got := readFile(t, res.Destination); got != "frame one" {
		t.Errorf("archived content = %q, want %q", got, "frame one")
	}
}

func TestArchive_CopyKeepsSource(t *testing.T) {
	a, src := newTestArchiver(t, ModeCopy)

	res := mustArchive(t, a, src, "0")
	if res.Status != StatusArchived {
		t.Errorf("Status = %v, want %v", res.Status, StatusArchived)
	}

	if srcContent, dstContent := readFile(t, src), readFile(t, res.Destination); srcContent != dstContent {
		t.Errorf("copy content = %q, want %q", dstContent, srcContent)
	}
}

func TestArchive_PreservesExtension(t *testing.T) {
	a, _ := newTestArchiver(t, ModeMove)
	writeNames(t, a.Directory().ExportDir, "Farm.bmp")

	res := mustArchive(t, a, filepath.Join(a.Directory().ExportDir, "Farm.bmp"), "spring-2")
	if got := filepath.Base(res.Destination); got != "spring-2.bmp" {
		t.Errorf("Destination base = %q, want %q", got, "spring-2.bmp")
	}
}

func TestArchive_NeverOverwrites(t *testing.T) {
	for _, mode := range []Mode{ModeMove, ModeCopy} {
		t.Run(string(mode), func(t *testing.T) {
			a, src := newTestArchiver(t, mode)

			first := mustArchive(t, a, src, "spring-1")
			if first.Status != StatusArchived {
				t.Fatalf("first Status = %v, want %v", first.Status, StatusArchived)
			}

			// A later export on the same day
			if err := os.WriteFile(src, []byte("frame two"), 0644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			second := mustArchive(t, a, src, "spring-1")
			if second.Status != StatusSkipped {
				t.Errorf("second Status = %v, want %v", second.Status, StatusSkipped)
			}
			if got := readFile(t, first.Destination); got != "frame one" {
				t.Errorf("archived content = %q, want %q", got, "frame one")
			}

			// Skipped captures stay in the export directory
			mustExist(t, src)
		})
	}
}

func TestArchive_SkipsWhenSourceMissingButDestinationExists(t *testing.T) {
	a, src := newTestArchiver(t, ModeMove)

	mustArchive(t, a, src, "spring-1")

	// Duplicate notification after the move already happened
	if res := mustArchive(t, a, src, "spring-1"); res.Status != StatusSkipped {
		t.Errorf("Status = %v, want %v", res.Status, StatusSkipped)
	}
}

func TestArchive_SourceMissing(t *testing.T) {
	for _, mode := range []Mode{ModeMove, ModeCopy} {
		t.Run(string(mode), func(t *testing.T) {
			a, _ := newTestArchiver(t, mode)

			_, err := a.Archive(filepath.Join(a.Directory().ExportDir, "missing.png"), "spring-1")
			if !errors.Is(err, os.ErrNotExist) {
				t.Errorf("Archive() error = %v, want os.ErrNotExist", err)
			}
		})
	}
}

func TestArchive_DestinationDirMissing(t *testing.T) {
	a, src := newTestArchiver(t, ModeMove)
	if err := os.RemoveAll(a.Directory().Path); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}

	if _, err := a.Archive(src, "spring-1"); err == nil {
		t.Fatal("Archive() succeeded without an archive directory")
	}
	mustExist(t, src)
}

func TestArchive_ConcurrentSameDestination(t *testing.T) {
	for _, mode := range []Mode{ModeMove, ModeCopy} {
		t.Run(string(mode), func(t *testing.T) {
			a, src := newTestArchiver(t, mode)

			const racers = 8
			var wg sync.WaitGroup
			results := make(chan Result, racers)
			errs := make(chan error, racers)

			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := a.Archive(src, "spring-1")
					if err != nil {
						errs <- err
						return
					}
					results <- res
				}()
			}
			wg.Wait()
			close(results)
			close(errs)

			archived := 0
			for res := range results {
				if res.Status == StatusArchived {
					archived++
				}
			}
			if archived != 1 {
				t.Errorf("%d racers archived, want exactly 1", archived)
			}

			// Move-mode losers may find the source already gone; none may overwrite.
			if mode == ModeCopy {
				for err := range errs {
					t.Errorf("unexpected error: %v", err)
				}
			}

			if got := readFile(t, filepath.Join(a.Directory().Path, "spring-1.png")); got != "frame one" {
				t.Errorf("archived content = %q, want %q", got, "frame one")
			}
		})
	}
}

func TestArchive_SequenceNamesUnique(t *testing.T) {
	a, src := newTestArchiver(t, ModeCopy)

	n := newSequenceNamer(t, a.Directory().Path)
	for i := 0; i < 3; i++ {
		if res := mustArchive(t, a, src, nextName(t, n)); res.Status != StatusArchived {
			t.Errorf("Status = %v, want %v", res.Status, StatusArchived)
		}
	}

	frames, err := a.Directory().Frames()
	if err != nil {
		t.Fatalf("Frames() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[0].Name != "0.png" || frames[2].Name != "2.png" {
		t.Errorf("frames = %s..%s, want 0.png..2.png", frames[0].Name, frames[2].Name)
	}
}
