package archive

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
)

func writeNames(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
}

func newSequenceNamer(t *testing.T, dir string) *SequenceNamer {
	t.Helper()
	n, err := NewSequenceNamer(dir)
	if err != nil {
		t.Fatalf("NewSequenceNamer() error = %v", err)
	}
	return n
}

func nextName(t *testing.T, n Namer) string {
	t.Helper()
	name, err := n.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	return name
}

func TestNextIndex(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  int
	}{
		{name: "mixed", names: []string{"3.png", "x.png", "7.png"}, want: 8},
		{name: "only non-numeric", names: []string{"a.png"}, want: 0},
		{name: "empty", names: nil, want: 0},
		{name: "zero", names: []string{"0.png"}, want: 1},
		{name: "leading zeros", names: []string{"007.png"}, want: 8},
		{name: "no extension", names: []string{"4"}, want: 5},
		{name: "mixed extensions", names: []string{"1.png", "5.bmp"}, want: 6},
		{name: "signed", names: []string{"-3.png", "+4.png"}, want: 0},
		{name: "date keys", names: []string{"spring-1.png", "summer-28.png"}, want: 0},
		{name: "overflow", names: []string{"99999999999999999999999.png", "2.png"}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextIndex(tt.names); got != tt.want {
				t.Errorf("NextIndex(%q) = %d, want %d", tt.names, got, tt.want)
			}
		})
	}
}

func TestParseIndex(t *testing.T) {
	idx, ok := ParseIndex("12.png")
	if !ok || idx != 12 {
		t.Errorf("ParseIndex(12.png) = %d, %v, want 12, true", idx, ok)
	}

	for _, name := range []string{"", ".png", "1a.png", " 1.png", "1.5.png"} {
		if _, ok := ParseIndex(name); ok {
			t.Errorf("ParseIndex(%q) accepted a non-index name", name)
		}
	}
}

func TestNewSequenceNamer(t *testing.T) {
	dir := t.TempDir()
	writeNames(t, dir, "3.png", "x.png", "7.png")

	n := newSequenceNamer(t, dir)
	if got := n.Peek(); got != 8 {
		t.Fatalf("Peek() = %d, want 8", got)
	}

	if name := nextName(t, n); name != "8" {
		t.Errorf("first Next() = %q, want %q", name, "8")
	}
	if name := nextName(t, n); name != "9" {
		t.Errorf("second Next() = %q, want %q", name, "9")
	}
	if got := n.Peek(); got != 10 {
		t.Errorf("Peek() = %d, want 10", got)
	}
}

func TestNewSequenceNamer_EmptyDir(t *testing.T) {
	n := newSequenceNamer(t, t.TempDir())

	if name := nextName(t, n); name != "0" {
		t.Errorf("Next() = %q, want %q", name, "0")
	}
}

func TestNewSequenceNamer_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "50"), 0755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	writeNames(t, dir, "2.png")

	if got := newSequenceNamer(t, dir).Peek(); got != 3 {
		t.Errorf("Peek() = %d, want 3", got)
	}
}

func TestNewSequenceNamer_MissingDir(t *testing.T) {
	_, err := NewSequenceNamer(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("NewSequenceNamer() error = %v, want os.ErrNotExist", err)
	}
}

func TestSequenceNamer_RestartContinues(t *testing.T) {
	dir := t.TempDir()

	n := newSequenceNamer(t, dir)
	for i := 0; i < 3; i++ {
		writeNames(t, dir, nextName(t, n)+".png")
	}

	if got := newSequenceNamer(t, dir).Peek(); got != 3 {
		t.Errorf("Peek() after restart = %d, want 3", got)
	}
}

func TestSequenceNamer_ConcurrentNextUnique(t *testing.T) {
	n := newSequenceNamer(t, t.TempDir())

	const callers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := n.Next()
			if err != nil {
				t.Errorf("Next() error = %v", err)
				return
			}
			mu.Lock()
			seen[name] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != callers {
		t.Errorf("got %d distinct names, want %d", len(seen), callers)
	}
	for i := 0; i < callers; i++ {
		if !seen[strconv.Itoa(i)] {
			t.Errorf("missing index %d", i)
		}
	}
}

func TestDateNamer(t *testing.T) {
	n := NewDateNamer(FixedCalendar{Season: "spring", Day: 1})

	first := nextName(t, n)
	second := nextName(t, n)

	if first != "spring-1" {
		t.Errorf("Next() = %q, want %q", first, "spring-1")
	}
	if second != first {
		t.Errorf("repeated Next() = %q, want %q", second, first)
	}
}

func TestDateNamer_FollowsCalendar(t *testing.T) {
	today := Date{Season: "summer", Day: 27}
	n := NewDateNamer(CalendarFunc(func() (Date, bool) { return today, true }))

	if name := nextName(t, n); name != "summer-27" {
		t.Errorf("Next() = %q, want %q", name, "summer-27")
	}

	today = Date{Season: "summer", Day: 28}
	if name := nextName(t, n); name != "summer-28" {
		t.Errorf("Next() after day change = %q, want %q", name, "summer-28")
	}
}

func TestDateNamer_NoDate(t *testing.T) {
	n := NewDateNamer(FixedCalendar{})

	if _, err := n.Next(); !errors.Is(err, ErrNoDate) {
		t.Errorf("Next() error = %v, want ErrNoDate", err)
	}
}

func TestDate_Key(t *testing.T) {
	if got := (Date{Season: "winter", Day: 28}).Key(); got != "winter-28" {
		t.Errorf("Key() = %q, want %q", got, "winter-28")
	}
	if !(Date{}).IsZero() {
		t.Error("zero Date reports IsZero() = false")
	}
	if (Date{Season: "fall", Day: 1}).IsZero() {
		t.Error("set Date reports IsZero() = true")
	}
}
