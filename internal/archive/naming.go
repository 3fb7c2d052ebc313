package archive

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/leefowlercu/timelapse/internal/fsutil"
)

// ErrNoDate is returned by DateNamer when the calendar has no current date.
var ErrNoDate = errors.New("no in-game date available")

// Namer allocates the base name (without extension) of the next frame.
type Namer interface {
	Next() (string, error)
}

// Date is an in-game calendar date.
type Date struct {
	Season string
	Day    int
}

// Key returns the date-key frame name, "{season}-{day}".
func (d Date) Key() string {
	return fmt.Sprintf("%s-%d", d.Season, d.Day)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Season == "" && d.Day == 0
}

// Calendar supplies the current in-game date.
type Calendar interface {
	Today() (Date, bool)
}

// CalendarFunc adapts a function to the Calendar interface.
type CalendarFunc func() (Date, bool)

// Today implements Calendar.
func (f CalendarFunc) Today() (Date, bool) {
	return f()
}

// FixedCalendar is a Calendar that always reports the same date.
type FixedCalendar Date

// Today implements Calendar.
func (c FixedCalendar) Today() (Date, bool) {
	d := Date(c)
	return d, !d.IsZero()
}

// DateNamer names frames after the current in-game date. It keeps no state;
// a second capture on the same day yields the same name and is skipped by
// the Archiver.
type DateNamer struct {
	calendar Calendar
}

// NewDateNamer creates a DateNamer reading dates from calendar.
func NewDateNamer(calendar Calendar) *DateNamer {
	return &DateNamer{calendar: calendar}
}

// Next implements Namer.
func (n *DateNamer) Next() (string, error) {
	date, ok := n.calendar.Today()
	if !ok || date.Season == "" {
		return "", ErrNoDate
	}
	return date.Key(), nil
}

// SequenceNamer names frames with increasing integers, continuing after the
// highest index already present in the archive directory.
type SequenceNamer struct {
	mu   sync.Mutex
	next int
}

// NewSequenceNamer scans dir and starts allocating at one past the highest
// existing index, or at 0 when the directory holds no indexed frames.
func NewSequenceNamer(dir string) (*SequenceNamer, error) {
	next, err := ScanNextIndex(dir)
	if err != nil {
		return nil, err
	}
	return &SequenceNamer{next: next}, nil
}

// Next returns the current index and advances the counter.
func (n *SequenceNamer) Next() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.next == math.MaxInt {
		return "", errors.New("sequence index exhausted")
	}
	name := strconv.Itoa(n.next)
	n.next++
	return name, nil
}

// Peek returns the index Next would allocate without advancing.
func (n *SequenceNamer) Peek() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next
}

// ScanNextIndex returns 1 + the highest index among the names in dir, or 0
// when none parse. Unparseable names are ignored.
func ScanNextIndex(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read archive directory; %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	return NextIndex(names), nil
}

// NextIndex returns 1 + the highest index among names, or 0 when none parse.
func NextIndex(names []string) int {
	highest := -1
	for _, name := range names {
		if idx, ok := ParseIndex(name); ok && idx > highest {
			highest = idx
		}
	}
	return highest + 1
}

// ParseIndex parses a frame file name, stripped of its extension, as a
// non-negative decimal index. Signs, spaces, and other characters make the
// name unparseable.
func ParseIndex(name string) (int, bool) {
	base, _ := fsutil.SplitName(name)
	if base == "" {
		return 0, false
	}
	for _, r := range base {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	idx, err := strconv.Atoi(base)
	if err != nil || idx == math.MaxInt {
		return 0, false
	}
	return idx, true
}
