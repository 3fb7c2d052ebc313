package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leefowlercu/timelapse/internal/archive"
	"github.com/leefowlercu/timelapse/internal/metrics"
)

// ErrUnknownSignal is returned by ParseSignal for event names it does not
// recognize.
var ErrUnknownSignal = errors.New("unknown signal")

// maxLineSize bounds a single signal line.
const maxLineSize = 64 * 1024

// wireSignal is the JSON form of a Signal.
type wireSignal struct {
	Event    string `json:"event"`
	Player   string `json:"player,omitempty"`
	GameID   string `json:"game_id,omitempty"`
	Season   string `json:"season,omitempty"`
	Day      int    `json:"day,omitempty"`
	Location string `json:"location,omitempty"`
}

// ParseSignal decodes one JSON signal line.
func ParseSignal(line []byte) (Signal, error) {
	var w wireSignal
	if err := json.Unmarshal(line, &w); err != nil {
		return Signal{}, fmt.Errorf("failed to decode signal; %w", err)
	}

	sig := Signal{
		Type:     SignalType(w.Event),
		Player:   strings.TrimSpace(w.Player),
		GameID:   strings.TrimSpace(w.GameID),
		Date:     archive.Date{Season: strings.TrimSpace(w.Season), Day: w.Day},
		Location: strings.TrimSpace(w.Location),
	}

	switch sig.Type {
	case SessionStarted:
		if sig.Player == "" {
			return Signal{}, errors.New("session_started requires player")
		}
	case DayStarted:
		if sig.Date.Season == "" || sig.Date.Day < 1 {
			return Signal{}, errors.New("day_started requires season and a positive day")
		}
	case LocationChanged:
		if sig.Location == "" {
			return Signal{}, errors.New("location_changed requires location")
		}
	default:
		return Signal{}, fmt.Errorf("%w: %q", ErrUnknownSignal, w.Event)
	}

	return sig, nil
}

// FormatSignal encodes a Signal as one JSON line without the trailing newline.
func FormatSignal(sig Signal) ([]byte, error) {
	return json.Marshal(wireSignal{
		Event:    string(sig.Type),
		Player:   sig.Player,
		GameID:   sig.GameID,
		Season:   sig.Date.Season,
		Day:      sig.Date.Day,
		Location: sig.Location,
	})
}

// ReaderOption configures the Reader.
type ReaderOption func(*Reader)

// WithReaderLogger sets the logger for the reader.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// Reader reads JSON-lines signals and emits them on a Dispatcher.
type Reader struct {
	src        io.Reader
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewReader creates a Reader emitting signals from src onto d.
func NewReader(src io.Reader, d *Dispatcher, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:        src,
		dispatcher: d,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.With("component", "host-reader")
	return r
}

// Run reads signals until the source is exhausted or ctx is cancelled.
// Malformed lines are logged and skipped; unknown events are ignored.
// Returns nil at end of input and ctx.Err() on cancellation.
//
// Run does not close src. A read blocked on src when ctx is cancelled keeps
// its goroutine until src yields or is closed by the caller.
func (r *Reader) Run(ctx context.Context) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.src)
		scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("failed to read signals; %w", err)
					}
				default:
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Debug("signal stream closed")
				return nil
			}
			r.handleLine(line)
		}
	}
}

func (r *Reader) handleLine(line []byte) {
	if len(strings.TrimSpace(string(line))) == 0 {
		return
	}

	sig, err := ParseSignal(line)
	if errors.Is(err, ErrUnknownSignal) {
		r.logger.Debug("ignoring unknown signal", "error", err)
		return
	}
	if err != nil {
		metrics.HostMalformedLinesTotal.Inc()
		r.logger.Warn("skipping malformed signal line", "line", string(line), "error", err)
		return
	}

	metrics.RecordHostSignal(string(sig.Type))
	r.logger.Debug("signal received", "signal", sig.Type)
	r.dispatcher.Emit(sig)
}
