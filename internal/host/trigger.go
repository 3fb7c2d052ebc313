package host

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/leefowlercu/timelapse/internal/metrics"
)

// Trigger kinds.
const (
	TriggerStdout  = "stdout"
	TriggerCommand = "command"
	TriggerNone    = "none"
)

// Trigger asks the host to export a map image.
type Trigger interface {
	Export(ctx context.Context, target, scope string) error
}

// WriterTrigger writes the host console command "export {target} {scope}"
// as one line, for hosts that read commands back over a pipe.
type WriterTrigger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterTrigger creates a WriterTrigger writing to w.
func NewWriterTrigger(w io.Writer) *WriterTrigger {
	return &WriterTrigger{w: w}
}

// Export implements Trigger.
func (t *WriterTrigger) Export(ctx context.Context, target, scope string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprintf(t.w, "export %s %s\n", target, scope); err != nil {
		metrics.RecordTriggerError(TriggerStdout)
		return fmt.Errorf("failed to write export command; %w", err)
	}
	return nil
}

// NopTrigger does nothing; the host exports on its own schedule.
type NopTrigger struct{}

// Export implements Trigger.
func (NopTrigger) Export(ctx context.Context, target, scope string) error {
	return nil
}

// CommandOption configures a CommandTrigger.
type CommandOption func(*CommandTrigger)

// WithBackground makes Export start the command and return immediately; the
// process is reaped on a separate goroutine.
func WithBackground(background bool) CommandOption {
	return func(t *CommandTrigger) {
		t.background = background
	}
}

// WithCommandLogger sets the logger for the trigger.
func WithCommandLogger(logger *slog.Logger) CommandOption {
	return func(t *CommandTrigger) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// CommandTrigger runs an external command to export the map. The
// placeholders {target} and {scope} are substituted in every argument.
type CommandTrigger struct {
	argv       []string
	background bool
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewCommandTrigger creates a CommandTrigger for argv.
func NewCommandTrigger(argv []string, opts ...CommandOption) (*CommandTrigger, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, fmt.Errorf("export command is empty")
	}

	t := &CommandTrigger{
		argv:   append([]string(nil), argv...),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Args returns argv with placeholders substituted.
func (t *CommandTrigger) Args(target, scope string) []string {
	r := strings.NewReplacer("{target}", target, "{scope}", scope)
	args := make([]string, len(t.argv))
	for i, a := range t.argv {
		args[i] = r.Replace(a)
	}
	return args
}

// Export implements Trigger.
func (t *CommandTrigger) Export(ctx context.Context, target, scope string) error {
	args := t.Args(target, scope)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if !t.background {
		if err := cmd.Run(); err != nil {
			metrics.RecordTriggerError(TriggerCommand)
			return fmt.Errorf("failed to run export command; %w; output: %s", err, strings.TrimSpace(output.String()))
		}
		return nil
	}

	if err := cmd.Start(); err != nil {
		metrics.RecordTriggerError(TriggerCommand)
		return fmt.Errorf("failed to start export command; %w", err)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := cmd.Wait(); err != nil {
			metrics.RecordTriggerError(TriggerCommand)
			t.logger.Warn("export command failed",
				"command", args[0],
				"error", err,
				"output", strings.TrimSpace(output.String()),
			)
		}
	}()

	return nil
}

// Wait blocks until all background commands have exited.
func (t *CommandTrigger) Wait() {
	t.wg.Wait()
}

// NewTrigger builds the Trigger for a configured kind. Command triggers run
// in the background when background is set.
func NewTrigger(kind string, command []string, out io.Writer, background bool, logger *slog.Logger) (Trigger, error) {
	switch kind {
	case TriggerStdout, "":
		return NewWriterTrigger(out), nil
	case TriggerCommand:
		return NewCommandTrigger(command, WithBackground(background), WithCommandLogger(logger))
	case TriggerNone:
		return NopTrigger{}, nil
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", kind)
	}
}
