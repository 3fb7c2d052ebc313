package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/leefowlercu/timelapse/internal/session"
)

// fakeSource blocks until closed or canceled.
type fakeSource struct {
	done chan struct{}
	err  error
}

func newFakeSource() *fakeSource {
	return &fakeSource{done: make(chan struct{})}
}

func (s *fakeSource) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.err
	}
}

type fakeController struct {
	mu       sync.Mutex
	attached int
	detached int
	stopped  int
}

func (c *fakeController) Attach(ctx context.Context) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached++
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.detached++
	}
}

func (c *fakeController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped++
	return nil
}

func (c *fakeController) Status() session.Status {
	return session.Status{State: session.StateUninitialized}
}

func (c *fakeController) counts() (int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached, c.detached, c.stopped
}

func testDaemonConfig(t *testing.T) DaemonConfig {
	t.Helper()
	return DaemonConfig{
		HTTPBind:        "127.0.0.1",
		ShutdownTimeout: 2 * time.Second,
		PIDFile:         filepath.Join(t.TempDir(), "timelapse.pid"),
	}
}

func waitForState(t *testing.T, d *Daemon, want DaemonState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("daemon state = %v, want %v", d.State(), want)
}

func TestDaemonState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from DaemonState
		to   DaemonState
		want bool
	}{
		{"idle to starting", DaemonStateIdle, DaemonStateStarting, true},
		{"idle to running", DaemonStateIdle, DaemonStateRunning, false},
		{"starting to running", DaemonStateStarting, DaemonStateRunning, true},
		{"starting to stopped", DaemonStateStarting, DaemonStateStopped, true},
		{"starting to stopping", DaemonStateStarting, DaemonStateStopping, false},
		{"running to stopping", DaemonStateRunning, DaemonStateStopping, true},
		{"running to stopped", DaemonStateRunning, DaemonStateStopped, false},
		{"stopping to stopped", DaemonStateStopping, DaemonStateStopped, true},
		{"stopping to running", DaemonStateStopping, DaemonStateRunning, false},
		{"stopped to starting", DaemonStateStopped, DaemonStateStarting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("DaemonState(%v).CanTransitionTo(%v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestDaemonState_IsTerminal(t *testing.T) {
	if !DaemonStateStopped.IsTerminal() {
		t.Error("stopped should be terminal")
	}
	if DaemonStateRunning.IsTerminal() {
		t.Error("running should not be terminal")
	}
}

func TestNewDaemon(t *testing.T) {
	d := NewDaemon(testDaemonConfig(t), newFakeSource(), &fakeController{})

	if d.State() != DaemonStateIdle {
		t.Errorf("NewDaemon().State() = %v, want %v", d.State(), DaemonStateIdle)
	}
	if d.Server() != nil {
		t.Error("Server() should be nil when HTTPPort is 0")
	}
	if d.Health().Status != HealthHealthy {
		t.Errorf("Health().Status = %v, want %v", d.Health().Status, HealthHealthy)
	}
}

func TestDaemon_Run_ContextCancellation(t *testing.T) {
	cfg := testDaemonConfig(t)
	ctrl := &fakeController{}
	d := NewDaemon(cfg, newFakeSource(), ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx)
	}()

	waitForState(t, d, DaemonStateRunning)

	if _, err := os.Stat(cfg.PIDFile); err != nil {
		t.Errorf("PID file not written while running: %v", err)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}

	if d.State() != DaemonStateStopped {
		t.Errorf("State() = %v, want %v", d.State(), DaemonStateStopped)
	}
	if _, err := os.Stat(cfg.PIDFile); !os.IsNotExist(err) {
		t.Error("PID file not removed after Run()")
	}

	attached, detached, stopped := ctrl.counts()
	if attached != 1 || detached != 1 || stopped != 1 {
		t.Errorf("controller attach/detach/stop = %d/%d/%d, want 1/1/1", attached, detached, stopped)
	}
}

func TestDaemon_Run_SourceEOF(t *testing.T) {
	src := newFakeSource()
	ctrl := &fakeController{}
	d := NewDaemon(testDaemonConfig(t), src, ctrl)

	close(src.done)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, want nil on end of stream", err)
	}

	if _, _, stopped := ctrl.counts(); stopped != 1 {
		t.Errorf("controller stopped %d times, want 1", stopped)
	}
	reader, ok := d.health.Component(ComponentReader)
	if !ok || reader.Status != ComponentStatusStopped {
		t.Errorf("reader health = %+v, want stopped", reader)
	}
}

func TestDaemon_Run_SourceError(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("read /dev/stdin: input/output error")
	close(src.done)

	d := NewDaemon(testDaemonConfig(t), src, &fakeController{})

	err := d.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want read failure")
	}
	if !errors.Is(err, src.err) {
		t.Errorf("Run() error = %v, want wrapped source error", err)
	}
	if d.Health().Ready {
		t.Error("Health().Ready = true after reader failure")
	}
}

func TestDaemon_Run_PIDFileHeld(t *testing.T) {
	cfg := testDaemonConfig(t)
	if err := os.WriteFile(cfg.PIDFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}

	ctrl := &fakeController{}
	d := NewDaemon(cfg, newFakeSource(), ctrl)

	err := d.Run(context.Background())
	if !errors.Is(err, ErrDaemonAlreadyRunning) {
		t.Fatalf("Run() error = %v, want ErrDaemonAlreadyRunning", err)
	}
	if d.State() != DaemonStateStopped {
		t.Errorf("State() = %v, want %v", d.State(), DaemonStateStopped)
	}
	if attached, _, _ := ctrl.counts(); attached != 0 {
		t.Error("controller attached despite PID file conflict")
	}
	if _, err := os.Stat(cfg.PIDFile); err != nil {
		t.Error("held PID file was removed")
	}
}

func TestDaemon_Run_Twice(t *testing.T) {
	src := newFakeSource()
	close(src.done)
	d := NewDaemon(testDaemonConfig(t), src, &fakeController{})

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Run() error = %v, want ErrInvalidState", err)
	}
}
