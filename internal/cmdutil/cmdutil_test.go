package cmdutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leefowlercu/timelapse/internal/archive"
	"github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/host"
	"github.com/leefowlercu/timelapse/internal/session"
	"github.com/leefowlercu/timelapse/internal/testutil"
)

func TestResolvePath(t *testing.T) {
	env := testutil.NewTestEnv(t)
	home := filepath.Dir(env.ConfigDir)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"absolute", "/tmp/a/../b", "/tmp/b"},
		{"home", "~/game", filepath.Join(home, "game")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.in)
			if err != nil {
				t.Fatalf("ResolvePath(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ResolvePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	wd, _ := os.Getwd()
	if got, _ := ResolvePath("rel"); got != filepath.Join(wd, "rel") {
		t.Errorf("ResolvePath(rel) = %q", got)
	}
}

func TestLoadConfig(t *testing.T) {
	testutil.NewTestEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Capture.Target != config.DefaultCaptureTarget {
		t.Errorf("Capture.Target = %q", cfg.Capture.Target)
	}

	config.Set("capture.naming", "weekly")
	if _, err := LoadConfig(); !config.IsValidationError(err) {
		t.Errorf("LoadConfig() error = %v, want validation error", err)
	}
}

func TestLoadConfig_NotInitialized(t *testing.T) {
	config.Reset()
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() before Init should fail")
	}
}

func TestNewPipeline(t *testing.T) {
	testutil.NewTestEnv(t)
	config.Set("trigger.kind", config.TriggerNone)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	p, err := NewPipeline(cfg, config.DetectionPoll, &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	if _, ok := p.Trigger.(host.NopTrigger); !ok {
		t.Errorf("Trigger = %T, want host.NopTrigger", p.Trigger)
	}
	if _, ok := p.Detector.(*session.PollDetector); !ok {
		t.Errorf("Detector = %T, want *session.PollDetector", p.Detector)
	}
	if p.Detection != config.DetectionPoll {
		t.Errorf("Detection = %q, want poll", p.Detection)
	}
	if p.Controller.State() != session.StateUninitialized {
		t.Errorf("State() = %s, want uninitialized", p.Controller.State())
	}

	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !p.Bus.Stats().Closed {
		t.Error("bus still open after Close")
	}
}

func TestNewPipeline_DefaultsDetectWithNotify(t *testing.T) {
	testutil.NewTestEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	p, err := NewPipeline(cfg, "", &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	defer p.Close()

	if _, ok := p.Trigger.(*host.WriterTrigger); !ok {
		t.Errorf("Trigger = %T, want *host.WriterTrigger", p.Trigger)
	}
	if _, ok := p.Detector.(*session.NotifyDetector); !ok {
		t.Errorf("Detector = %T, want *session.NotifyDetector", p.Detector)
	}
	if p.Detection != config.DetectionNotify {
		t.Errorf("Detection = %q, want notify", p.Detection)
	}
}

func TestResolveDetection(t *testing.T) {
	tests := []struct {
		name       string
		trigger    string
		configured string
		requested  string
		want       string
	}{
		{"stdout forces notify", config.TriggerStdout, config.DetectionPoll, "", config.DetectionNotify},
		{"stdout overrides requested poll", config.TriggerStdout, config.DetectionNotify, config.DetectionPoll, config.DetectionNotify},
		{"command keeps poll", config.TriggerCommand, config.DetectionPoll, "", config.DetectionPoll},
		{"none keeps poll", config.TriggerNone, config.DetectionPoll, "", config.DetectionPoll},
		{"requested wins over configured", config.TriggerCommand, config.DetectionPoll, config.DetectionNotify, config.DetectionNotify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			cfg.Trigger.Kind = tt.trigger
			cfg.Capture.Detection = tt.configured

			if got := ResolveDetection(&cfg, tt.requested, nil); got != tt.want {
				t.Errorf("ResolveDetection() = %q, want %q", got, tt.want)
			}
		})
	}
}

// fakeHost reads export commands from r and, after a delay, writes an
// export file whose content names the command's ordinal.
func fakeHost(t *testing.T, r io.Reader, exportDir string, delay time.Duration) {
	t.Helper()

	go func() {
		scanner := bufio.NewScanner(r)
		n := 0
		for scanner.Scan() {
			if scanner.Text() != "export Farm all" {
				continue
			}
			n++
			time.Sleep(delay)
			content := fmt.Sprintf("rendered on day %d", n)
			if err := os.WriteFile(filepath.Join(exportDir, "Farm.png"), []byte(content), 0644); err != nil {
				t.Errorf("fake host failed to export: %v", err)
			}
		}
	}()
}

func waitForFrame(t *testing.T, path, want string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got, err := os.ReadFile(path); err == nil && string(got) == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	got, err := os.ReadFile(path)
	t.Fatalf("frame %s = %q (err %v), want %q", filepath.Base(path), got, err, want)
}

func TestPipeline_StdoutTriggerArchivesEachDaysExport(t *testing.T) {
	env := testutil.NewTestEnv(t)
	config.Set("capture.debounce_ms", 50)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	pr, pw := io.Pipe()
	defer pw.Close()

	p, err := NewPipeline(cfg, "", pw, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	defer p.Close()

	if err := os.MkdirAll(env.ExportDir(), 0755); err != nil {
		t.Fatal(err)
	}
	fakeHost(t, pr, env.ExportDir(), 20*time.Millisecond)

	ctx := context.Background()
	archiveDir := filepath.Join(env.ExportDir(), "timelapse-Abby-123")

	if err := p.Controller.SessionStarted(ctx, "Abby", "123", archive.Date{Season: "spring", Day: 1}); err != nil {
		t.Fatalf("SessionStarted() error = %v", err)
	}
	if err := p.Controller.LocationChanged(ctx, "Farm"); err != nil {
		t.Fatalf("LocationChanged() error = %v", err)
	}
	waitForFrame(t, filepath.Join(archiveDir, "spring-1.png"), "rendered on day 1")

	if err := p.Controller.DayStarted(ctx, archive.Date{Season: "spring", Day: 2}); err != nil {
		t.Fatalf("DayStarted() error = %v", err)
	}
	waitForFrame(t, filepath.Join(archiveDir, "spring-2.png"), "rendered on day 2")
}

func TestNewPipeline_NotifyWithCommand(t *testing.T) {
	testutil.NewTestEnv(t)
	config.Set("trigger.kind", config.TriggerCommand)
	config.Set("trigger.command", []string{"true"})
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	p, err := NewPipeline(cfg, config.DetectionNotify, &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	defer p.Close()

	if _, ok := p.Trigger.(*host.CommandTrigger); !ok {
		t.Errorf("Trigger = %T, want *host.CommandTrigger", p.Trigger)
	}
	if _, ok := p.Detector.(*session.NotifyDetector); !ok {
		t.Errorf("Detector = %T, want *session.NotifyDetector", p.Detector)
	}
}

func TestNewPipeline_UnknownDetection(t *testing.T) {
	testutil.NewTestEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewPipeline(cfg, "inotify", &bytes.Buffer{}, nil); err == nil {
		t.Error("NewPipeline() with unknown detection should fail")
	}
}
