package list

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/internal/testutil"
)

func createTestCommand(args ...string) (*cobra.Command, *bytes.Buffer) {
	listPlayer, listGameID, listJSON = "", "", false

	cmd := &cobra.Command{
		Use:     "list",
		PreRunE: validateList,
		RunE:    runList,
	}
	cmd.Flags().StringVar(&listPlayer, "player", "", "")
	cmd.Flags().StringVar(&listGameID, "game-id", "", "")
	cmd.Flags().BoolVar(&listJSON, "json", false, "")
	cmd.SetArgs(args)

	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &stdout
}

func writeFrame(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func TestListCmd_NoDirectory(t *testing.T) {
	env := testutil.NewTestEnv(t)

	cmd, stdout := createTestCommand("--player", "Abby", "--game-id", "123")
	if err := cmd.Execute(); err != nil {
		t.Fatalf("list command failed: %v", err)
	}

	if !strings.Contains(stdout.String(), "No frames archived for Abby-123") {
		t.Errorf("expected empty message, got: %s", stdout.String())
	}

	if _, err := os.Stat(filepath.Join(env.ExportDir(), "timelapse-Abby-123")); !os.IsNotExist(err) {
		t.Error("list created the archive directory")
	}
}

func TestListCmd_WithFrames(t *testing.T) {
	env := testutil.NewTestEnv(t)
	dir := filepath.Join(env.ExportDir(), "timelapse-Abby-123")
	writeFrame(t, dir, "spring-2.png", 16, 9)
	writeFrame(t, dir, "spring-1.png", 32, 18)
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd, stdout := createTestCommand("--player", "Abby", "--game-id", "123")
	if err := cmd.Execute(); err != nil {
		t.Fatalf("list command failed: %v", err)
	}

	output := stdout.String()
	for _, want := range []string{"3 frames", "NAME", "DIMENSIONS", "spring-1.png", "32x18", "16x9", "broken.png", "unknown"} {
		if !strings.Contains(output, want) {
			t.Errorf("list output missing %q:\n%s", want, output)
		}
	}
}

func TestListCmd_JSON(t *testing.T) {
	env := testutil.NewTestEnv(t)
	dir := filepath.Join(env.ExportDir(), "timelapse-Abby")
	writeFrame(t, dir, "1.png", 8, 8)
	writeFrame(t, dir, "0.png", 4, 4)

	cmd, stdout := createTestCommand("--player", "Abby", "--json")
	if err := cmd.Execute(); err != nil {
		t.Fatalf("list command failed: %v", err)
	}

	var rows []FrameRow
	if err := json.Unmarshal(stdout.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout.String())
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Name != "0.png" || rows[0].Width != 4 || rows[0].Format != "png" {
		t.Errorf("rows[0] = %+v", rows[0])
	}
}

func TestListCmd_RequiresPlayer(t *testing.T) {
	testutil.NewTestEnv(t)

	cmd, _ := createTestCommand()
	if err := cmd.Execute(); err == nil {
		t.Error("list without --player should fail")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}

	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
