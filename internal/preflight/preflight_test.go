package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"radiocap/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass with 1 byte minimum, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, 1<<62)
	if result.Passed {
		t.Fatalf("expected failure with an impossible minimum, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "below") {
		t.Fatalf("detail should mention the threshold: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckCatalog(t *testing.T) {
	dir := t.TempDir()

	missing := CheckCatalog(filepath.Join(dir, "absent.toml"))
	if !missing.Passed {
		t.Fatalf("missing catalog should pass, got: %s", missing.Detail)
	}

	valid := filepath.Join(dir, "catalog.toml")
	content := `
[[station]]
call_sign = "KUTC"
stream_url = "http://stream.example.org/kutc"

[[show]]
key = "news"
station = "KUTC"
duration_minutes = 30

[[show.airing]]
pattern = "0 8 * * *"

[[show.airing]]
pattern = "not a pattern"
`
	if err := os.WriteFile(valid, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckCatalog(valid)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "1 stations, 1 shows") || !strings.Contains(result.Detail, "1 airing warnings") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}

	broken := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(broken, []byte("[[show]]\nstation = \"KUTC\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckCatalog(broken); result.Passed {
		t.Fatal("expected failure for show without key")
	}
}

func TestRunAllReportsCaptureTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	for _, name := range []string{"Data directory", "Staging directory", "Recordings directory", "Catalog"} {
		if r, ok := byName[name]; !ok || !r.Passed {
			t.Fatalf("%s: expected pass, got %+v", name, r)
		}
	}
	tools, ok := byName["Capture tools"]
	if !ok || !tools.Passed {
		t.Fatalf("capture tools: expected pass with ffmpeg stubbed, got %+v", tools)
	}
	if !strings.Contains(tools.Detail, "ffmpeg") {
		t.Fatalf("detail should list ffmpeg: %s", tools.Detail)
	}
}

func TestCaptureToolsResultFailsWhenNoneInstalled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.StreamripperBinary = "/nonexistent/streamripper"
	cfg.Tools.FFmpegBinary = "/nonexistent/ffmpeg"
	cfg.Tools.YtDlpBinary = "/nonexistent/yt-dlp"

	result := captureToolsResult(CheckCaptureTools(context.Background(), cfg))
	if result.Passed {
		t.Fatalf("expected failure, got %+v", result)
	}
	if len(Failed([]Result{result})) != 1 {
		t.Fatal("Failed should return the failing result")
	}
}
