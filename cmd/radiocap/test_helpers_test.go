package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"radiocap/internal/capture"
	"radiocap/internal/config"
	"radiocap/internal/daemon"
	"radiocap/internal/ipc"
	"radiocap/internal/logging"
	"radiocap/internal/store"
	"radiocap/internal/testsupport"
)

const testCatalog = `
[[station]]
call_sign = "KCLI"
stream_url = "http://stream.example.org/kcli"
timezone = "UTC"

[[show]]
key = "cli-show"
station = "KCLI"
duration_minutes = 30

[[show.airing]]
pattern = "30 8 * * *"
`

// holdingExecutor writes a little audio and then holds until cancelled.
type holdingExecutor struct{}

func (holdingExecutor) Run(ctx context.Context, _ string, args []string, _ func(string)) error {
	dir := filepath.Dir(args[len(args)-1])
	for i := 0; i+1 < len(args); i++ {
		switch args[i] {
		case "-d":
			dir = args[i+1]
		case "-o":
			dir = filepath.Dir(args[i+1])
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "capture.mp3"), make([]byte, 4096), 0o644); err != nil {
		return err
	}
	<-ctx.Done()
	return context.Cause(ctx)
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	baseDir    string
}

// newCLIConfig writes a config file matching a fresh test config.
func newCLIConfig(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	cfg.Paths.WatchCatalog = false
	cfg.Probe.Enabled = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "radiocap", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		baseDir:    base,
	}
}

// setupCLITestEnv additionally runs a daemon with an IPC server on the
// configured socket.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := newCLIConfig(t)

	st, err := store.Open(env.cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	logger := logging.NewNop()
	d, err := daemon.New(env.cfg, st, logger, daemon.WithCaptureOptions(capture.WithExecutor(holdingExecutor{})))
	if err != nil {
		_ = st.Close()
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		_ = d.Close()
		t.Fatalf("daemon.Start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		_ = d.Close()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	env.daemon = d

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})
	return env
}

func (env *cliTestEnv) writeCatalog(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(env.cfg.Paths.CatalogPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLI(t, args, env.socketPath, env.configPath)
	return stdout, err
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
recordings_dir = %q
staging_dir = %q
log_dir = %q
catalog_path = %q
watch_catalog = false
api_bind = ""

[probe]
enabled = false
`,
		cfg.Paths.DataDir,
		cfg.Paths.RecordingsDir,
		cfg.Paths.StagingDir,
		cfg.Paths.LogDir,
		cfg.Paths.CatalogPath,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
