//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, <-chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	return cmd, waitCh
}

func TestTerminateKillsWholeGroup(t *testing.T) {
	cmd, waitCh := startGroup(t, "sleep 30 & sleep 30")
	time.Sleep(100 * time.Millisecond)

	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		t.Fatalf("getpgid: %v", err)
	}
	if pgid != cmd.Process.Pid {
		t.Fatalf("expected process to lead its group, pgid=%d pid=%d", pgid, cmd.Process.Pid)
	}

	done := make(chan struct{})
	go func() {
		_ = Terminate(cmd, waitCh, 2*time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("terminate did not return")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		err := unix.Kill(-pgid, 0)
		if errors.Is(err, unix.ESRCH) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("process group %d still alive: %v", pgid, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestTerminateEscalatesToSIGKILL(t *testing.T) {
	cmd, waitCh := startGroup(t, "trap '' TERM; sleep 30")
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	err := Terminate(cmd, waitCh, 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected non-nil wait error after SIGKILL")
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Fatalf("returned before grace elapsed: %v", elapsed)
	}
}

func TestKillNilAndExited(t *testing.T) {
	if err := Kill(nil, unix.SIGTERM); err != nil {
		t.Fatalf("nil cmd: %v", err)
	}
	if err := Terminate(&exec.Cmd{}, nil, time.Second); err != nil {
		t.Fatalf("unstarted cmd: %v", err)
	}

	cmd, waitCh := startGroup(t, "exit 0")
	if err := <-waitCh; err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := Kill(cmd, unix.SIGTERM); err != nil {
		t.Fatalf("exited group: %v", err)
	}
}
