package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// frameHeader is an MPEG-1 Layer III frame header (128 kbit/s, 44.1 kHz), so
// fixture files look like audio to anything that sniffs them.
var frameHeader = []byte{0xFF, 0xFB, 0x90, 0x64}

// AppendCaptureOutput grows the file at path by size bytes, creating it and
// its directory when missing. It returns an error instead of failing the
// test so fake tool executors can call it from their own goroutines.
func AppendCaptureOutput(path string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 16*1024)
	for i := range buf {
		buf[i] = frameHeader[i%len(frameHeader)]
	}
	for remaining := size; remaining > 0; {
		n := min(remaining, int64(len(buf)))
		if _, err := f.Write(buf[:n]); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		remaining -= n
	}
	return nil
}

// WriteRecordingFile creates a finished recording of size bytes named name
// in dir and returns its path.
func WriteRecordingFile(t testing.TB, dir, name string, size int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		t.Fatalf("reset %s: %v", path, err)
	}
	if err := AppendCaptureOutput(path, size); err != nil {
		t.Fatal(err)
	}
	return path
}
