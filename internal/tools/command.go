package tools

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Invocation describes one bounded capture run.
type Invocation struct {
	URL string
	// Dir receives the tool's output; each attempt gets its own directory so
	// tools that append extensions can still be located.
	Dir      string
	BaseName string
	Duration time.Duration
}

// Command returns the binary and arguments that capture inv with tool.
func (r *Registry) Command(tool Tool, inv Invocation) (string, []string) {
	seconds := strconv.Itoa(int(math.Ceil(inv.Duration.Seconds())))
	if inv.Duration <= 0 {
		seconds = "1"
	}
	base := strings.TrimSpace(inv.BaseName)
	if base == "" {
		base = "capture"
	}
	switch tool {
	case Streamripper:
		return r.Binary(Streamripper), []string{
			inv.URL,
			"-d", inv.Dir,
			"-a", base,
			"-A",
			"-s",
			"-l", seconds,
			"--quiet",
		}
	case YtDlp:
		return r.Binary(YtDlp), []string{
			"--no-playlist",
			"--no-progress",
			"--quiet",
			"--no-part",
			"-f", "bestaudio/best",
			"-o", filepath.Join(inv.Dir, base+".%(ext)s"),
			"--downloader", "ffmpeg",
			"--downloader-args", "ffmpeg:-t " + seconds,
			inv.URL,
		}
	default:
		args := []string{
			"-hide_banner",
			"-nostdin",
			"-loglevel", "error",
			"-y",
		}
		if strings.HasPrefix(strings.ToLower(inv.URL), "http") {
			args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
		}
		args = append(args,
			"-i", inv.URL,
			"-t", seconds,
			"-vn",
			"-c:a", "libmp3lame",
			"-q:a", "2",
			filepath.Join(inv.Dir, base+".mp3"),
		)
		return r.Binary(FFmpeg), args
	}
}
