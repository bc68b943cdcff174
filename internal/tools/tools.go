package tools

import (
	"strings"
)

// Tool names an external capture program.
type Tool string

const (
	// Streamripper is the dedicated stream-capture tool for plain
	// Icecast/Shoutcast style HTTP streams.
	Streamripper Tool = "streamripper"
	// FFmpeg is the transcoding tool; it handles the broadest set of
	// protocols and is the default when nothing else matches.
	FFmpeg Tool = "ffmpeg"
	// YtDlp is the general download tool that understands provider
	// redirect and player pages.
	YtDlp Tool = "yt-dlp"
)

// All returns every known tool in the default fallback order.
func All() []Tool {
	return []Tool{Streamripper, FFmpeg, YtDlp}
}

// Parse resolves a configured or stored tool name.
func Parse(name string) (Tool, bool) {
	switch Tool(strings.ToLower(strings.TrimSpace(name))) {
	case Streamripper:
		return Streamripper, true
	case FFmpeg:
		return FFmpeg, true
	case YtDlp, "ytdlp", "youtube-dl":
		return YtDlp, true
	default:
		return "", false
	}
}

func (t Tool) String() string { return string(t) }
