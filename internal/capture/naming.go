package capture

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	filenameTimeLayout      = "20060102T1504Z"
	disambiguatedTimeLayout = "20060102T150405Z"
	defaultExtension        = ".mp3"
)

// Slug folds name to lowercase ASCII words joined by hyphens. Accented
// letters lose their marks; anything else that is not a letter or digit
// separates words.
func Slug(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// recordingName builds "<callsign>_<showkey>_<UTC start><ext>".
func recordingName(callSign, showKey string, started time.Time, ext string) string {
	return baseName(callSign, showKey) + "_" + started.UTC().Format(filenameTimeLayout) + normalizeExt(ext)
}

// disambiguatedName adds seconds and a session fragment for a second attempt
// after a filename collision.
func disambiguatedName(callSign, showKey string, started time.Time, sessionID, ext string) string {
	fragment := strings.ReplaceAll(sessionID, "-", "")
	if len(fragment) > 8 {
		fragment = fragment[:8]
	}
	return baseName(callSign, showKey) + "_" + started.UTC().Format(disambiguatedTimeLayout) + "-" + fragment + normalizeExt(ext)
}

func baseName(callSign, showKey string) string {
	station := Slug(callSign)
	if station == "" {
		station = "station"
	}
	show := Slug(showKey)
	if show == "" {
		show = "show"
	}
	return station + "_" + show
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return defaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
