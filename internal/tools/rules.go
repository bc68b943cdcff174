package tools

import (
	"net/url"
	"path"
	"strings"
)

// Rule maps a stream URL signature to the tool that should be tried first.
type Rule struct {
	Name  string
	Tool  Tool
	Match func(*url.URL) bool
}

// DefaultRules is evaluated top to bottom; the first match wins.
var DefaultRules = []Rule{
	{Name: "provider-redirect", Tool: YtDlp, Match: hostHasSuffix(
		"streamtheworld.com",
		"tunein.com",
		"iheart.com",
		"iheartradio.com",
		"radio.net",
		"live365.com",
		"securenetsystems.net",
		"audacy.com",
		"mixcloud.com",
		"soundcloud.com",
	)},
	{Name: "authenticated", Tool: FFmpeg, Match: hasCredentials},
	{Name: "modern-protocol", Tool: FFmpeg, Match: isModernProtocol},
	{Name: "direct-stream", Tool: Streamripper, Match: isDirectStream},
}

var tokenQueryKeys = []string{"token", "access_token", "auth", "key", "sig", "signature", "jwt", "hdnts", "expires"}

var directExtensions = map[string]struct{}{
	".mp3":  {},
	".aac":  {},
	".aacp": {},
	".ogg":  {},
	".opus": {},
	".pls":  {},
	".m3u":  {},
}

// Well-known Icecast/Shoutcast listener ports.
var directPorts = map[string]struct{}{
	"8000": {},
	"8008": {},
	"8010": {},
	"8080": {},
	"8443": {},
	"88":   {},
}

func hostHasSuffix(suffixes ...string) func(*url.URL) bool {
	return func(u *url.URL) bool {
		host := strings.ToLower(u.Hostname())
		for _, suffix := range suffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
		return false
	}
}

func hasCredentials(u *url.URL) bool {
	if u.User != nil {
		return true
	}
	query := u.Query()
	for _, key := range tokenQueryKeys {
		if query.Has(key) {
			return true
		}
	}
	return false
}

func isModernProtocol(u *url.URL) bool {
	switch strings.ToLower(u.Scheme) {
	case "rtmp", "rtmps", "rtsp", "rtsps", "mms", "mmsh", "srt":
		return true
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u8", ".mpd":
		return true
	}
	return false
}

func isDirectStream(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	p := strings.ToLower(u.Path)
	if strings.HasSuffix(p, ";") || strings.HasSuffix(u.RawQuery, ";") {
		return true
	}
	if _, ok := directExtensions[path.Ext(p)]; ok {
		return true
	}
	if _, ok := directPorts[u.Port()]; ok {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return strings.Contains(host, "icecast") || strings.Contains(host, "shoutcast")
}
