package tools

import (
	"net/url"
	"strings"
	"time"

	"radiocap/internal/config"
	"radiocap/internal/deps"
	"radiocap/internal/store"
)

// SelectionSource explains where a tool choice came from.
type SelectionSource string

const (
	SourceProbe    SelectionSource = "probe"
	SourceRule     SelectionSource = "rule"
	SourceDefault  SelectionSource = "default"
	SourceFallback SelectionSource = "fallback_order"
)

// defaultFallback is the most broadly compatible tool.
const defaultFallback = FFmpeg

// Selection is the first tool chosen for a station and the reason.
type Selection struct {
	Tool   Tool
	Source SelectionSource
	Rule   string
}

// Registry holds the capture tool knowledge used by sessions and probes.
type Registry struct {
	rules      []Rule
	order      []Tool
	staleAfter time.Duration
	binaries   map[Tool]string
}

// Option customizes a Registry.
type Option func(*Registry)

// WithRules replaces the URL signature table.
func WithRules(rules []Rule) Option {
	return func(r *Registry) {
		r.rules = append([]Rule(nil), rules...)
	}
}

// NewRegistry builds a registry from configuration.
func NewRegistry(cfg *config.Config, opts ...Option) *Registry {
	r := &Registry{
		rules:      append([]Rule(nil), DefaultRules...),
		staleAfter: time.Duration(config.Default().Tools.StaleAfterHours) * time.Hour,
		binaries: map[Tool]string{
			Streamripper: string(Streamripper),
			FFmpeg:       string(FFmpeg),
			YtDlp:        string(YtDlp),
		},
	}
	order := config.DefaultFallbackOrder
	if cfg != nil {
		if len(cfg.Capture.FallbackOrder) > 0 {
			order = cfg.Capture.FallbackOrder
		}
		if cfg.Tools.StaleAfterHours > 0 {
			r.staleAfter = time.Duration(cfg.Tools.StaleAfterHours) * time.Hour
		}
		setBinary(r.binaries, Streamripper, cfg.Tools.StreamripperBinary)
		setBinary(r.binaries, FFmpeg, cfg.Tools.FFmpegBinary)
		setBinary(r.binaries, YtDlp, cfg.Tools.YtDlpBinary)
	}
	for _, name := range order {
		if tool, ok := Parse(name); ok && !containsTool(r.order, tool) {
			r.order = append(r.order, tool)
		}
	}
	if len(r.order) == 0 {
		r.order = All()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func setBinary(binaries map[Tool]string, tool Tool, value string) {
	if value = strings.TrimSpace(value); value != "" {
		binaries[tool] = value
	}
}

// Order returns the configured fallback order.
func (r *Registry) Order() []Tool {
	return append([]Tool(nil), r.order...)
}

// Binary returns the executable configured for tool.
func (r *Registry) Binary(tool Tool) string {
	return r.binaries[tool]
}

// Classify applies the signature table to a stream URL, ignoring any
// probe history. Unparsable or unmatched URLs get the transcoding tool.
func (r *Registry) Classify(rawURL string) Selection {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return Selection{Tool: defaultFallback, Source: SourceDefault}
	}
	for _, rule := range r.rules {
		if rule.Match != nil && rule.Match(u) {
			return Selection{Tool: rule.Tool, Source: SourceRule, Rule: rule.Name}
		}
	}
	return Selection{Tool: defaultFallback, Source: SourceDefault}
}

// Select picks the first tool for a capture. A compatible recommendation
// probed within the staleness window wins; otherwise the signature table
// decides. A choice outside the configured order is replaced by the head
// of the order.
func (r *Registry) Select(station store.Station, now time.Time) Selection {
	selection := r.Classify(station.StreamURL)
	if tool, ok := Parse(station.RecommendedTool); ok && r.fresh(station, now) {
		selection = Selection{Tool: tool, Source: SourceProbe}
	}
	if !containsTool(r.order, selection.Tool) {
		selection = Selection{Tool: r.order[0], Source: SourceFallback}
	}
	return selection
}

func (r *Registry) fresh(station store.Station, now time.Time) bool {
	if station.Compatibility != store.CompatibilityCompatible || station.LastTestedAt == nil {
		return false
	}
	return now.Sub(*station.LastTestedAt) <= r.staleAfter
}

// Chain returns the ordered tools for one session: first, then every other
// tool of the fallback order exactly once.
func (r *Registry) Chain(first Tool) []Tool {
	chain := make([]Tool, 0, len(r.order))
	if containsTool(r.order, first) {
		chain = append(chain, first)
	}
	for _, tool := range r.order {
		if tool != first {
			chain = append(chain, tool)
		}
	}
	return chain
}

// Requirements lists the binaries for dependency checks.
func (r *Registry) Requirements() []deps.Requirement {
	reqs := make([]deps.Requirement, 0, len(r.order))
	for i, tool := range r.order {
		reqs = append(reqs, deps.Requirement{
			Name:        string(tool),
			Command:     r.Binary(tool),
			Description: describe(tool),
			Optional:    i > 0,
		})
	}
	return reqs
}

func describe(tool Tool) string {
	switch tool {
	case Streamripper:
		return "Direct Icecast/Shoutcast stream capture"
	case FFmpeg:
		return "Transcoding capture for HLS, DASH, RTMP and authenticated streams"
	case YtDlp:
		return "Provider redirect and player page capture"
	default:
		return ""
	}
}

func containsTool(list []Tool, tool Tool) bool {
	for _, candidate := range list {
		if candidate == tool {
			return true
		}
	}
	return false
}
