package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"radiocap/internal/schedule"
	"radiocap/internal/services"
	"radiocap/internal/store"
)

// File is the on-disk catalog layout.
type File struct {
	Stations []Station `toml:"station"`
	Shows    []Show    `toml:"show"`
}

// Station is one [[station]] entry.
type Station struct {
	CallSign  string `toml:"call_sign"`
	Name      string `toml:"name,omitempty"`
	StreamURL string `toml:"stream_url"`
	Timezone  string `toml:"timezone,omitempty"`
}

// Show is one [[show]] entry. Station refers to a call sign.
type Show struct {
	Key               string     `toml:"key"`
	Station           string     `toml:"station"`
	Name              string     `toml:"name,omitempty"`
	Timezone          string     `toml:"timezone,omitempty"`
	Type              string     `toml:"type,omitempty"`
	Active            *bool      `toml:"active,omitempty"`
	StreamOnly        bool       `toml:"stream_only,omitempty"`
	DurationMinutes   int        `toml:"duration_minutes"`
	Retention         *Retention `toml:"retention,omitempty"`
	MaxRecordingBytes int64      `toml:"max_recording_bytes,omitempty"`
	Airings           []Airing   `toml:"airing"`
}

// Retention mirrors store.Retention.
type Retention struct {
	Value int    `toml:"value,omitempty"`
	Unit  string `toml:"unit"`
}

// Airing is one [[show.airing]] entry.
type Airing struct {
	Pattern     string `toml:"pattern"`
	Description string `toml:"description,omitempty"`
	Type        string `toml:"type,omitempty"`
	Priority    int    `toml:"priority,omitempty"`
	Active      *bool  `toml:"active,omitempty"`
}

// Load reads and validates a catalog file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "catalog", "read", path, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "read", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog TOML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "parse", "", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks structure. Airing patterns are only checked for syntax by
// Warnings: a bad pattern disables that airing, not the catalog.
func (f *File) Validate() error {
	var problems []string
	calls := make(map[string]struct{}, len(f.Stations))
	for i, st := range f.Stations {
		call := strings.TrimSpace(st.CallSign)
		switch {
		case call == "":
			problems = append(problems, fmt.Sprintf("station[%d]: call_sign is required", i))
			continue
		case strings.TrimSpace(st.StreamURL) == "":
			problems = append(problems, fmt.Sprintf("station %s: stream_url is required", call))
		}
		if _, dup := calls[strings.ToUpper(call)]; dup {
			problems = append(problems, fmt.Sprintf("station %s: duplicate call_sign", call))
		}
		calls[strings.ToUpper(call)] = struct{}{}
	}

	keys := make(map[string]struct{}, len(f.Shows))
	for i, sh := range f.Shows {
		key := strings.TrimSpace(sh.Key)
		if key == "" {
			problems = append(problems, fmt.Sprintf("show[%d]: key is required", i))
			continue
		}
		if _, dup := keys[key]; dup {
			problems = append(problems, fmt.Sprintf("show %s: duplicate key", key))
		}
		keys[key] = struct{}{}
		if strings.TrimSpace(sh.Station) == "" {
			problems = append(problems, fmt.Sprintf("show %s: station is required", key))
		}
		if sh.DurationMinutes < 0 {
			problems = append(problems, fmt.Sprintf("show %s: duration_minutes must be positive", key))
		}
		if sh.Type != "" && sh.Type != string(store.ShowTypeScheduled) && sh.Type != string(store.ShowTypePlaylist) {
			problems = append(problems, fmt.Sprintf("show %s: unknown type %q", key, sh.Type))
		}
		if sh.Retention != nil {
			switch store.RetentionUnit(sh.Retention.Unit) {
			case store.RetentionDays, store.RetentionWeeks, store.RetentionMonths, store.RetentionIndefinite:
			default:
				problems = append(problems, fmt.Sprintf("show %s: unknown retention unit %q", key, sh.Retention.Unit))
			}
		}
		for j, a := range sh.Airings {
			switch store.AiringType(a.Type) {
			case "", store.AiringOriginal, store.AiringRepeat, store.AiringSpecial:
			default:
				problems = append(problems, fmt.Sprintf("show %s airing[%d]: unknown type %q", key, j, a.Type))
			}
		}
	}
	if len(problems) > 0 {
		return services.Wrap(services.ErrConfiguration, "catalog", "validate", strings.Join(problems, "; "), nil)
	}
	return nil
}

// Warnings lists airings whose pattern will not resolve.
func (f *File) Warnings() []string {
	resolver := schedule.NewResolver(schedule.DefaultLookahead)
	var out []string
	for _, sh := range f.Shows {
		for j, a := range sh.Airings {
			if err := resolver.Validate(a.Pattern); err != nil {
				out = append(out, fmt.Sprintf("show %s airing[%d]: %v", sh.Key, j, err))
			}
		}
	}
	return out
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (sh Show) toStore(stationID int64) store.Show {
	out := store.Show{
		Key:               strings.TrimSpace(sh.Key),
		StationID:         stationID,
		Name:              sh.Name,
		Timezone:          strings.TrimSpace(sh.Timezone),
		Type:              store.ShowType(sh.Type),
		Active:            boolOr(sh.Active, true),
		StreamOnly:        sh.StreamOnly,
		DurationMinutes:   sh.DurationMinutes,
		MaxRecordingBytes: sh.MaxRecordingBytes,
	}
	if out.Name == "" {
		out.Name = out.Key
	}
	if out.Type == "" {
		out.Type = store.ShowTypeScheduled
	}
	if sh.Retention != nil {
		out.Retention = store.Retention{Value: sh.Retention.Value, Unit: store.RetentionUnit(sh.Retention.Unit)}
	}
	for i, a := range sh.Airings {
		priority := a.Priority
		if priority == 0 {
			priority = i + 1
		}
		airingType := store.AiringType(a.Type)
		if airingType == "" {
			airingType = store.AiringOriginal
		}
		out.Airings = append(out.Airings, store.Airing{
			Pattern:     strings.TrimSpace(a.Pattern),
			Description: a.Description,
			Type:        airingType,
			Priority:    priority,
			Active:      boolOr(a.Active, true),
		})
	}
	return out
}

func fromStore(show store.Show, callSign string) Show {
	out := Show{
		Key:               show.Key,
		Station:           callSign,
		Name:              show.Name,
		Timezone:          show.Timezone,
		StreamOnly:        show.StreamOnly,
		DurationMinutes:   show.DurationMinutes,
		MaxRecordingBytes: show.MaxRecordingBytes,
	}
	if show.Type != store.ShowTypeScheduled {
		out.Type = string(show.Type)
	}
	if !show.Active {
		inactive := false
		out.Active = &inactive
	}
	if !show.Retention.IsZero() {
		out.Retention = &Retention{Value: show.Retention.Value, Unit: string(show.Retention.Unit)}
	}
	for _, a := range show.Airings {
		airing := Airing{
			Pattern:     a.Pattern,
			Description: a.Description,
			Priority:    a.Priority,
		}
		if a.Type != store.AiringOriginal {
			airing.Type = string(a.Type)
		}
		if !a.Active {
			inactive := false
			airing.Active = &inactive
		}
		out.Airings = append(out.Airings, airing)
	}
	return out
}
