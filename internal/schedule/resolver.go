package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"radiocap/internal/services"
	"radiocap/internal/store"
)

// DefaultLookahead is the number of instants resolved per airing.
const DefaultLookahead = 2

// Trigger is one resolved capture instant.
type Trigger struct {
	At         time.Time
	ShowID     int64
	StationID  int64
	AiringID   int64
	Priority   int
	AiringType store.AiringType
}

// AiringError reports a pattern or timezone problem for one airing.
type AiringError struct {
	ShowID   int64
	AiringID int64
	Pattern  string
	Err      error
}

func (e *AiringError) Error() string {
	return fmt.Sprintf("show %d airing %d (%q): %v", e.ShowID, e.AiringID, e.Pattern, e.Err)
}

func (e *AiringError) Unwrap() error { return e.Err }

// Resolution is the result of resolving one show. Errors holds one
// *AiringError per airing that could not be resolved; Triggers holds the
// instants of every other airing, ordered by time.
type Resolution struct {
	Triggers []Trigger
	Errors   []error
}

// Resolver expands airing patterns into UTC trigger instants.
type Resolver struct {
	lookahead int
	parser    cron.Parser
}

// NewResolver returns a resolver producing lookahead instants per airing.
func NewResolver(lookahead int) *Resolver {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Resolver{
		lookahead: lookahead,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Lookahead returns the number of instants resolved per airing.
func (r *Resolver) Lookahead() int { return r.lookahead }

// Location returns the zone airing patterns of show are written in: the
// show's own timezone, else the station's, else UTC.
func Location(show store.Show, station store.Station) (*time.Location, error) {
	name := strings.TrimSpace(show.Timezone)
	if name == "" {
		name = strings.TrimSpace(station.Timezone)
	}
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "schedule", "load timezone", name, err)
	}
	return loc, nil
}

// Validate checks that pattern parses as a five-field cron expression.
func (r *Resolver) Validate(pattern string) error {
	_, err := r.parse(pattern)
	return err
}

func (r *Resolver) parse(pattern string) (cron.Schedule, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, services.Wrap(services.ErrConfiguration, "schedule", "parse pattern", "empty pattern", nil)
	}
	if strings.HasPrefix(pattern, "TZ=") || strings.HasPrefix(pattern, "CRON_TZ=") {
		return nil, services.Wrap(services.ErrConfiguration, "schedule", "parse pattern", "timezone prefixes are not allowed; set the show timezone", nil)
	}
	sched, err := r.parser.Parse(pattern)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "schedule", "parse pattern", pattern, err)
	}
	return sched, nil
}

// Resolve returns the next lookahead instants strictly after from for every
// active airing of show. Shows that are inactive, stream-only, or have no
// active airings resolve to nothing.
func (r *Resolver) Resolve(show store.Show, station store.Station, from time.Time) Resolution {
	var res Resolution
	if !show.Schedulable() {
		return res
	}
	loc, err := Location(show, station)
	if err != nil {
		for _, airing := range show.ActiveAirings() {
			res.Errors = append(res.Errors, &AiringError{ShowID: show.ID, AiringID: airing.ID, Pattern: airing.Pattern, Err: err})
		}
		return res
	}
	for _, airing := range show.ActiveAirings() {
		sched, err := r.parse(airing.Pattern)
		if err != nil {
			res.Errors = append(res.Errors, &AiringError{ShowID: show.ID, AiringID: airing.ID, Pattern: airing.Pattern, Err: err})
			continue
		}
		cursor := from
		for i := 0; i < r.lookahead; i++ {
			next, ok := nextIn(sched, loc, cursor)
			if !ok {
				if i == 0 {
					res.Errors = append(res.Errors, &AiringError{
						ShowID: show.ID, AiringID: airing.ID, Pattern: airing.Pattern,
						Err: services.Wrap(services.ErrConfiguration, "schedule", "resolve", "pattern never fires", nil),
					})
				}
				break
			}
			res.Triggers = append(res.Triggers, Trigger{
				At:         next,
				ShowID:     show.ID,
				StationID:  show.StationID,
				AiringID:   airing.ID,
				Priority:   airing.Priority,
				AiringType: airing.Type,
			})
			cursor = next
		}
	}
	SortTriggers(res.Triggers)
	return res
}

// ErrNoOccurrence is returned by NextAfter when a pattern has no future instant.
var ErrNoOccurrence = errors.New("no future occurrence")

// NextAfter returns the first instant of airing strictly after after.
func (r *Resolver) NextAfter(show store.Show, station store.Station, airing store.Airing, after time.Time) (time.Time, error) {
	loc, err := Location(show, station)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := r.parse(airing.Pattern)
	if err != nil {
		return time.Time{}, err
	}
	next, ok := nextIn(sched, loc, after)
	if !ok {
		return time.Time{}, ErrNoOccurrence
	}
	return next, nil
}

// nextIn evaluates sched in loc. cron's spec schedules follow the location
// of the time they are given, which is what makes wall-clock patterns DST
// aware.
func nextIn(sched cron.Schedule, loc *time.Location, after time.Time) (time.Time, bool) {
	next := sched.Next(after.In(loc))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.UTC(), true
}

// SortTriggers orders triggers by instant, then priority, then airing id.
func SortTriggers(triggers []Trigger) {
	sort.SliceStable(triggers, func(i, j int) bool {
		a, b := triggers[i], triggers[j]
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.AiringID < b.AiringID
	})
}
