package testsupport

import (
	"context"
	"testing"

	"radiocap/internal/config"
	"radiocap/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewStation inserts a station with the given call sign and stream URL.
func NewStation(t testing.TB, st *store.Store, callSign, streamURL, timezone string) *store.Station {
	t.Helper()

	station, _, err := st.UpsertStation(context.Background(), store.Station{
		CallSign:  callSign,
		Name:      callSign,
		StreamURL: streamURL,
		Timezone:  timezone,
	})
	if err != nil {
		t.Fatalf("store.UpsertStation: %v", err)
	}
	return station
}

// NewShow inserts an active scheduled show on station with one airing per
// pattern (priority follows pattern order).
func NewShow(t testing.TB, st *store.Store, station *store.Station, key string, durationMinutes int, patterns ...string) *store.Show {
	t.Helper()

	show := store.Show{
		Key:             key,
		StationID:       station.ID,
		Name:            key,
		Type:            store.ShowTypeScheduled,
		Active:          true,
		DurationMinutes: durationMinutes,
		Retention:       store.Retention{Value: 7, Unit: store.RetentionDays},
	}
	for i, pattern := range patterns {
		show.Airings = append(show.Airings, store.Airing{
			Pattern:  pattern,
			Type:     store.AiringOriginal,
			Priority: i + 1,
			Active:   true,
		})
	}
	stored, _, err := st.UpsertShow(context.Background(), show)
	if err != nil {
		t.Fatalf("store.UpsertShow: %v", err)
	}
	return stored
}
