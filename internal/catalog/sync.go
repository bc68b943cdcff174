package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"

	"radiocap/internal/services"
	"radiocap/internal/store"
)

// Store is the persistence the catalog syncs with. *store.Store satisfies it.
type Store interface {
	UpsertStation(ctx context.Context, station store.Station) (*store.Station, bool, error)
	UpsertShow(ctx context.Context, show store.Show) (*store.Show, bool, error)
	GetStationByCallSign(ctx context.Context, callSign string) (*store.Station, error)
	ListStations(ctx context.Context) ([]store.Station, error)
	ListShows(ctx context.Context) ([]store.Show, error)
	DeactivateShowsExcept(ctx context.Context, keys []string) ([]int64, error)
}

// ImportResult reports what an import changed.
type ImportResult struct {
	Stations int
	Shows    int
	// ChangedStations are new stations or stations whose stream changed;
	// they should be probed again.
	ChangedStations []int64
	// ChangedShows are new or modified shows, including deactivated ones.
	ChangedShows []int64
	Deactivated  []int64
	Warnings     []string
}

// Changed reports whether the import modified anything.
func (r ImportResult) Changed() bool {
	return len(r.ChangedStations) > 0 || len(r.ChangedShows) > 0
}

// Import writes f into the store. The catalog is authoritative for shows:
// any active show missing from it is deactivated. Stations are never
// deleted since recordings reference them.
func Import(ctx context.Context, st Store, f *File) (ImportResult, error) {
	var res ImportResult
	stationIDs := make(map[string]int64, len(f.Stations))
	for _, entry := range f.Stations {
		station := store.Station{
			CallSign:  strings.TrimSpace(entry.CallSign),
			Name:      entry.Name,
			StreamURL: strings.TrimSpace(entry.StreamURL),
			Timezone:  strings.TrimSpace(entry.Timezone),
		}
		if station.Name == "" {
			station.Name = station.CallSign
		}
		stored, changed, err := st.UpsertStation(ctx, station)
		if err != nil {
			return res, services.Wrap(services.ErrPersistence, "catalog", "upsert station", station.CallSign, err)
		}
		stationIDs[strings.ToUpper(stored.CallSign)] = stored.ID
		res.Stations++
		if changed {
			res.ChangedStations = append(res.ChangedStations, stored.ID)
		}
	}

	shows := make([]store.Show, 0, len(f.Shows))
	var missing []string
	for _, entry := range f.Shows {
		call := strings.TrimSpace(entry.Station)
		id, ok := stationIDs[strings.ToUpper(call)]
		if !ok {
			existing, err := st.GetStationByCallSign(ctx, call)
			if err != nil {
				return res, services.Wrap(services.ErrPersistence, "catalog", "lookup station", call, err)
			}
			if existing == nil {
				missing = append(missing, fmt.Sprintf("show %s: unknown station %s", entry.Key, call))
				continue
			}
			id = existing.ID
			stationIDs[strings.ToUpper(call)] = id
		}
		shows = append(shows, entry.toStore(id))
	}
	if len(missing) > 0 {
		return res, services.Wrap(services.ErrConfiguration, "catalog", "import", strings.Join(missing, "; "), nil)
	}

	keys := make([]string, 0, len(shows))
	for _, show := range shows {
		stored, changed, err := st.UpsertShow(ctx, show)
		if err != nil {
			return res, services.Wrap(services.ErrPersistence, "catalog", "upsert show", show.Key, err)
		}
		keys = append(keys, stored.Key)
		res.Shows++
		if changed {
			res.ChangedShows = append(res.ChangedShows, stored.ID)
		}
	}
	deactivated, err := st.DeactivateShowsExcept(ctx, keys)
	if err != nil {
		return res, services.Wrap(services.ErrPersistence, "catalog", "deactivate shows", "", err)
	}
	res.Deactivated = deactivated
	res.ChangedShows = append(res.ChangedShows, deactivated...)
	res.Warnings = f.Warnings()
	return res, nil
}

// ImportFile loads path and imports it.
func ImportFile(ctx context.Context, st Store, path string) (ImportResult, error) {
	f, err := Load(path)
	if err != nil {
		return ImportResult{}, err
	}
	return Import(ctx, st, f)
}

// Snapshot builds a catalog from the store contents.
func Snapshot(ctx context.Context, st Store) (*File, error) {
	stations, err := st.ListStations(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "catalog", "list stations", "", err)
	}
	shows, err := st.ListShows(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "catalog", "list shows", "", err)
	}
	calls := make(map[int64]string, len(stations))
	f := &File{}
	for _, station := range stations {
		calls[station.ID] = station.CallSign
		f.Stations = append(f.Stations, Station{
			CallSign:  station.CallSign,
			Name:      station.Name,
			StreamURL: station.StreamURL,
			Timezone:  station.Timezone,
		})
	}
	sort.Slice(shows, func(i, j int) bool { return shows[i].Key < shows[j].Key })
	for _, show := range shows {
		f.Shows = append(f.Shows, fromStore(show, calls[show.StationID]))
	}
	return f, nil
}

// Export writes the store contents to path atomically.
func Export(ctx context.Context, st Store, path string) error {
	f, err := Snapshot(ctx, st)
	if err != nil {
		return err
	}
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}
