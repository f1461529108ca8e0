package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/sectorscan/internal/engine/sector"
	"github.com/rendis/sectorscan/internal/model"
)

func mustPlace(t *testing.T, js string) model.Place {
	t.Helper()
	p, err := model.ParsePlace([]byte(js))
	require.NoError(t, err)
	return p
}

func readRows(t *testing.T, path string) ([]string, []map[string]string) {
	t.Helper()
	header, records, err := ReadCSV(path)
	require.NoError(t, err)
	rows := make([]map[string]string, len(records))
	for i, rec := range records {
		rows[i] = map[string]string{}
		for j, v := range rec {
			rows[i][header[j]] = v
		}
	}
	return header, rows
}

func TestExportToFile_FlattensNestedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	p := mustPlace(t, `{"place_id":"A","name":"Cabinet, Dupont","geometry":{"location":{"lat":48.1,"lng":2.2}},"types":["health","point_of_interest"],"rating":4.5,"permanently_closed":null}`)

	stats, err := ExportToFile([]model.Place{p}, path)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Written)

	header, rows := readRows(t, path)
	assert.Equal(t, []string{"place_id", "name", "geometry.location.lat", "geometry.location.lng", "types", "rating", "permanently_closed"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cabinet, Dupont", rows[0]["name"])
	assert.Equal(t, "48.1", rows[0]["geometry.location.lat"])
	assert.Equal(t, `["health","point_of_interest"]`, rows[0]["types"])
	assert.Equal(t, "4.5", rows[0]["rating"])
	assert.Empty(t, rows[0]["permanently_closed"])
}

func TestExportToFile_LastOccurrenceWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	places := []model.Place{
		mustPlace(t, `{"place_id":"A","name":"old"}`),
		mustPlace(t, `{"place_id":"B","name":"b"}`),
		mustPlace(t, `{"place_id":"A","name":"new"}`),
	}
	_, err := ExportToFile(places, path)
	require.NoError(t, err)

	_, rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, "B", rows[0]["place_id"])
	assert.Equal(t, "new", rows[1]["name"])
}

func TestExportToFile_MergesWithExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("place_id,name,legacy\nA,first,x\nC,c,y\n"), 0o644))

	stats, err := ExportToFile([]model.Place{
		mustPlace(t, `{"place_id":"A","name":"second","vicinity":"Paris"}`),
		mustPlace(t, `{"place_id":"D","name":"d"}`),
	}, path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Existing)
	assert.Equal(t, 3, stats.Written)

	header, rows := readRows(t, path)
	assert.Equal(t, []string{"place_id", "name", "legacy", "vicinity"}, header)
	require.Len(t, rows, 3)
	assert.Equal(t, "C", rows[0]["place_id"])
	assert.Equal(t, "A", rows[1]["place_id"])
	assert.Equal(t, "second", rows[1]["name"])
	assert.Empty(t, rows[1]["legacy"])
	assert.Equal(t, "Paris", rows[1]["vicinity"])
	assert.Equal(t, "D", rows[2]["place_id"])
}

func TestExportToFile_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	places := []model.Place{
		mustPlace(t, `{"place_id":"A","name":"a"}`),
		mustPlace(t, `{"place_id":"B","name":"b"}`),
	}
	_, err := ExportToFile(places, path)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = ExportToFile(places, path)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestExportToFile_NothingToWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	stats, err := ExportToFile(nil, path)
	require.NoError(t, err)
	assert.Zero(t, stats.Written)
	assert.NoFileExists(t, path)

	existing := "place_id,name\nA,a\nA,a2\n"
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))
	stats, err = ExportToFile(nil, path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Existing)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, existing, string(data))
}

func TestExportToFile_CorruptDestinationIsUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	corrupt := "place_id,name\n\"A,broken\n"
	require.NoError(t, os.WriteFile(path, []byte(corrupt), 0o644))

	_, err := ExportToFile([]model.Place{mustPlace(t, `{"place_id":"B"}`)}, path)
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, string(got))
}

func TestExportToFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "out.csv")
	_, err := ExportToFile([]model.Place{mustPlace(t, `{"place_id":"B"}`)}, path)
	var perr *PersistenceError
	assert.True(t, errors.As(err, &perr))
}

func TestCallLog_WritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_logs.csv")
	cl := NewCallLog(path)
	cl.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	cl.Record("infirmier", 48.85, 2.35, 1200, []byte("{\n  \"status\": \"OK\"\n}"))
	cl.Record("infirmier", 48.86, 2.36, 600, nil)

	header, records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, callLogHeader, header)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"2026-03-01 10:00:00", "infirmier", "48.85", "2.35", "1200", `{"status":"OK"}`}, records[0])
	assert.Empty(t, records[1][5])
}

func TestCallLog_ConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_logs.csv")
	cl := NewCallLog(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cl.Record("kw", 1, 2, 3, []byte(`{"status":"OK","results":[]}`))
		}()
	}
	wg.Wait()

	_, records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestCallLog_FailureIsSwallowed(t *testing.T) {
	cl := NewCallLog(filepath.Join(t.TempDir(), "missing", "log.csv"))
	assert.NotPanics(t, func() { cl.Record("kw", 1, 2, 3, nil) })
	assert.NotPanics(t, func() { NewCallLog("").Record("kw", 1, 2, 3, nil) })
}

func testSnapshot(t *testing.T) sector.Snapshot {
	t.Helper()
	state := sector.Seed([]model.Bounds{
		{MinLat: 48, MinLng: 2, MaxLat: 49, MaxLng: 3},
		{MinLat: 47, MinLng: 2, MaxLat: 48, MaxLng: 3},
	})
	done := state.Pop(1)[0]
	state.AddProcessed(model.NewProcessed(done, model.ActionSave, 1, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	state.AddResults([]model.Place{mustPlace(t, `{"place_id":"A","name":"n","geometry":{"location":{"lat":48.5,"lng":2.5}},"source_sector_id":"S-000001"}`)})
	state.AddCredits(1)
	return state.Snapshot()
}

func TestStore_SaveAndLoadRun(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	params := model.SearchParams{Keyword: "infirmier", Zone: "Paris, France", GridSize: 3, MinRadiusMeters: 100}
	snap := testSnapshot(t)
	require.NoError(t, store.SaveRun("run-1", params, snap))

	gotParams, gotSnap, err := store.LoadRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, params, gotParams)
	assert.Equal(t, snap.SectorCounter, gotSnap.SectorCounter)
	assert.Equal(t, snap.APICallCredits, gotSnap.APICallCredits)
	assert.Equal(t, snap.Queue, gotSnap.Queue)
	require.Len(t, gotSnap.Processed, 1)
	assert.Equal(t, "Saved S-000001 (1)", gotSnap.Processed[0].Status)
	assert.True(t, snap.Processed[0].CompletedAt.Equal(gotSnap.Processed[0].CompletedAt))
	require.Len(t, gotSnap.Results, 1)
	assert.Equal(t, snap.Results[0].Keys(), gotSnap.Results[0].Keys())
	assert.Equal(t, "S-000001", gotSnap.Results[0].SourceSectorID())
}

func TestStore_SaveRunIsIncremental(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	params := model.SearchParams{Keyword: "kw"}
	snap := testSnapshot(t)
	require.NoError(t, store.SaveRun("r", params, snap))
	require.NoError(t, store.SaveRun("r", params, snap))

	snap.Results = append(snap.Results, mustPlace(t, `{"place_id":"B"}`))
	snap.Queue = nil
	require.NoError(t, store.SaveRun("r", params, snap))

	_, got, err := store.LoadRun("r")
	require.NoError(t, err)
	assert.Len(t, got.Results, 2)
	assert.Len(t, got.Processed, 1)
	assert.Empty(t, got.Queue)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Done())
	assert.Equal(t, 2, runs[0].Results)
}

func TestNewStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sectorscan", "data", "runs.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRun("r", model.SearchParams{Keyword: "kw"}, testSnapshot(t)))
	assert.FileExists(t, path)
}

func TestStore_LatestRunFollowsUpdateTime(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	params := model.SearchParams{Keyword: "kw"}
	require.NoError(t, store.SaveRun("older", params, testSnapshot(t)))
	require.NoError(t, store.SaveRun("newer", params, testSnapshot(t)))

	base := time.Date(2026, 3, 4, 10, 0, 5, 0, time.UTC)
	_, err = store.db.Exec(`UPDATE runs SET updated_at = ? WHERE id = ?`, formatTimestamp(base.Add(500*time.Millisecond)), "older")
	require.NoError(t, err)
	_, err = store.db.Exec(`UPDATE runs SET updated_at = ? WHERE id = ?`, formatTimestamp(base.Add(510*time.Millisecond)), "newer")
	require.NoError(t, err)

	latest, err := store.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "newer", latest.ID)
	assert.True(t, latest.UpdatedAt.Equal(base.Add(510*time.Millisecond)))
}

func TestStore_UnknownRun(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	_, _, err = store.LoadRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = store.LatestRun()
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPersistenceErrorMessage(t *testing.T) {
	err := &PersistenceError{Op: "write", Path: "/tmp/x.csv", Err: os.ErrPermission}
	assert.True(t, strings.HasPrefix(err.Error(), "storage: write /tmp/x.csv"))
	assert.ErrorIs(t, err, os.ErrPermission)
}
