package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rendis/sectorscan/internal/engine/sector"
	"github.com/rendis/sectorscan/internal/model"
)

// ErrRunNotFound is returned when a run id is unknown to the store.
var ErrRunNotFound = errors.New("storage: run not found")

// Store keeps run snapshots in a SQLite file so that a run can be resumed
// and its results explored after the process exits.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// RunInfo summarises a stored run.
type RunInfo struct {
	ID        string
	Keyword   string
	Zone      string
	Queued    int
	Processed int
	Results   int
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Done reports whether the run drained its queue.
func (r RunInfo) Done() bool {
	return r.Queued == 0 && r.Processed > 0
}

// NewStore opens or creates the database at dbPath, creating its parent
// directory when missing.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, &PersistenceError{Op: "create dir", Path: dbPath, Err: err}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &PersistenceError{Op: "open db", Path: dbPath, Err: err}
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, &PersistenceError{Op: "pragma", Path: dbPath, Err: eris.Wrap(err, p)}
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "schema", Path: dbPath, Err: err}
	}

	return &Store{db: db, path: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		keyword TEXT NOT NULL,
		zone TEXT,
		params TEXT NOT NULL,
		sector_counter INTEGER NOT NULL,
		api_call_credits INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS queue (
		run_id TEXT NOT NULL,
		pos INTEGER NOT NULL,
		sector_id TEXT NOT NULL,
		min_lat REAL NOT NULL,
		min_lng REAL NOT NULL,
		max_lat REAL NOT NULL,
		max_lng REAL NOT NULL,
		PRIMARY KEY (run_id, pos)
	);
	CREATE TABLE IF NOT EXISTS processed (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		sector_id TEXT NOT NULL,
		min_lat REAL NOT NULL,
		min_lng REAL NOT NULL,
		max_lat REAL NOT NULL,
		max_lng REAL NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		count INTEGER NOT NULL,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE TABLE IF NOT EXISTS places (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		place_id TEXT,
		source_sector_id TEXT,
		name TEXT,
		lat REAL,
		lng REAL,
		raw TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_places_place_id ON places(place_id);
	CREATE INDEX IF NOT EXISTS idx_places_coords ON places(lat, lng);
	`
	_, err := db.Exec(schema)
	if err != nil {
		return eris.Wrap(err, "creating schema")
	}
	return nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// SaveRun writes a snapshot. Processed sectors and places are append-only,
// so only rows beyond those already stored are inserted; the queue is
// replaced.
func (s *Store) SaveRun(runID string, params model.SearchParams, snap sector.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return &PersistenceError{Op: "encode params", Path: s.path, Err: err}
	}
	now := formatTimestamp(time.Now())

	tx, err := s.db.Begin()
	if err != nil {
		return &PersistenceError{Op: "begin", Path: s.path, Err: err}
	}
	fail := func(op string, err error) error {
		tx.Rollback()
		return &PersistenceError{Op: op, Path: s.path, Err: err}
	}

	_, err = tx.Exec(`
		INSERT INTO runs (id, keyword, zone, params, sector_counter, api_call_credits, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			params = excluded.params,
			sector_counter = excluded.sector_counter,
			api_call_credits = excluded.api_call_credits,
			updated_at = excluded.updated_at`,
		runID, params.Keyword, params.Zone, string(paramsJSON), snap.SectorCounter, snap.APICallCredits, now, now)
	if err != nil {
		return fail("upsert run", err)
	}

	if _, err := tx.Exec(`DELETE FROM queue WHERE run_id = ?`, runID); err != nil {
		return fail("clear queue", err)
	}
	qstmt, err := tx.Prepare(`INSERT INTO queue (run_id, pos, sector_id, min_lat, min_lng, max_lat, max_lng) VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fail("prepare queue", err)
	}
	defer qstmt.Close()
	for i, sec := range snap.Queue {
		if _, err := qstmt.Exec(runID, i, sec.ID, sec.MinLat, sec.MinLng, sec.MaxLat, sec.MaxLng); err != nil {
			return fail("insert queue", err)
		}
	}

	stored, err := countRows(tx, "processed", runID)
	if err != nil {
		return fail("count processed", err)
	}
	pstmt, err := tx.Prepare(`
		INSERT INTO processed (run_id, seq, sector_id, min_lat, min_lng, max_lat, max_lng, action, status, count, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fail("prepare processed", err)
	}
	defer pstmt.Close()
	for i := stored; i < len(snap.Processed); i++ {
		p := snap.Processed[i]
		_, err := pstmt.Exec(runID, i, p.ID, p.MinLat, p.MinLng, p.MaxLat, p.MaxLng,
			string(p.Action), p.Status, p.Count, formatTimestamp(p.CompletedAt))
		if err != nil {
			return fail("insert processed", err)
		}
	}

	stored, err = countRows(tx, "places", runID)
	if err != nil {
		return fail("count places", err)
	}
	rstmt, err := tx.Prepare(`
		INSERT INTO places (run_id, seq, place_id, source_sector_id, name, lat, lng, raw)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fail("prepare places", err)
	}
	defer rstmt.Close()
	for i := stored; i < len(snap.Results); i++ {
		p := snap.Results[i]
		raw, err := json.Marshal(p)
		if err != nil {
			return fail("encode place", err)
		}
		lat, lng, _ := p.Location()
		if _, err := rstmt.Exec(runID, i, p.ID(), p.SourceSectorID(), p.String("name"), lat, lng, string(raw)); err != nil {
			return fail("insert place", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit", Path: s.path, Err: err}
	}
	return nil
}

func countRows(tx *sql.Tx, table, runID string) (int, error) {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// LoadRun restores the parameters and state snapshot of a run.
func (s *Store) LoadRun(runID string) (model.SearchParams, sector.Snapshot, error) {
	var (
		params     model.SearchParams
		snap       sector.Snapshot
		paramsJSON string
	)
	err := s.db.QueryRow(`SELECT params, sector_counter, api_call_credits FROM runs WHERE id = ?`, runID).
		Scan(&paramsJSON, &snap.SectorCounter, &snap.APICallCredits)
	if errors.Is(err, sql.ErrNoRows) {
		return params, snap, ErrRunNotFound
	}
	if err != nil {
		return params, snap, &PersistenceError{Op: "load run", Path: s.path, Err: err}
	}
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return params, snap, &PersistenceError{Op: "decode params", Path: s.path, Err: err}
	}

	if snap.Queue, err = s.loadQueue(runID); err != nil {
		return params, snap, err
	}
	if snap.Processed, err = s.loadProcessed(runID); err != nil {
		return params, snap, err
	}
	if snap.Results, err = s.Places(runID); err != nil {
		return params, snap, err
	}
	return params, snap, nil
}

func (s *Store) loadQueue(runID string) ([]model.Sector, error) {
	rows, err := s.db.Query(`SELECT sector_id, min_lat, min_lng, max_lat, max_lng FROM queue WHERE run_id = ? ORDER BY pos`, runID)
	if err != nil {
		return nil, &PersistenceError{Op: "load queue", Path: s.path, Err: err}
	}
	defer rows.Close()

	var out []model.Sector
	for rows.Next() {
		var sec model.Sector
		if err := rows.Scan(&sec.ID, &sec.MinLat, &sec.MinLng, &sec.MaxLat, &sec.MaxLng); err != nil {
			return nil, &PersistenceError{Op: "scan queue", Path: s.path, Err: err}
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *Store) loadProcessed(runID string) ([]model.ProcessedSector, error) {
	rows, err := s.db.Query(`
		SELECT sector_id, min_lat, min_lng, max_lat, max_lng, action, count, completed_at
		FROM processed WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, &PersistenceError{Op: "load processed", Path: s.path, Err: err}
	}
	defer rows.Close()

	var out []model.ProcessedSector
	for rows.Next() {
		var (
			sec    model.Sector
			action string
			count  int
			at     string
		)
		if err := rows.Scan(&sec.ID, &sec.MinLat, &sec.MinLng, &sec.MaxLat, &sec.MaxLng, &action, &count, &at); err != nil {
			return nil, &PersistenceError{Op: "scan processed", Path: s.path, Err: err}
		}
		completed, _ := time.Parse(timestampLayout, at)
		out = append(out, model.NewProcessed(sec, model.Action(action), count, completed))
	}
	return out, rows.Err()
}

// Places returns the stored places of a run in commit order.
func (s *Store) Places(runID string) ([]model.Place, error) {
	rows, err := s.db.Query(`SELECT raw FROM places WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, &PersistenceError{Op: "load places", Path: s.path, Err: err}
	}
	defer rows.Close()

	var out []model.Place
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, &PersistenceError{Op: "scan place", Path: s.path, Err: err}
		}
		p, err := model.ParsePlace([]byte(raw))
		if err != nil {
			return nil, &PersistenceError{Op: "decode place", Path: s.path, Err: err}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRuns returns every stored run, most recently updated first.
func (s *Store) ListRuns() ([]RunInfo, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.keyword, COALESCE(r.zone, ''), r.api_call_credits, r.created_at, r.updated_at,
			(SELECT COUNT(*) FROM queue q WHERE q.run_id = r.id),
			(SELECT COUNT(*) FROM processed p WHERE p.run_id = r.id),
			(SELECT COUNT(*) FROM places pl WHERE pl.run_id = r.id)
		FROM runs r ORDER BY r.updated_at DESC, r.created_at DESC`)
	if err != nil {
		return nil, &PersistenceError{Op: "list runs", Path: s.path, Err: err}
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			ri               RunInfo
			created, updated string
		)
		if err := rows.Scan(&ri.ID, &ri.Keyword, &ri.Zone, &ri.Credits, &created, &updated, &ri.Queued, &ri.Processed, &ri.Results); err != nil {
			return nil, &PersistenceError{Op: "scan run", Path: s.path, Err: err}
		}
		ri.CreatedAt, _ = time.Parse(timestampLayout, created)
		ri.UpdatedAt, _ = time.Parse(timestampLayout, updated)
		out = append(out, ri)
	}
	return out, rows.Err()
}

// LatestRun returns the most recently updated run.
func (s *Store) LatestRun() (RunInfo, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return RunInfo{}, err
	}
	if len(runs) == 0 {
		return RunInfo{}, ErrRunNotFound
	}
	return runs[0], nil
}

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func (s *Store) Close() error {
	return s.db.Close()
}
