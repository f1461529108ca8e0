// Package run ties a search state, its scheduler and its outputs together
// behind the operations a control surface needs.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/rendis/sectorscan/internal/engine/geo"
	"github.com/rendis/sectorscan/internal/engine/results"
	"github.com/rendis/sectorscan/internal/engine/scraper"
	"github.com/rendis/sectorscan/internal/engine/sector"
	"github.com/rendis/sectorscan/internal/engine/storage"
	"github.com/rendis/sectorscan/internal/model"
)

var (
	// ErrDisabled is returned by operations that need the provider when no
	// credential is configured.
	ErrDisabled = errors.New("run: search disabled")
	// ErrBusy is returned when a batch is already executing.
	ErrBusy = errors.New("run: a batch is already running")
)

// Option configures a Session.
type Option func(*Session)

// WithStore persists a snapshot after every batch.
func WithStore(store *storage.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithRegion drops initial tiles outside the polygon.
func WithRegion(region orb.MultiPolygon) Option {
	return func(s *Session) {
		s.region = region
	}
}

// WithSchedulerOptions forwards options to every scheduler the session builds.
func WithSchedulerOptions(opts ...scraper.SchedulerOption) Option {
	return func(s *Session) {
		s.schedOpts = append(s.schedOpts, opts...)
	}
}

// WithDisabledReason records why the searcher is unavailable.
func WithDisabledReason(err error) Option {
	return func(s *Session) {
		s.disabled = err
	}
}

// Session is one search run.
type Session struct {
	mu        sync.RWMutex
	id        string
	params    model.SearchParams
	state     *sector.State
	sched     *scraper.Scheduler
	searcher  scraper.Searcher
	store     *storage.Store
	region    orb.MultiPolygon
	schedOpts []scraper.SchedulerOption
	disabled  error
	running   atomic.Bool
	log       *zap.Logger
}

// New seeds a fresh run from params. A nil searcher leaves the session
// disabled: the state can be inspected and exported but not advanced.
func New(params model.SearchParams, searcher scraper.Searcher, opts ...Option) *Session {
	s := newSession(params, searcher, opts...)
	s.state = sector.Seed(s.tiles(params))
	s.sched = scraper.NewScheduler(s.state, searcher, params, s.schedOpts...)
	s.log.Info("run created",
		zap.String("run", s.id),
		zap.String("keyword", params.Keyword),
		zap.Int("tiles", s.state.Counts().Queued),
	)
	return s
}

// Resume restores a stored run.
func Resume(store *storage.Store, runID string, searcher scraper.Searcher, opts ...Option) (*Session, error) {
	params, snap, err := store.LoadRun(runID)
	if err != nil {
		return nil, err
	}
	state, err := sector.Restore(snap)
	if err != nil {
		return nil, err
	}

	s := newSession(params, searcher, append([]Option{WithStore(store)}, opts...)...)
	s.id = runID
	s.state = state
	s.sched = scraper.NewScheduler(state, searcher, params, s.schedOpts...)
	s.log.Info("run resumed", zap.String("run", runID), zap.Int("queued", state.Counts().Queued))
	return s, nil
}

func newSession(params model.SearchParams, searcher scraper.Searcher, opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		params:   params,
		searcher: searcher,
		log:      zap.L().With(zap.String("component", "run")),
	}
	for _, o := range opts {
		o(s)
	}
	if searcher == nil && s.disabled == nil {
		s.disabled = errors.New("no search provider")
	}
	return s
}

func (s *Session) tiles(params model.SearchParams) []model.Bounds {
	tiles := geo.ComputeTiling(params.CenterLat, params.CenterLng, params.GridSize, params.BlockSizeKM)
	if len(s.region) > 0 {
		tiles = geo.FilterTiles(tiles, s.region)
	}
	return tiles
}

// ID returns the run identifier used for snapshots.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Params returns the run parameters.
func (s *Session) Params() model.SearchParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// State returns the live state for read-only display.
func (s *Session) State() *sector.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Phase returns the scheduler phase.
func (s *Session) Phase() scraper.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sched.Phase()
}

// Enabled reports whether the session can query the provider.
func (s *Session) Enabled() bool {
	return s.disabled == nil
}

// DisabledReason returns why the session cannot query, or nil.
func (s *Session) DisabledReason() error {
	return s.disabled
}

// Running reports whether a batch is in flight.
func (s *Session) Running() bool {
	return s.running.Load()
}

// BatchSize returns how many sectors the next batch pops.
func (s *Session) BatchSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.params.RequestsPerSecond < 1 {
		return 1
	}
	return s.params.RequestsPerSecond
}

// Reset discards the current run and seeds a new one from params. The new
// run gets a fresh identifier.
func (s *Session) Reset(params model.SearchParams) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.running.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	s.id = uuid.NewString()
	s.state = sector.Seed(s.tiles(params))
	s.sched = scraper.NewScheduler(s.state, s.searcher, params, s.schedOpts...)
	s.log.Info("run reset",
		zap.String("run", s.id),
		zap.Int("grid", params.GridSize),
		zap.Int("tiles", s.state.Counts().Queued),
	)
	return nil
}

// Step executes one batch. ran is false when the queue was empty.
func (s *Session) Step(ctx context.Context) (scraper.BatchReport, bool, error) {
	if s.disabled != nil {
		return scraper.BatchReport{}, false, fmt.Errorf("%w: %w", ErrDisabled, s.disabled)
	}
	if !s.running.CompareAndSwap(false, true) {
		return scraper.BatchReport{}, false, ErrBusy
	}
	defer s.running.Store(false)
	return s.step(ctx)
}

func (s *Session) step(ctx context.Context) (scraper.BatchReport, bool, error) {
	s.mu.RLock()
	sched := s.sched
	s.mu.RUnlock()

	report, ran := sched.RunBatch(ctx)
	if !ran {
		return report, false, nil
	}
	if err := s.Save(); err != nil {
		return report, true, err
	}
	return report, true, nil
}

// AutoRun executes batches until the queue drains or ctx is cancelled. A
// cancelled run finishes its current batch first.
func (s *Session) AutoRun(ctx context.Context, onBatch func(scraper.BatchReport)) error {
	if s.disabled != nil {
		return fmt.Errorf("%w: %w", ErrDisabled, s.disabled)
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.running.Store(false)

	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("auto run stopped", zap.String("run", s.ID()), zap.Error(err))
			return err
		}
		report, ran, err := s.step(ctx)
		if ran && onBatch != nil {
			onBatch(report)
		}
		if err != nil {
			return err
		}
		if !ran {
			s.log.Info("auto run finished", zap.String("run", s.ID()))
			return nil
		}
	}
}

// Save writes a snapshot when a store is attached.
func (s *Session) Save() error {
	s.mu.RLock()
	store, id, params, state := s.store, s.id, s.params, s.state
	s.mu.RUnlock()
	if store == nil {
		return nil
	}
	return store.SaveRun(id, params, state.Snapshot())
}

// Export merges the deduplicated results into the configured CSV.
func (s *Session) Export() (storage.ExportStats, error) {
	s.mu.RLock()
	path, state := s.params.OutputPath, s.state
	s.mu.RUnlock()

	places := results.ExportDeduplicated(state.Results())
	stats, err := storage.ExportToFile(places, path)
	if err != nil {
		s.log.Error("export failed", zap.String("path", path), zap.Error(err))
		return stats, err
	}
	s.log.Info("export done",
		zap.String("path", path),
		zap.Int("incoming", stats.Incoming),
		zap.Int("written", stats.Written),
	)
	return stats, nil
}
