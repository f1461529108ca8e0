package scraper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rendis/sectorscan/internal/engine/geo"
	"github.com/rendis/sectorscan/internal/engine/sector"
	"github.com/rendis/sectorscan/internal/model"
)

const (
	// DefaultMinBatchDuration is the floor applied to every batch so that at
	// most batchSize calls are issued per second.
	DefaultMinBatchDuration = time.Second
	// DefaultDensePages is the pagination depth of a save_dense re-query.
	DefaultDensePages = 3
)

// Phase is the scheduler's position inside a batch.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDraining
	PhaseDispatched
	PhaseReconciling
)

func (p Phase) String() string {
	switch p {
	case PhaseDraining:
		return "draining"
	case PhaseDispatched:
		return "dispatched"
	case PhaseReconciling:
		return "reconciling"
	default:
		return "idle"
	}
}

// Outcome is what a worker learned about one sector.
type Outcome struct {
	Sector   model.Sector
	RadiusM  float64
	Count    int
	Action   model.Action
	Places   []model.Place
	Degraded bool
	Err      error
}

// Failure is a sector dropped because its query failed.
type Failure struct {
	Sector model.Sector
	Err    error
}

// BatchReport summarises one executed batch.
type BatchReport struct {
	Popped    int
	Processed []model.ProcessedSector
	Children  []model.Sector
	Failures  []Failure
	Credits   int
	Places    int
	Duration  time.Duration
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMinBatchDuration overrides the one-second batch floor.
func WithMinBatchDuration(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.minBatch = d
	}
}

// WithDensePages sets the pagination depth for save_dense re-queries.
func WithDensePages(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.densePages = n
		}
	}
}

// WithClock replaces the time source used for completion timestamps.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// Scheduler drives a run one batch at a time: it pops up to batchSize
// sectors, queries them in parallel and reconciles the outcomes into the
// state on the calling goroutine.
type Scheduler struct {
	state      *sector.State
	searcher   Searcher
	keyword    string
	minRadiusM float64
	batchSize  int
	densePages int
	minBatch   time.Duration
	now        func() time.Time
	phase      atomic.Int32
	log        *zap.Logger
}

// NewScheduler binds a scheduler to a state and a searcher. The batch size is
// the configured requests per second.
func NewScheduler(state *sector.State, searcher Searcher, params model.SearchParams, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		state:      state,
		searcher:   searcher,
		keyword:    params.Keyword,
		minRadiusM: params.MinRadiusMeters,
		batchSize:  params.RequestsPerSecond,
		densePages: DefaultDensePages,
		minBatch:   DefaultMinBatchDuration,
		now:        time.Now,
		log:        zap.L().With(zap.String("component", "scheduler")),
	}
	if s.batchSize < 1 {
		s.batchSize = 1
	}
	if params.DensePages > 0 {
		s.densePages = params.DensePages
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Phase returns the current batch phase.
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

// State returns the state the scheduler writes to.
func (s *Scheduler) State() *sector.State {
	return s.state
}

// RunBatch executes one batch. It returns false without side effects when
// the queue is empty. A started batch always runs to completion: the workers
// do not observe cancellation of ctx.
func (s *Scheduler) RunBatch(ctx context.Context) (BatchReport, bool) {
	start := time.Now()
	s.phase.Store(int32(PhaseDraining))
	defer s.phase.Store(int32(PhaseIdle))

	batch := s.state.Pop(s.batchSize)
	if len(batch) == 0 {
		return BatchReport{}, false
	}

	s.phase.Store(int32(PhaseDispatched))
	outcomes := s.dispatch(context.WithoutCancel(ctx), batch)

	s.phase.Store(int32(PhaseReconciling))
	report := s.reconcile(outcomes)
	report.Popped = len(batch)

	if elapsed := time.Since(start); elapsed < s.minBatch {
		time.Sleep(s.minBatch - elapsed)
	}
	report.Duration = time.Since(start)

	batchesTotal.Inc()
	batchDuration.Observe(report.Duration.Seconds())
	queueLength.Set(float64(s.state.Counts().Queued))

	s.log.Info("batch done",
		zap.Int("popped", report.Popped),
		zap.Int("processed", len(report.Processed)),
		zap.Int("children", len(report.Children)),
		zap.Int("failures", len(report.Failures)),
		zap.Int("places", report.Places),
		zap.Int("credits", report.Credits),
		zap.Duration("duration", report.Duration),
	)
	return report, true
}

// AutoRun repeats RunBatch until the queue drains or ctx is cancelled.
// Cancellation is observed between batches only.
func (s *Scheduler) AutoRun(ctx context.Context, onBatch func(BatchReport)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, ran := s.RunBatch(ctx)
		if !ran {
			return nil
		}
		if onBatch != nil {
			onBatch(report)
		}
	}
}

// dispatch queries every sector of the batch concurrently. Outcomes are
// collected in completion order.
func (s *Scheduler) dispatch(ctx context.Context, batch []model.Sector) []Outcome {
	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(batch))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchSize)
	for _, sec := range batch {
		g.Go(func() error {
			o := s.query(gctx, sec)
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *Scheduler) query(ctx context.Context, sec model.Sector) Outcome {
	radius := geo.BoxRadiusMeters(sec.Bounds)
	lat, lng := sec.Center()
	o := Outcome{Sector: sec, RadiusM: radius}

	places, err := s.searcher.Search(ctx, s.keyword, lat, lng, radius, 1)
	if err != nil {
		o.Err = err
		return o
	}
	o.Count = len(places)
	o.Action = sector.Decide(o.Count, radius, s.minRadiusM)

	switch o.Action {
	case model.ActionSplit:
		return o
	case model.ActionSaveDense:
		dense, err := s.searcher.Search(ctx, s.keyword, lat, lng, radius, s.densePages)
		if err != nil {
			o.Degraded = true
			s.log.Warn("dense re-query incomplete",
				zap.String("sector", sec.ID),
				zap.Int("pages_results", len(dense)),
				zap.Error(err),
			)
		}
		if len(dense) >= len(places) {
			places = dense
		}
	}
	o.Places = places
	return o
}

func (s *Scheduler) reconcile(outcomes []Outcome) BatchReport {
	var report BatchReport
	for _, o := range outcomes {
		if o.Err != nil {
			sectorFailuresTotal.Inc()
			s.log.Warn("sector dropped", zap.String("sector", o.Sector.ID), zap.Error(o.Err))
			report.Failures = append(report.Failures, Failure{Sector: o.Sector, Err: o.Err})
			continue
		}

		count := o.Count
		if o.Action == model.ActionSplit {
			quads := geo.SplitQuadrants(o.Sector.Bounds)
			report.Children = append(report.Children, s.state.PushChildren(quads[:])...)
		} else {
			for i := range o.Places {
				o.Places[i].SetString(model.SourceSectorField, o.Sector.ID)
			}
			s.state.AddResults(o.Places)
			count = len(o.Places)
			report.Places += count
			placesFoundTotal.Add(float64(count))
		}

		credits := sector.Credits(o.Action)
		s.state.AddCredits(credits)
		report.Credits += credits
		apiCreditsTotal.Add(float64(credits))

		rec := model.NewProcessed(o.Sector, o.Action, count, s.now())
		s.state.AddProcessed(rec)
		report.Processed = append(report.Processed, rec)
		sectorsProcessedTotal.WithLabelValues(string(o.Action)).Inc()
	}
	return report
}
