package sector

import (
	"sync"

	"github.com/rendis/sectorscan/internal/model"
)

// State is the process state of one search run.
type State struct {
	mu             sync.RWMutex
	queue          []model.Sector
	processed      []model.ProcessedSector
	results        []model.Place
	sectorCounter  int
	apiCallCredits int
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// Seed returns a fresh state whose queue holds one sector per tile, with IDs
// issued from S-000001 in tile order.
func Seed(tiles []model.Bounds) *State {
	s := NewState()
	for _, b := range tiles {
		s.queue = append(s.queue, model.Sector{ID: s.nextID(), Bounds: b})
	}
	return s
}

// Reset replaces the whole state with a freshly seeded one.
func (s *State) Reset(tiles []model.Bounds) {
	fresh := Seed(tiles)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = fresh.queue
	s.processed = nil
	s.results = nil
	s.sectorCounter = fresh.sectorCounter
	s.apiCallCredits = 0
}

func (s *State) nextID() string {
	s.sectorCounter++
	return model.SectorID(s.sectorCounter)
}

// Pop removes up to n sectors from the front of the queue.
func (s *State) Pop(n int) []model.Sector {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.queue) {
		n = len(s.queue)
	}
	if n <= 0 {
		return nil
	}
	batch := make([]model.Sector, n)
	copy(batch, s.queue[:n])
	s.queue = append([]model.Sector(nil), s.queue[n:]...)
	return batch
}

// PushChildren issues a fresh ID for every child and places them, in the
// given order, at the front of the queue.
func (s *State) PushChildren(children []model.Bounds) []model.Sector {
	s.mu.Lock()
	defer s.mu.Unlock()
	sectors := make([]model.Sector, len(children))
	for i, b := range children {
		sectors[i] = model.Sector{ID: s.nextID(), Bounds: b}
	}
	s.queue = append(sectors, s.queue...)
	return sectors
}

// AddProcessed appends a terminal record.
func (s *State) AddProcessed(p model.ProcessedSector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = append(s.processed, p)
}

// AddResults appends places to the accumulated result set.
func (s *State) AddResults(places []model.Place) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, places...)
}

// AddCredits increments the API credit counter.
func (s *State) AddCredits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiCallCredits += n
}

// Counts is a cheap summary for progress displays.
type Counts struct {
	Queued    int
	Processed int
	Results   int
	Credits   int
	Issued    int
}

// Counts returns the current sizes and counters.
func (s *State) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Queued:    len(s.queue),
		Processed: len(s.processed),
		Results:   len(s.results),
		Credits:   s.apiCallCredits,
		Issued:    s.sectorCounter,
	}
}

// Empty reports whether the queue is drained.
func (s *State) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue) == 0
}

// Queue returns a copy of the pending sectors, front first.
func (s *State) Queue() []model.Sector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Sector(nil), s.queue...)
}

// Processed returns a copy of the terminal records in completion order.
func (s *State) Processed() []model.ProcessedSector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ProcessedSector(nil), s.processed...)
}

// Results returns a copy of the accumulated places, duplicates included.
func (s *State) Results() []model.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Place(nil), s.results...)
}
