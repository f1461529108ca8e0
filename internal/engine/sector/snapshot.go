package sector

import (
	"github.com/rotisserie/eris"

	"github.com/rendis/sectorscan/internal/model"
)

// Snapshot is a point-in-time copy of a State, used for persistence.
type Snapshot struct {
	Queue          []model.Sector
	Processed      []model.ProcessedSector
	Results        []model.Place
	SectorCounter  int
	APICallCredits int
}

// Snapshot copies the state under the read lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Queue:          append([]model.Sector(nil), s.queue...),
		Processed:      append([]model.ProcessedSector(nil), s.processed...),
		Results:        append([]model.Place(nil), s.results...),
		SectorCounter:  s.sectorCounter,
		APICallCredits: s.apiCallCredits,
	}
}

// Restore rebuilds a State from a snapshot. The counter must cover every
// issued ID so that resumed runs never reuse one.
func Restore(snap Snapshot) (*State, error) {
	if snap.SectorCounter < len(snap.Queue) {
		return nil, eris.Errorf("sector: counter %d below queue length %d", snap.SectorCounter, len(snap.Queue))
	}
	return &State{
		queue:          append([]model.Sector(nil), snap.Queue...),
		processed:      append([]model.ProcessedSector(nil), snap.Processed...),
		results:        append([]model.Place(nil), snap.Results...),
		sectorCounter:  snap.SectorCounter,
		apiCallCredits: snap.APICallCredits,
	}, nil
}
