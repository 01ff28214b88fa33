package incident

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/adityaviki/sentinelops/internal/models"
)

// DefaultMaxIncidents is the retention bound applied when the caller does
// not override it.
const DefaultMaxIncidents = 1000

// Store is a process-local, concurrency-safe collection of incidents
// ordered newest-first, with O(1) lookup by id and by dedup key.
type Store struct {
	mu           sync.RWMutex
	items        []*models.Incident
	byID         map[string]*models.Incident
	byDedupKey   map[string]*models.Incident
	maxIncidents int
	cooldown     atomic.Int64 // time.Duration nanoseconds, hot-reloadable
}

// NewStore creates a Store. cooldown is used to compute the lazy
// active/cooling status transition at read time.
func NewStore(maxIncidents int, cooldown time.Duration) *Store {
	if maxIncidents < 1 {
		maxIncidents = DefaultMaxIncidents
	}
	s := &Store{
		byID:         make(map[string]*models.Incident),
		byDedupKey:   make(map[string]*models.Incident),
		maxIncidents: maxIncidents,
	}
	s.cooldown.Store(int64(cooldown))
	return s
}

// SetCooldown swaps in a new dedup cooldown window, applied to every status
// computation from the next read onward. Called by the config hot-reload
// watcher.
func (s *Store) SetCooldown(cooldown time.Duration) {
	s.cooldown.Store(int64(cooldown))
}

// Put inserts a newly created incident. It returns an error if the id
// already exists — the caller is responsible for allocating a fresh id and
// retrying.
func (s *Store) Put(incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[incident.ID]; exists {
		return &idCollisionError{id: incident.ID}
	}

	s.items = append(s.items, nil)
	copy(s.items[1:], s.items)
	s.items[0] = incident

	s.byID[incident.ID] = incident
	s.byDedupKey[incident.DedupKey] = incident

	if len(s.items) > s.maxIncidents {
		evicted := s.items[len(s.items)-1]
		s.items = s.items[:len(s.items)-1]
		delete(s.byID, evicted.ID)
		if s.byDedupKey[evicted.DedupKey] == evicted {
			delete(s.byDedupKey, evicted.DedupKey)
		}
	}
	return nil
}

// Get returns the incident with the given id, with its Status recomputed
// against the current wallclock.
func (s *Store) Get(id string) (models.Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.byID[id]
	if !ok {
		return models.Incident{}, false
	}
	return s.view(inc), true
}

// FindActiveByDedupKey returns the most recent incident carrying key whose
// CreatedAt is within the cooldown window of now, or false if none exists
// or the one on record has already cooled.
func (s *Store) FindActiveByDedupKey(key string) (models.Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.byDedupKey[key]
	if !ok {
		return models.Incident{}, false
	}
	if time.Since(inc.CreatedAt) >= time.Duration(s.cooldown.Load()) {
		return models.Incident{}, false
	}
	return s.view(inc), true
}

// List returns incidents ordered by CreatedAt descending, offset then
// limited. A non-positive limit returns every remaining incident.
func (s *Store) List(limit, offset int) []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.items) {
		return nil
	}
	end := len(s.items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]models.Incident, 0, end-offset)
	for _, inc := range s.items[offset:end] {
		out = append(out, s.view(inc))
	}
	return out
}

// Count returns the total number of retained incidents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// view returns a deep copy of inc with Status recomputed against the
// current wallclock, so a caller mutating the returned Incident (or its
// slice fields) cannot reach the canonical stored record. Status
// transitions are computed lazily here, never by a background timer.
func (s *Store) view(inc *models.Incident) models.Incident {
	cp := *inc
	cp.Anomalies = append([]models.Anomaly(nil), inc.Anomalies...)
	cp.CorrelatedEvents = append([]models.CorrelatedEvent(nil), inc.CorrelatedEvents...)
	cp.MatchedRunbooks = append([]models.RunbookMatch(nil), inc.MatchedRunbooks...)
	cp.Services = append([]string(nil), inc.Services...)
	if inc.Analysis != nil {
		analysis := *inc.Analysis
		analysis.AffectedServices = append([]string(nil), inc.Analysis.AffectedServices...)
		analysis.RemediationSteps = append([]string(nil), inc.Analysis.RemediationSteps...)
		cp.Analysis = &analysis
	}

	if time.Since(inc.CreatedAt) >= time.Duration(s.cooldown.Load()) {
		cp.Status = models.StatusCooling
	} else {
		cp.Status = models.StatusActive
	}
	return cp
}

type idCollisionError struct {
	id string
}

func (e *idCollisionError) Error() string {
	return "incident id already exists: " + e.id
}
