package analyses

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps jobs in memory and is safe for concurrent use. It is the
// reference Store implementation and the dev fallback when no database is
// configured.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]Analysis
	required []string
}

// NewMemoryStore constructs a MemoryStore deriving status over the given
// required section ids.
func NewMemoryStore(requiredIDs []string) *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]Analysis),
		required: append([]string(nil), requiredIDs...),
	}
}

// Create stores a new job.
func (s *MemoryStore) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[analysis.ID]; ok {
		return ErrConflict
	}
	analysis.Sections = copySections(analysis.Sections)
	s.byID[analysis.ID] = analysis
	return nil
}

// GetByID returns a point-in-time snapshot of a job. Status is re-derived
// from the sections so a reader never observes a stale aggregate.
func (s *MemoryStore) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	analysis, ok := s.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	analysis.Sections = copySections(analysis.Sections)
	analysis.Status = ComputeStatus(analysis.Sections, s.required)
	return analysis, nil
}

// UpdateSection writes one section result and recomputes the overall status
// under the same lock. Returns the new overall status.
func (s *MemoryStore) UpdateSection(ctx context.Context, analysisID, sectionID string, result SectionResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	analysis, ok := s.byID[analysisID]
	if !ok {
		return "", ErrNotFound
	}
	current, ok := analysis.Sections[sectionID]
	if !ok {
		return "", fmt.Errorf("unknown section %q", sectionID)
	}
	if current.Terminal() {
		return "", ErrSectionFinal
	}
	sections := copySections(analysis.Sections)
	sections[sectionID] = result
	analysis.Sections = sections
	analysis.Status = ComputeStatus(sections, s.required)
	analysis.UpdatedAt = time.Now().UTC()
	s.byID[analysisID] = analysis
	return analysis.Status, nil
}

// ListByOwner returns an owner's jobs, newest first, with limit/offset.
func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	s.mu.RLock()
	var owned []Analysis
	for _, analysis := range s.byID {
		if analysis.OwnerID != ownerID {
			continue
		}
		analysis.Sections = copySections(analysis.Sections)
		analysis.Status = ComputeStatus(analysis.Sections, s.required)
		owned = append(owned, analysis)
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	if offset >= len(owned) {
		return []Analysis{}, nil
	}
	end := len(owned)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return owned[offset:end], nil
}

// Delete removes a job. Not part of the Store contract; it exists so tests
// can simulate external retention cleanup racing in-flight runners.
func (s *MemoryStore) Delete(analysisID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, analysisID)
}

func copySections(in map[string]SectionResult) map[string]SectionResult {
	out := make(map[string]SectionResult, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
