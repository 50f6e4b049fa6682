package analyses

import "context"

// Store defines persistence operations for analysis jobs.
//
// UpdateSection must atomically write exactly one section entry and
// re-derive the overall status in the same operation, and must be safe
// under concurrent invocation for different sections of the same job.
// Sections are write-once: updating a terminal section returns
// ErrSectionFinal.
type Store interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	UpdateSection(ctx context.Context, analysisID, sectionID string, result SectionResult) (string, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Analysis, error)
}
