package analyses

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"venture-backend/internal/queue"
	"venture-backend/internal/shared/metrics"
	"venture-backend/internal/shared/telemetry"
)

// Service orchestrates analysis jobs: it validates input, creates the job
// with every section pending, and fans the sections out to the Runner.
// When Queue is set, sections are dispatched as queue messages instead of
// in-process goroutines.
type Service struct {
	Store    Store
	Registry *Registry
	Runner   *Runner
	Queue    queue.Client
	Validate *validator.Validate
}

// NewService wires a service with a fresh validator.
func NewService(store Store, registry *Registry, runner *Runner, q queue.Client) *Service {
	return &Service{
		Store:    store,
		Registry: registry,
		Runner:   runner,
		Queue:    q,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create validates the idea, persists a new processing job with all sections
// pending, and starts section generation. It returns the stored snapshot.
func (s *Service) Create(ctx context.Context, ownerID string, input IdeaInput) (Analysis, error) {
	if ownerID == "" {
		return Analysis{}, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if err := s.Validate.Struct(input); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now().UTC()
	job := Analysis{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Input:     input,
		Status:    StatusProcessing,
		Sections:  s.Registry.PendingSections(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.Create(ctx, job); err != nil {
		return Analysis{}, fmt.Errorf("create analysis: %w", err)
	}

	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.created", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": job.ID,
		"owner_id":    ownerID,
		"sections":    len(job.Sections),
	})

	if s.Queue != nil {
		s.enqueueSections(ctx, job)
	} else {
		go s.processAll(backgroundWithRequestID(ctx), job)
	}
	return job, nil
}

// Get returns the current snapshot of a job for its owner.
func (s *Service) Get(ctx context.Context, analysisID, requesterID string) (Analysis, error) {
	job, err := s.Store.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if job.OwnerID != requesterID {
		return Analysis{}, ErrForbidden
	}
	return job, nil
}

// List returns the requester's jobs, newest first.
func (s *Service) List(ctx context.Context, requesterID string, limit, offset int) ([]Analysis, error) {
	return s.Store.ListByOwner(ctx, requesterID, limit, offset)
}

// ProcessSection runs one section of an existing job. Queue consumers call
// this for each dequeued message.
func (s *Service) ProcessSection(ctx context.Context, analysisID, sectionID string) error {
	spec, ok := s.Registry.Lookup(sectionID)
	if !ok {
		return fmt.Errorf("unknown section %q", sectionID)
	}
	job, err := s.Store.GetByID(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("load analysis %s: %w", analysisID, err)
	}
	if existing, ok := job.Sections[sectionID]; ok && existing.Terminal() {
		return nil
	}
	s.Runner.Run(ctx, analysisID, spec, job.Input)
	return nil
}

// processAll generates every registered section concurrently and blocks until
// all of them have reached a terminal state.
func (s *Service) processAll(ctx context.Context, job Analysis) {
	var wg sync.WaitGroup
	for _, spec := range s.Registry.Specs() {
		wg.Add(1)
		go func(spec SectionSpec) {
			defer wg.Done()
			s.Runner.Run(ctx, job.ID, spec, job.Input)
		}(spec)
	}
	wg.Wait()
}

func (s *Service) enqueueSections(ctx context.Context, job Analysis) {
	requestID := requestIDFromContext(ctx)
	enqueuedAt := time.Now().UTC().Format(time.RFC3339)
	for _, spec := range s.Registry.Specs() {
		msg := queue.Message{
			AnalysisID: job.ID,
			SectionID:  spec.ID,
			RequestID:  requestID,
			EnqueuedAt: enqueuedAt,
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			// The section stays pending in the snapshot; operators can
			// re-drive it through the worker once the queue recovers.
			telemetry.Error("analysis.enqueue_failed", map[string]any{
				"request_id":  requestID,
				"analysis_id": job.ID,
				"section_id":  spec.ID,
				"error":       err.Error(),
			})
		}
	}
}
