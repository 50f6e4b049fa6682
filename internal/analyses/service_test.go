package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"venture-backend/internal/llm"
	"venture-backend/internal/queue"
)

// staticSectionClient returns an empty JSON object for every section, which
// decodes into a zero-valued payload, and can be told to fail per section.
type staticSectionClient struct {
	fail map[string]error
}

func (c staticSectionClient) GenerateSection(ctx context.Context, req llm.SectionRequest) (json.RawMessage, error) {
	if err, ok := c.fail[req.SectionID]; ok {
		return nil, err
	}
	raw := json.RawMessage(`{}`)
	llm.CaptureRaw(ctx, raw)
	return raw, nil
}

func validIdea() IdeaInput {
	return IdeaInput{
		Title:       "Plant subscription",
		Description: "A subscription service delivering and maintaining office plants for mid-size companies nationwide.",
		Industry:    "Commercial services",
	}
}

func setupService(t *testing.T, client llm.Client, q queue.Client) (*Service, *MemoryStore) {
	t.Helper()
	registry, err := DefaultRegistry(client)
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	store := NewMemoryStore(registry.RequiredIDs())
	runner := &Runner{Store: store}
	return NewService(store, registry, runner, q), store
}

// blockingSectionClient parks every generation until release is closed, so
// tests can observe the in-flight snapshot without racing the background run.
type blockingSectionClient struct {
	release chan struct{}
}

func (c blockingSectionClient) GenerateSection(ctx context.Context, req llm.SectionRequest) (json.RawMessage, error) {
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.RawMessage(`{}`), nil
}

func TestServiceCreateReturnsProcessingSnapshot(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	svc, store := setupService(t, blockingSectionClient{release: release}, nil)

	created, err := svc.Create(context.Background(), "user-1", validIdea())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Status != StatusProcessing {
		t.Fatalf("unexpected snapshot: %+v", created)
	}
	if len(created.Sections) != 5 {
		t.Fatalf("expected 5 pending sections, got %d", len(created.Sections))
	}
	for id, result := range created.Sections {
		if result.Status != SectionStatusPending {
			t.Fatalf("section %s = %q, want pending", id, result.Status)
		}
	}

	// The job is pollable immediately, before any section finishes.
	got, err := store.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Fatalf("status = %q, want processing", got.Status)
	}
}

func TestServiceAllSectionsSucceed(t *testing.T) {
	svc, store := setupService(t, staticSectionClient{}, nil)

	created, err := svc.Create(context.Background(), "user-1", validIdea())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.processAll(context.Background(), created)

	got, err := store.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	for id, result := range got.Sections {
		if result.Status != SectionStatusCompleted {
			t.Fatalf("section %s = %q, want completed", id, result.Status)
		}
	}
}

func TestServiceOptionalFailureStillCompletes(t *testing.T) {
	client := staticSectionClient{fail: map[string]error{
		SectionVCActivity: fmt.Errorf("openai error: http status 503"),
	}}
	svc, store := setupService(t, client, nil)
	svc.Runner.MaxAttempts = 1

	created, err := svc.Create(context.Background(), "user-1", validIdea())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.processAll(context.Background(), created)

	got, _ := store.GetByID(context.Background(), created.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	failed := got.Sections[SectionVCActivity]
	if failed.Status != SectionStatusFailed || failed.Error == nil || failed.Error.Code != ErrorCodeProvider {
		t.Fatalf("unexpected optional section: %+v", failed)
	}
}

func TestServiceRequiredFailureFailsJobOthersStillRecorded(t *testing.T) {
	client := staticSectionClient{fail: map[string]error{
		SectionMarketResearch: fmt.Errorf("%w: not an object", errInvalidOutput),
	}}
	svc, store := setupService(t, client, nil)
	svc.Runner.MaxAttempts = 1

	created, err := svc.Create(context.Background(), "user-1", validIdea())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.processAll(context.Background(), created)

	got, _ := store.GetByID(context.Background(), created.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	failed := got.Sections[SectionMarketResearch]
	if failed.Status != SectionStatusFailed || failed.Error.Code != ErrorCodeInvalidOutput {
		t.Fatalf("unexpected failed section: %+v", failed)
	}
	// Sections that succeeded keep their results on a failed job.
	if got.Sections[SectionExecutiveSummary].Status != SectionStatusCompleted {
		t.Fatalf("sibling section lost: %+v", got.Sections[SectionExecutiveSummary])
	}
}

func TestServiceCreateValidatesInput(t *testing.T) {
	svc, _ := setupService(t, staticSectionClient{}, nil)

	_, err := svc.Create(context.Background(), "user-1", IdeaInput{Title: "x", Description: "too short"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	_, err = svc.Create(context.Background(), "", validIdea())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty owner, got %v", err)
	}
}

func TestServiceGetEnforcesOwnership(t *testing.T) {
	svc, _ := setupService(t, staticSectionClient{}, nil)

	created, err := svc.Create(context.Background(), "user-1", validIdea())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(context.Background(), created.ID, "user-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "missing", "user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), created.ID, "user-1"); err != nil {
		t.Fatalf("owner get: %v", err)
	}
}

func TestServiceProcessSection(t *testing.T) {
	svc, store := setupService(t, staticSectionClient{}, nil)

	created, err := svc.Create(context.Background(), "user-1", validIdea())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ProcessSection(context.Background(), created.ID, SectionMarketResearch); err != nil {
		t.Fatalf("process section: %v", err)
	}
	got, _ := store.GetByID(context.Background(), created.ID)
	if got.Sections[SectionMarketResearch].Status != SectionStatusCompleted {
		t.Fatalf("section not completed: %+v", got.Sections[SectionMarketResearch])
	}

	// Reprocessing a terminal section is a no-op for at-least-once delivery.
	if err := svc.ProcessSection(context.Background(), created.ID, SectionMarketResearch); err != nil {
		t.Fatalf("reprocess section: %v", err)
	}

	if err := svc.ProcessSection(context.Background(), created.ID, "swot"); err == nil {
		t.Fatal("expected error for unknown section")
	}
	if err := svc.ProcessSection(context.Background(), "missing", SectionMarketResearch); err == nil {
		t.Fatal("expected error for missing job")
	}
}

type recordingQueue struct {
	sent []queue.Message
	err  error
}

func (q *recordingQueue) Send(ctx context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, msg)
	return nil
}

func TestServiceCreateEnqueuesPerSection(t *testing.T) {
	q := &recordingQueue{}
	svc, store := setupService(t, staticSectionClient{}, q)

	created, err := svc.Create(context.Background(), "user-1", validIdea())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(q.sent) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(q.sent))
	}
	seen := map[string]bool{}
	for _, msg := range q.sent {
		if msg.AnalysisID != created.ID {
			t.Fatalf("message for wrong job: %+v", msg)
		}
		seen[msg.SectionID] = true
	}
	for _, id := range svc.Registry.SectionIDs() {
		if !seen[id] {
			t.Fatalf("section %s never enqueued", id)
		}
	}

	// With a queue configured nothing runs in-process; all sections stay pending.
	got, _ := store.GetByID(context.Background(), created.ID)
	for id, result := range got.Sections {
		if result.Status != SectionStatusPending {
			t.Fatalf("section %s = %q, want pending", id, result.Status)
		}
	}
}

func TestServiceCreateSurvivesEnqueueFailure(t *testing.T) {
	q := &recordingQueue{err: errors.New("sqs unavailable")}
	svc, _ := setupService(t, staticSectionClient{}, q)

	created, err := svc.Create(context.Background(), "user-1", validIdea())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusProcessing {
		t.Fatalf("status = %q, want processing", created.Status)
	}
}
