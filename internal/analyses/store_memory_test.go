package analyses

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestJob(id, ownerID string, sections ...string) Analysis {
	sec := make(map[string]SectionResult, len(sections))
	for _, s := range sections {
		sec[s] = SectionResult{Status: SectionStatusPending}
	}
	now := time.Now().UTC()
	return Analysis{
		ID:      id,
		OwnerID: ownerID,
		Input: IdeaInput{
			Title:       "Plant subscription",
			Description: "A subscription service delivering and maintaining office plants for mid-size companies.",
		},
		Status:    StatusProcessing,
		Sections:  sec,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore([]string{"a", "b"})
	ctx := context.Background()

	job := newTestJob("job-1", "user-1", "a", "b", "c")
	if err := store.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, job); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := store.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusProcessing || len(got.Sections) != 3 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpdateSectionDerivesStatus(t *testing.T) {
	store := NewMemoryStore([]string{"a", "b"})
	ctx := context.Background()
	if err := store.Create(ctx, newTestJob("job-1", "user-1", "a", "b", "c")); err != nil {
		t.Fatalf("create: %v", err)
	}

	status, err := store.UpdateSection(ctx, "job-1", "a", SectionResult{Status: SectionStatusCompleted})
	if err != nil {
		t.Fatalf("update a: %v", err)
	}
	if status != StatusProcessing {
		t.Fatalf("status after a = %q, want processing", status)
	}

	status, err = store.UpdateSection(ctx, "job-1", "b", SectionResult{Status: SectionStatusCompleted})
	if err != nil {
		t.Fatalf("update b: %v", err)
	}
	if status != StatusCompleted {
		t.Fatalf("status after b = %q, want completed", status)
	}

	// Optional section failing after the job completed leaves it completed.
	status, err = store.UpdateSection(ctx, "job-1", "c", SectionResult{
		Status: SectionStatusFailed,
		Error:  &SectionError{Code: ErrorCodeTimeout, Message: "deadline exceeded"},
	})
	if err != nil {
		t.Fatalf("update c: %v", err)
	}
	if status != StatusCompleted {
		t.Fatalf("status after optional failure = %q, want completed", status)
	}
}

func TestMemoryStoreRequiredFailureFailsJob(t *testing.T) {
	store := NewMemoryStore([]string{"a", "b"})
	ctx := context.Background()
	if err := store.Create(ctx, newTestJob("job-1", "user-1", "a", "b")); err != nil {
		t.Fatalf("create: %v", err)
	}

	status, err := store.UpdateSection(ctx, "job-1", "a", SectionResult{
		Status: SectionStatusFailed,
		Error:  &SectionError{Code: ErrorCodeProvider, Message: "upstream down"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("status = %q, want failed", status)
	}

	// The other section still records its result after the job failed.
	status, err = store.UpdateSection(ctx, "job-1", "b", SectionResult{Status: SectionStatusCompleted})
	if err != nil {
		t.Fatalf("late update: %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("status = %q, want failed", status)
	}
}

func TestMemoryStoreSectionsAreWriteOnce(t *testing.T) {
	store := NewMemoryStore([]string{"a"})
	ctx := context.Background()
	if err := store.Create(ctx, newTestJob("job-1", "user-1", "a")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.UpdateSection(ctx, "job-1", "a", SectionResult{Status: SectionStatusCompleted}); err != nil {
		t.Fatalf("first update: %v", err)
	}
	_, err := store.UpdateSection(ctx, "job-1", "a", SectionResult{Status: SectionStatusFailed})
	if !errors.Is(err, ErrSectionFinal) {
		t.Fatalf("expected ErrSectionFinal, got %v", err)
	}

	got, err := store.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Sections["a"].Status != SectionStatusCompleted {
		t.Fatalf("terminal result overwritten: %+v", got.Sections["a"])
	}
}

func TestMemoryStoreUpdateUnknownSection(t *testing.T) {
	store := NewMemoryStore([]string{"a"})
	ctx := context.Background()
	if err := store.Create(ctx, newTestJob("job-1", "user-1", "a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.UpdateSection(ctx, "job-1", "zzz", SectionResult{Status: SectionStatusCompleted}); err == nil {
		t.Fatal("expected error for unknown section")
	}
	if _, err := store.UpdateSection(ctx, "missing", "a", SectionResult{Status: SectionStatusCompleted}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreConcurrentDisjointUpdates(t *testing.T) {
	const sections = 16
	var ids []string
	for i := 0; i < sections; i++ {
		ids = append(ids, fmt.Sprintf("s%02d", i))
	}
	store := NewMemoryStore(ids)
	ctx := context.Background()
	if err := store.Create(ctx, newTestJob("job-1", "user-1", ids...)); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, sections)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := store.UpdateSection(ctx, "job-1", id, SectionResult{Status: SectionStatusCompleted}); err != nil {
				errs <- fmt.Errorf("section %s: %w", id, err)
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	got, err := store.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	for _, id := range ids {
		if got.Sections[id].Status != SectionStatusCompleted {
			t.Fatalf("section %s lost its write: %+v", id, got.Sections[id])
		}
	}
}

func TestMemoryStoreGetIsIdempotent(t *testing.T) {
	store := NewMemoryStore([]string{"a"})
	ctx := context.Background()
	if err := store.Create(ctx, newTestJob("job-1", "user-1", "a")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.UpdateSection(ctx, "job-1", "a", SectionResult{Status: SectionStatusCompleted}); err != nil {
		t.Fatalf("update: %v", err)
	}

	first, err := store.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Mutating a returned snapshot must not leak into the store.
	first.Sections["a"] = SectionResult{Status: SectionStatusFailed}

	second, err := store.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if second.Sections["a"].Status != SectionStatusCompleted || second.Status != StatusCompleted {
		t.Fatalf("snapshot mutated store: %+v", second)
	}
}

func TestMemoryStoreListByOwner(t *testing.T) {
	store := NewMemoryStore([]string{"a"})
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		job := newTestJob(fmt.Sprintf("job-%d", i), "user-1", "a")
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Create(ctx, job); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := newTestJob("job-x", "user-2", "a")
	if err := store.Create(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	got, err := store.ListByOwner(ctx, "user-1", 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "job-2" || got[1].ID != "job-1" {
		t.Fatalf("unexpected page: %+v", got)
	}

	rest, err := store.ListByOwner(ctx, "user-1", 2, 2)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != "job-0" {
		t.Fatalf("unexpected tail: %+v", rest)
	}

	empty, err := store.ListByOwner(ctx, "user-1", 10, 10)
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %+v", empty)
	}
}
