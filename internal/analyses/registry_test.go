package analyses

import (
	"context"
	"reflect"
	"testing"
)

func nopGenerator() Generator {
	return GeneratorFunc(func(ctx context.Context, input IdeaInput) (SectionData, error) {
		return ExecutiveSummaryData{}, nil
	})
}

func TestNewRegistryRejectsBadSpecs(t *testing.T) {
	if _, err := NewRegistry(); err == nil {
		t.Fatal("expected error for empty registry")
	}
	if _, err := NewRegistry(SectionSpec{ID: "", Generator: nopGenerator()}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := NewRegistry(SectionSpec{ID: "a", Generator: nil}); err == nil {
		t.Fatal("expected error for nil generator")
	}
	_, err := NewRegistry(
		SectionSpec{ID: "a", Generator: nopGenerator()},
		SectionSpec{ID: "a", Generator: nopGenerator()},
	)
	if err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestRegistryOrderAndLookup(t *testing.T) {
	reg, err := NewRegistry(
		SectionSpec{ID: "b", Required: true, Generator: nopGenerator()},
		SectionSpec{ID: "a", Generator: nopGenerator()},
		SectionSpec{ID: "c", Required: true, Generator: nopGenerator()},
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if got := reg.SectionIDs(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("SectionIDs() = %v", got)
	}
	if got := reg.RequiredIDs(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("RequiredIDs() = %v", got)
	}

	spec, ok := reg.Lookup("a")
	if !ok || spec.ID != "a" || spec.Required {
		t.Fatalf("Lookup(a) = %+v, %v", spec, ok)
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatal("expected lookup miss")
	}

	pending := reg.PendingSections()
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending sections, got %d", len(pending))
	}
	for id, result := range pending {
		if result.Status != SectionStatusPending {
			t.Fatalf("section %s status = %q", id, result.Status)
		}
	}
}

func TestDefaultRegistryLayout(t *testing.T) {
	reg, err := DefaultRegistry(staticSectionClient{})
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}

	wantOrder := []string{
		SectionExecutiveSummary,
		SectionMarketResearch,
		SectionFinancialProjections,
		SectionVCActivity,
		SectionCompetitorLandscape,
	}
	if got := reg.SectionIDs(); !reflect.DeepEqual(got, wantOrder) {
		t.Fatalf("SectionIDs() = %v", got)
	}
	wantRequired := []string{
		SectionExecutiveSummary,
		SectionMarketResearch,
		SectionFinancialProjections,
	}
	if got := reg.RequiredIDs(); !reflect.DeepEqual(got, wantRequired) {
		t.Fatalf("RequiredIDs() = %v", got)
	}
}
