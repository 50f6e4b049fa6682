package analyses

import (
	"context"
	"fmt"
)

// Generator produces one section's payload from the idea input.
type Generator interface {
	Generate(ctx context.Context, input IdeaInput) (SectionData, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, input IdeaInput) (SectionData, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, input IdeaInput) (SectionData, error) {
	return f(ctx, input)
}

// SectionSpec describes one registered report section. Required sections
// gate overall job success; optional sections may fail without failing the job.
type SectionSpec struct {
	ID        string
	Required  bool
	Generator Generator
}

// Registry is the fixed, ordered set of report sections. It is built once at
// process start and immutable afterward.
type Registry struct {
	specs []SectionSpec
	byID  map[string]SectionSpec
}

// NewRegistry builds a registry from the given specs, preserving order.
func NewRegistry(specs ...SectionSpec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("registry requires at least one section")
	}
	byID := make(map[string]SectionSpec, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("section id is required")
		}
		if spec.Generator == nil {
			return nil, fmt.Errorf("section %s: generator is required", spec.ID)
		}
		if _, ok := byID[spec.ID]; ok {
			return nil, fmt.Errorf("duplicate section id %s", spec.ID)
		}
		byID[spec.ID] = spec
	}
	return &Registry{specs: append([]SectionSpec(nil), specs...), byID: byID}, nil
}

// Specs returns the registered sections in registry order.
func (r *Registry) Specs() []SectionSpec {
	return append([]SectionSpec(nil), r.specs...)
}

// Lookup returns the spec for a section id.
func (r *Registry) Lookup(sectionID string) (SectionSpec, bool) {
	spec, ok := r.byID[sectionID]
	return spec, ok
}

// SectionIDs returns all section ids in registry order.
func (r *Registry) SectionIDs() []string {
	out := make([]string, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec.ID)
	}
	return out
}

// RequiredIDs returns the ids of required sections in registry order.
func (r *Registry) RequiredIDs() []string {
	var out []string
	for _, spec := range r.specs {
		if spec.Required {
			out = append(out, spec.ID)
		}
	}
	return out
}

// PendingSections returns a fresh sections map with every registered section
// in the pending state. This is the fixed key set for a new job.
func (r *Registry) PendingSections() map[string]SectionResult {
	out := make(map[string]SectionResult, len(r.specs))
	for _, spec := range r.specs {
		out[spec.ID] = SectionResult{Status: SectionStatusPending}
	}
	return out
}
