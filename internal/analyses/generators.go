package analyses

import (
	"context"
	"errors"
	"fmt"

	"venture-backend/internal/llm"
)

// errInvalidOutput marks generator failures caused by unusable provider
// output. These are never retried.
var errInvalidOutput = errors.New("invalid section output")

// llmGenerator adapts the provider client into a typed Generator for one
// section. The raw provider output is published to any capture sink on the
// context before decoding, so failed decodes can still be archived.
func llmGenerator(client llm.Client, sectionID string) Generator {
	return GeneratorFunc(func(ctx context.Context, input IdeaInput) (SectionData, error) {
		raw, err := client.GenerateSection(ctx, llm.SectionRequest{
			SectionID:    sectionID,
			Title:        input.Title,
			Description:  input.Description,
			Industry:     input.Industry,
			TargetMarket: input.TargetMarket,
		})
		if raw != nil {
			llm.CaptureRaw(ctx, raw)
		}
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", sectionID, err)
		}
		data, err := DecodeSectionData(sectionID, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidOutput, err)
		}
		return data, nil
	})
}

// DefaultRegistry builds the standard report layout: three required sections
// that gate the report and two optional color sections.
func DefaultRegistry(client llm.Client) (*Registry, error) {
	return NewRegistry(
		SectionSpec{ID: SectionExecutiveSummary, Required: true, Generator: llmGenerator(client, SectionExecutiveSummary)},
		SectionSpec{ID: SectionMarketResearch, Required: true, Generator: llmGenerator(client, SectionMarketResearch)},
		SectionSpec{ID: SectionFinancialProjections, Required: true, Generator: llmGenerator(client, SectionFinancialProjections)},
		SectionSpec{ID: SectionVCActivity, Required: false, Generator: llmGenerator(client, SectionVCActivity)},
		SectionSpec{ID: SectionCompetitorLandscape, Required: false, Generator: llmGenerator(client, SectionCompetitorLandscape)},
	)
}
