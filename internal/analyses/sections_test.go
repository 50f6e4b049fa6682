package analyses

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDecodeSectionData(t *testing.T) {
	raw := json.RawMessage(`{
		"overview": "A subscription service for office plants.",
		"valueProposition": "Plants without the upkeep burden.",
		"keyRisks": ["churn", "logistics cost"],
		"verdict": "Promising niche"
	}`)

	data, err := DecodeSectionData(SectionExecutiveSummary, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	summary, ok := data.(ExecutiveSummaryData)
	if !ok {
		t.Fatalf("expected ExecutiveSummaryData, got %T", data)
	}
	if summary.Verdict != "Promising niche" || len(summary.KeyRisks) != 2 {
		t.Fatalf("unexpected payload: %+v", summary)
	}
}

func TestDecodeSectionDataUnknownSection(t *testing.T) {
	if _, err := DecodeSectionData("swot", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown section")
	}
}

func TestDecodeSectionDataMalformedPayload(t *testing.T) {
	_, err := DecodeSectionData(SectionFinancialProjections, json.RawMessage(`{"years": "not-a-list"}`))
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestSectionDataEnvelopeRoundTrip(t *testing.T) {
	original := FinancialProjectionsData{
		Assumptions: []string{"10% monthly growth"},
		Years: []FinancialYear{
			{Year: 2027, RevenueUSD: 120000, CostsUSD: 90000},
			{Year: 2028, RevenueUSD: 480000, CostsUSD: 210000},
		},
		BreakEvenMonths: 18,
	}

	encoded, err := MarshalSectionData(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := UnmarshalSectionData(encoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Fatalf("round trip mismatch: got %+v want %+v", decoded, original)
	}
}

func TestSectionResultJSONCarriesTypedData(t *testing.T) {
	result := SectionResult{
		Status: SectionStatusCompleted,
		Data: MarketResearchData{
			MarketSize:       "$2B",
			GrowthRate:       "11% CAGR",
			CustomerSegments: []string{"mid-market offices"},
		},
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded SectionResult
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	market, ok := decoded.Data.(MarketResearchData)
	if !ok {
		t.Fatalf("expected MarketResearchData, got %T", decoded.Data)
	}
	if market.MarketSize != "$2B" {
		t.Fatalf("unexpected payload: %+v", market)
	}
}
