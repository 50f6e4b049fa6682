package analyses

import (
	"encoding/json"
	"fmt"
)

const (
	SectionExecutiveSummary     = "executive_summary"
	SectionMarketResearch       = "market_research"
	SectionFinancialProjections = "financial_projections"
	SectionVCActivity           = "vc_activity"
	SectionCompetitorLandscape  = "competitor_landscape"
)

// SectionData is the closed set of typed section payloads. Exactly one
// concrete type exists per registry entry.
type SectionData interface {
	SectionType() string
}

// ExecutiveSummaryData is the top-level assessment of the idea.
type ExecutiveSummaryData struct {
	Overview         string   `json:"overview"`
	ValueProposition string   `json:"valueProposition"`
	KeyRisks         []string `json:"keyRisks"`
	Verdict          string   `json:"verdict"`
}

func (ExecutiveSummaryData) SectionType() string { return SectionExecutiveSummary }

// MarketResearchData sizes the market and names demand signals.
type MarketResearchData struct {
	MarketSize       string   `json:"marketSize"`
	GrowthRate       string   `json:"growthRate"`
	CustomerSegments []string `json:"customerSegments"`
	Trends           []string `json:"trends"`
	Barriers         []string `json:"barriers"`
}

func (MarketResearchData) SectionType() string { return SectionMarketResearch }

// FinancialYear is one projected year of the financial model.
type FinancialYear struct {
	Year       int     `json:"year"`
	RevenueUSD float64 `json:"revenueUsd"`
	CostsUSD   float64 `json:"costsUsd"`
}

// FinancialProjectionsData is a three-to-five year outline model.
type FinancialProjectionsData struct {
	Assumptions     []string        `json:"assumptions"`
	Years           []FinancialYear `json:"years"`
	BreakEvenMonths int             `json:"breakEvenMonths"`
}

func (FinancialProjectionsData) SectionType() string { return SectionFinancialProjections }

// VCDeal is one recent funding event relevant to the idea.
type VCDeal struct {
	Investor string `json:"investor"`
	Company  string `json:"company"`
	Round    string `json:"round"`
	Amount   string `json:"amount"`
	Year     int    `json:"year"`
}

// VCActivityData summarizes investor appetite in the space.
type VCActivityData struct {
	RecentDeals []VCDeal `json:"recentDeals"`
	HotThemes   []string `json:"hotThemes"`
	Outlook     string   `json:"outlook"`
}

func (VCActivityData) SectionType() string { return SectionVCActivity }

// Competitor is one player in the landscape.
type Competitor struct {
	Name        string   `json:"name"`
	Positioning string   `json:"positioning"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// CompetitorLandscapeData maps the competition and the wedge against it.
type CompetitorLandscapeData struct {
	Competitors     []Competitor `json:"competitors"`
	Differentiation string       `json:"differentiation"`
}

func (CompetitorLandscapeData) SectionType() string { return SectionCompetitorLandscape }

type sectionDataEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalSectionData wraps a payload in its type-tagged envelope.
func MarshalSectionData(data SectionData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("nil section data")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sectionDataEnvelope{Type: data.SectionType(), Payload: payload})
}

// UnmarshalSectionData decodes a type-tagged envelope into its concrete payload.
func UnmarshalSectionData(raw []byte) (SectionData, error) {
	var env sectionDataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return DecodeSectionData(env.Type, env.Payload)
}

// DecodeSectionData parses raw JSON as the payload type registered for sectionID.
func DecodeSectionData(sectionID string, raw json.RawMessage) (SectionData, error) {
	decode := func(dst SectionData) (SectionData, error) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("section %s payload: %w", sectionID, err)
		}
		return dst, nil
	}
	switch sectionID {
	case SectionExecutiveSummary:
		data, err := decode(&ExecutiveSummaryData{})
		if err != nil {
			return nil, err
		}
		return *data.(*ExecutiveSummaryData), nil
	case SectionMarketResearch:
		data, err := decode(&MarketResearchData{})
		if err != nil {
			return nil, err
		}
		return *data.(*MarketResearchData), nil
	case SectionFinancialProjections:
		data, err := decode(&FinancialProjectionsData{})
		if err != nil {
			return nil, err
		}
		return *data.(*FinancialProjectionsData), nil
	case SectionVCActivity:
		data, err := decode(&VCActivityData{})
		if err != nil {
			return nil, err
		}
		return *data.(*VCActivityData), nil
	case SectionCompetitorLandscape:
		data, err := decode(&CompetitorLandscapeData{})
		if err != nil {
			return nil, err
		}
		return *data.(*CompetitorLandscapeData), nil
	default:
		return nil, fmt.Errorf("unknown section type %q", sectionID)
	}
}
