package openai

import (
	"fmt"
	"strings"

	"venture-backend/internal/llm"
)

// Message is a single chat message in a prompt.
type Message struct {
	Role    string
	Content string
}

const analystSystemPrompt = "You are a pragmatic venture analyst. You respond with a single JSON object " +
	"matching the requested schema exactly: no markdown, no commentary, no extra keys. " +
	"Be specific and grounded; when a figure is an estimate, keep it plausible for the stated market."

var sectionSchemas = map[string]string{
	"executive_summary": `{
  "overview": string,
  "valueProposition": string,
  "keyRisks": [string],
  "verdict": string
}`,
	"market_research": `{
  "marketSize": string,
  "growthRate": string,
  "customerSegments": [string],
  "trends": [string],
  "barriers": [string]
}`,
	"financial_projections": `{
  "assumptions": [string],
  "years": [{"year": number, "revenueUsd": number, "costsUsd": number}],
  "breakEvenMonths": number
}`,
	"vc_activity": `{
  "recentDeals": [{"investor": string, "company": string, "round": string, "amount": string, "year": number}],
  "hotThemes": [string],
  "outlook": string
}`,
	"competitor_landscape": `{
  "competitors": [{"name": string, "positioning": string, "strengths": [string], "weaknesses": [string]}],
  "differentiation": string
}`,
}

var sectionInstructions = map[string]string{
	"executive_summary":     "Write an executive summary of the idea: what it is, why it could win, the three biggest risks, and a one-line verdict.",
	"market_research":       "Research the market for the idea: overall size, growth, the customer segments that would pay first, relevant trends, and barriers to entry.",
	"financial_projections": "Project a simple three-year financial outline for the idea: the assumptions you make, yearly revenue and costs in USD, and months to break even.",
	"vc_activity":           "Summarize recent venture-capital activity in this space: notable deals from the last two years, themes investors are chasing, and a short funding outlook.",
	"competitor_landscape":  "Map the competitive landscape: the closest existing players, how each is positioned, and how this idea differentiates.",
}

// BuildSectionPrompt assembles the chat messages for one section request.
func BuildSectionPrompt(req llm.SectionRequest) []Message {
	schema := sectionSchemas[req.SectionID]
	instruction := sectionInstructions[req.SectionID]
	if schema == "" || instruction == "" {
		// Unknown sections still get a generic JSON-only prompt; the caller's
		// payload decoding decides whether the output is usable.
		instruction = fmt.Sprintf("Produce the %q section of a business-idea analysis report.", req.SectionID)
		schema = "{}"
	}

	var user strings.Builder
	user.WriteString(instruction)
	user.WriteString("\n\nBusiness idea: ")
	user.WriteString(req.Title)
	user.WriteString("\n")
	user.WriteString(req.Description)
	if strings.TrimSpace(req.Industry) != "" {
		user.WriteString("\nIndustry: ")
		user.WriteString(req.Industry)
	}
	if strings.TrimSpace(req.TargetMarket) != "" {
		user.WriteString("\nTarget market: ")
		user.WriteString(req.TargetMarket)
	}
	user.WriteString("\n\nRespond with JSON matching this schema:\n")
	user.WriteString(schema)

	return []Message{
		{Role: "system", Content: analystSystemPrompt},
		{Role: "user", Content: user.String()},
	}
}

func buildFixPrompt(req llm.SectionRequest, raw []byte) []Message {
	schema := sectionSchemas[req.SectionID]
	if schema == "" {
		schema = "{}"
	}
	content := fmt.Sprintf(
		"The following output was supposed to be a JSON object matching this schema:\n%s\n\nOutput:\n%s\n\nReturn only the corrected JSON object.",
		schema, string(raw),
	)
	return []Message{
		{Role: "system", Content: analystSystemPrompt},
		{Role: "user", Content: content},
	}
}
