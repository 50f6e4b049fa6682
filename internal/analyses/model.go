package analyses

import (
	"encoding/json"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	SectionStatusPending   = "pending"
	SectionStatusCompleted = "completed"
	SectionStatusFailed    = "failed"
)

// IdeaInput is the business idea submitted for analysis.
type IdeaInput struct {
	Title        string `json:"title" validate:"required,min=3,max=200"`
	Description  string `json:"description" validate:"required,min=40,max=8000"`
	Industry     string `json:"industry" validate:"omitempty,max=120"`
	TargetMarket string `json:"targetMarket" validate:"omitempty,max=240"`
}

// Analysis represents one idea-analysis job and its section results.
type Analysis struct {
	ID        string                   `json:"id"`
	OwnerID   string                   `json:"ownerId"`
	Input     IdeaInput                `json:"idea"`
	Status    string                   `json:"status"`
	Sections  map[string]SectionResult `json:"sections"`
	CreatedAt time.Time                `json:"createdAt"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

// SectionError is the terminal failure recorded for a section.
type SectionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SectionResult is the per-section outcome. Data is set only when the
// section completed, Error only when it failed.
type SectionResult struct {
	Status     string       `json:"status"`
	Data       SectionData  `json:"data,omitempty"`
	Error      *SectionError `json:"error,omitempty"`
	StartedAt  *time.Time   `json:"startedAt,omitempty"`
	FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}

type sectionResultJSON struct {
	Status     string          `json:"status"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      *SectionError   `json:"error,omitempty"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// MarshalJSON encodes the section payload through the tagged codec.
func (r SectionResult) MarshalJSON() ([]byte, error) {
	out := sectionResultJSON{
		Status:     r.Status,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Data != nil {
		data, err := MarshalSectionData(r.Data)
		if err != nil {
			return nil, err
		}
		out.Data = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the section payload through the tagged codec.
func (r *SectionResult) UnmarshalJSON(b []byte) error {
	var in sectionResultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.Status = in.Status
	r.Error = in.Error
	r.StartedAt = in.StartedAt
	r.FinishedAt = in.FinishedAt
	r.Data = nil
	if len(in.Data) > 0 {
		data, err := UnmarshalSectionData(in.Data)
		if err != nil {
			return err
		}
		r.Data = data
	}
	return nil
}

// Terminal reports whether the section has reached a final state.
func (r SectionResult) Terminal() bool {
	return r.Status == SectionStatusCompleted || r.Status == SectionStatusFailed
}
