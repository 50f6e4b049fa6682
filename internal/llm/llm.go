package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts LLM providers for section generation.
type Client interface {
	GenerateSection(ctx context.Context, req SectionRequest) (json.RawMessage, error)
}

// SectionRequest captures the inputs for generating one report section.
type SectionRequest struct {
	SectionID    string
	Title        string
	Description  string
	Industry     string
	TargetMarket string
}

type fixJSONKey struct{}

// WithFixJSON returns a context signaling a fix-JSON retry with the given raw output.
func WithFixJSON(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, fixJSONKey{}, raw)
}

// FixJSONFromContext returns the raw JSON to repair, if any.
func FixJSONFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(fixJSONKey{})
	raw, ok := val.(string)
	return raw, ok
}

type rawCaptureKey struct{}

// WithRawCapture attaches a sink that receives the provider's raw output,
// letting callers archive it even when payload decoding fails downstream.
func WithRawCapture(ctx context.Context, sink *json.RawMessage) context.Context {
	if sink == nil {
		return ctx
	}
	return context.WithValue(ctx, rawCaptureKey{}, sink)
}

// CaptureRaw copies raw output into the context sink, if one is attached.
func CaptureRaw(ctx context.Context, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	if sink, ok := ctx.Value(rawCaptureKey{}).(*json.RawMessage); ok && sink != nil {
		*sink = append(json.RawMessage(nil), raw...)
	}
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// GenerateSection returns ErrNotImplemented.
func (PlaceholderClient) GenerateSection(ctx context.Context, req SectionRequest) (json.RawMessage, error) {
	_ = ctx
	_ = req
	return nil, ErrNotImplemented
}
