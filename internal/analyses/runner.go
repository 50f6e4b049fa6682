package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"venture-backend/internal/llm"
	"venture-backend/internal/shared/metrics"
	"venture-backend/internal/shared/telemetry"
)

const (
	defaultSectionTimeout = 90 * time.Second
	defaultMaxAttempts    = 3
	defaultRetryBase      = 500 * time.Millisecond
	defaultStoreAttempts  = 3
	storeRetryDelay       = 200 * time.Millisecond
)

// Runner executes one section's generator and writes its terminal result.
// A zero-value field falls back to its default; InFlight, when set, caps
// concurrent generator calls across all jobs in this process.
type Runner struct {
	Store       Store
	Archive     *Archiver
	Timeout     time.Duration
	MaxAttempts int
	RetryBase   time.Duration
	InFlight    *semaphore.Weighted
}

// Run generates the section and persists the outcome. It never returns an
// error: every failure mode ends up either in the section's terminal state
// or in the log.
func (r *Runner) Run(ctx context.Context, analysisID string, spec SectionSpec, input IdeaInput) {
	if r.InFlight != nil {
		if err := r.InFlight.Acquire(ctx, 1); err != nil {
			telemetry.Error("analysis.section.aborted", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysisID,
				"section_id":  spec.ID,
				"error":       err.Error(),
			})
			return
		}
		defer r.InFlight.Release(1)
	}

	startedAt := time.Now().UTC()
	var raw json.RawMessage
	data, genErr := r.generate(llm.WithRawCapture(ctx, &raw), spec, input)
	finishedAt := time.Now().UTC()

	result := SectionResult{
		StartedAt:  &startedAt,
		FinishedAt: &finishedAt,
	}
	if genErr != nil {
		result.Status = SectionStatusFailed
		result.Error = &SectionError{
			Code:    classifySectionFailure(genErr),
			Message: sanitizeError(genErr),
		}
	} else {
		result.Status = SectionStatusCompleted
		result.Data = data
	}

	if r.Archive != nil && len(raw) > 0 {
		r.Archive.ArchiveRaw(ctx, analysisID, spec.ID, raw)
	}

	r.persist(ctx, analysisID, spec.ID, result, startedAt, finishedAt)
}

func (r *Runner) generate(ctx context.Context, spec SectionSpec, input IdeaInput) (SectionData, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultSectionTimeout
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	base := r.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		data, err := spec.Generator.Generate(callCtx, input)
		cancel()
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt == maxAttempts || !shouldRetryGenerate(err) {
			return nil, err
		}

		delay := base << (attempt - 1)
		delay += time.Duration(rand.Int63n(int64(delay)))
		telemetry.Info("analysis.section.retry", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"section_id": spec.ID,
			"attempt":    attempt,
			"delay_ms":   float64(delay.Microseconds()) / 1000.0,
			"error":      sanitizeError(err),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (r *Runner) persist(ctx context.Context, analysisID, sectionID string, result SectionResult, startedAt, finishedAt time.Time) {
	fields := map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"section_id":  sectionID,
		"status":      result.Status,
		"duration_ms": float64(finishedAt.Sub(startedAt).Microseconds()) / 1000.0,
	}
	if result.Error != nil {
		fields["error_code"] = result.Error.Code
	}

	var lastErr error
	for attempt := 0; attempt < defaultStoreAttempts; attempt++ {
		jobStatus, err := r.Store.UpdateSection(ctx, analysisID, sectionID, result)
		if err == nil {
			r.recordOutcome(result, jobStatus, fields)
			return
		}
		switch {
		case errors.Is(err, ErrNotFound):
			// Job removed externally; the result is discarded as benign.
			telemetry.Info("analysis.section.discarded", fields)
			return
		case errors.Is(err, ErrSectionFinal):
			telemetry.Info("analysis.section.duplicate", fields)
			return
		}
		lastErr = err
		select {
		case <-time.After(storeRetryDelay << attempt):
		case <-ctx.Done():
			fields["error"] = ctx.Err().Error()
			telemetry.Error("analysis.section.write_failed", fields)
			return
		}
	}

	// Persistence stayed down; record the section as failed with a
	// persistence reason, best effort.
	fields["error"] = sanitizeError(lastErr)
	telemetry.Error("analysis.section.write_failed", fields)
	result.Status = SectionStatusFailed
	result.Data = nil
	result.Error = &SectionError{Code: ErrorCodePersistence, Message: sanitizeError(lastErr)}
	jobStatus, err := r.Store.UpdateSection(ctx, analysisID, sectionID, result)
	if err != nil {
		telemetry.Error("analysis.section.unrecorded", fields)
		return
	}
	fields["status"] = result.Status
	fields["error_code"] = ErrorCodePersistence
	r.recordOutcome(result, jobStatus, fields)
}

func (r *Runner) recordOutcome(result SectionResult, jobStatus string, fields map[string]any) {
	if result.Status == SectionStatusCompleted {
		metrics.IncSectionCompleted()
	} else {
		metrics.IncSectionFailed()
	}
	if result.StartedAt != nil && result.FinishedAt != nil {
		metrics.ObserveSectionDurationMs(float64(result.FinishedAt.Sub(*result.StartedAt).Microseconds()) / 1000.0)
	}
	switch jobStatus {
	case StatusCompleted:
		metrics.IncAnalysisCompleted()
	case StatusFailed:
		metrics.IncAnalysisFailed()
	}
	fields["job_status"] = jobStatus
	telemetry.Info("analysis.section.done", fields)
}

func shouldRetryGenerate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errInvalidOutput) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "http status 429") {
		return true
	}
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}

func classifySectionFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, errInvalidOutput) {
		return ErrorCodeInvalidOutput
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "request timeout") || strings.Contains(msg, "client.timeout") {
		return ErrorCodeTimeout
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "http status 429") {
		return ErrorCodeRateLimited
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorCodeProvider
	}
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") ||
		strings.Contains(msg, "openai") || strings.Contains(msg, "connection") || strings.Contains(msg, "eof") {
		return ErrorCodeProvider
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
