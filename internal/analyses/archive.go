package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"venture-backend/internal/shared/storage/object"
	"venture-backend/internal/shared/telemetry"
)

// Archiver stores raw provider output alongside the decoded results, for
// audit and prompt debugging. Archive failures never fail a section.
type Archiver struct {
	Store  object.ObjectStore
	Prefix string
}

// ArchiveRaw writes the raw section output under
// analyses/<analysisID>/<sectionID>.json.
func (a *Archiver) ArchiveRaw(ctx context.Context, analysisID, sectionID string, raw json.RawMessage) {
	if a == nil || a.Store == nil || len(raw) == 0 {
		return
	}
	key := path.Join(a.Prefix, "analyses", analysisID, sectionID+".json")
	size, err := a.Store.Put(ctx, key, "application/json", bytes.NewReader(raw))
	if err != nil {
		telemetry.Error("analysis.archive_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"section_id":  sectionID,
			"error":       err.Error(),
		})
		return
	}
	telemetry.Info("analysis.archived", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"section_id":  sectionID,
		"key":         key,
		"size_bytes":  size,
	})
}
