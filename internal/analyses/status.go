package analyses

// ComputeStatus derives the overall job status from the sections map.
// A job is failed as soon as any required section fails, completed once
// every required section completed, and processing otherwise. Failed wins
// over completed; the two conditions cannot hold at once for a section set
// with at least one required section.
func ComputeStatus(sections map[string]SectionResult, requiredIDs []string) string {
	allCompleted := len(requiredIDs) > 0
	for _, id := range requiredIDs {
		result, ok := sections[id]
		if !ok {
			allCompleted = false
			continue
		}
		switch result.Status {
		case SectionStatusFailed:
			return StatusFailed
		case SectionStatusCompleted:
		default:
			allCompleted = false
		}
	}
	if allCompleted {
		return StatusCompleted
	}
	return StatusProcessing
}
