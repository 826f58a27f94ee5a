package crawler

import (
	"slices"

	"relentless-jobs/internal/models"
)

// Dedupe keeps the first record for each JobLink and preserves input order.
// Records without a link are dropped.
func Dedupe(records []models.JobRecord) []models.JobRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.JobRecord, 0, len(records))
	for _, r := range records {
		if r.JobLink == "" {
			continue
		}
		if _, ok := seen[r.JobLink]; ok {
			continue
		}
		seen[r.JobLink] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sortByOrdinal(results []emitted) {
	slices.SortStableFunc(results, func(a, b emitted) int {
		switch {
		case a.ordinal.Less(b.ordinal):
			return -1
		case b.ordinal.Less(a.ordinal):
			return 1
		default:
			return 0
		}
	})
}
