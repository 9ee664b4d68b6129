package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FeedEntry is one externally computed aggregate posture score.
type FeedEntry struct {
	Current    float64   `json:"current"`
	Max        float64   `json:"max"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SecureScoreFeed supplies the provider's independent aggregate score
// history for a tenant. The caller filters to a lookback window and keeps
// the most recent entry.
type SecureScoreFeed interface {
	Scores(ctx context.Context, tenantID uuid.UUID) ([]FeedEntry, error)
}

// latestWithin returns the most recent entry recorded on or after cutoff,
// or false when none qualifies.
func latestWithin(entries []FeedEntry, cutoff time.Time) (FeedEntry, bool) {
	var best FeedEntry
	found := false
	for _, e := range entries {
		if e.RecordedAt.Before(cutoff) {
			continue
		}
		if !found || e.RecordedAt.After(best.RecordedAt) {
			best = e
			found = true
		}
	}
	return best, found
}
