package snapshot

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ScoreSnapshot is one dated posture record per tenant per calendar day.
// The (tenant, date) pair is unique in storage; a second capture the same
// day updates the existing row.
type ScoreSnapshot struct {
	ID            uuid.UUID `json:"id"             db:"id"`
	TenantID      uuid.UUID `json:"tenant_id"      db:"tenant_id"`
	Date          time.Time `json:"date"           db:"snapshot_date"`
	Total         float64   `json:"total"          db:"total_score"`
	Max           float64   `json:"max"            db:"max_score"`
	Percent       float64   `json:"percent"        db:"percent"`
	SecureScore   float64   `json:"secure_score"   db:"secure_score"`
	SecureMax     float64   `json:"secure_max"     db:"secure_max"`
	SecurePercent float64   `json:"secure_percent" db:"secure_percent"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"     db:"updated_at"`
}

// percentOf returns total/max as a percentage rounded to two decimals,
// and 0 when max is 0.
func percentOf(total, max float64) float64 {
	if max == 0 {
		return 0
	}
	return math.Round(total/max*10000) / 100
}

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
