package widget

import (
	"time"

	"github.com/google/uuid"
)

// ScoringType selects the strategy used to turn a raw signal value into points.
type ScoringType string

const (
	ScoringYesNo             ScoringType = "yes_no"
	ScoringBoundedRange      ScoringType = "bounded_range"
	ScoringPercentage        ScoringType = "percentage"
	ScoringInversePercentage ScoringType = "inverse_percentage"
)

// ScoringConfig holds the numeric parameters for every scoring type.
// Not all fields are valid for all types; Score reads only the ones its
// strategy needs.
type ScoringConfig struct {
	// yes_no
	YesPoints float64 `json:"yes_points,omitempty"`
	NoPoints  float64 `json:"no_points,omitempty"`

	// bounded_range
	Min            float64 `json:"min,omitempty"`
	Max            float64 `json:"max,omitempty"`
	InRangePoints  float64 `json:"in_range_points,omitempty"`
	FallbackPoints float64 `json:"fallback_points,omitempty"`

	// percentage / inverse_percentage
	Scale     float64 `json:"scale,omitempty"`
	MaxPoints float64 `json:"max_points,omitempty"`
}

// Definition is a named, independently scored security signal.
// Reference data: created and edited by administrators, never deleted
// while tenant records point at it.
type Definition struct {
	ID              uuid.UUID     `json:"id"               db:"id"`
	Key             string        `json:"key"              db:"key"`
	Title           string        `json:"title"            db:"title"`
	ScoringType     ScoringType   `json:"scoring_type"     db:"scoring_type"`
	Config          ScoringConfig `json:"config"           db:"config"`
	PointsAvailable float64       `json:"points_available" db:"points_available"`
	Manual          bool          `json:"manual"           db:"manual"`
	Active          bool          `json:"active"           db:"active"`
	CreatedAt       time.Time     `json:"created_at"       db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"       db:"updated_at"`
}

// Override is a per-(tenant, widget) record carrying an enabled flag and,
// for manual widgets, the human-supplied value.
type Override struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	TenantID  uuid.UUID `json:"tenant_id"  db:"tenant_id"`
	WidgetID  uuid.UUID `json:"widget_id"  db:"widget_id"`
	Enabled   bool      `json:"enabled"    db:"enabled"`
	Value     *float64  `json:"value"      db:"value"`
	Manual    bool      `json:"manual"     db:"manual"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MaturityResult is the outcome of scoring one tenant across all active widgets.
type MaturityResult struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	TotalScore float64   `json:"total_score"`
	MaxScore   float64   `json:"max_score"`
}
