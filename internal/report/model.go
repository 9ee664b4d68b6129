package report

import (
	"time"

	"github.com/google/uuid"
)

// Status is the report lifecycle state. Transitions are strictly linear:
// new → reviewed → analyst_ready → manager_ready → sent. There is no
// backward transition and no reopen path.
type Status string

const (
	StatusNew          Status = "new"
	StatusReviewed     Status = "reviewed"
	StatusAnalystReady Status = "analyst_ready"
	StatusManagerReady Status = "manager_ready"
	StatusSent         Status = "sent"
)

// IdentityMetrics are the identity-posture signals frozen into a report.
type IdentityMetrics struct {
	UsersWithoutMFA           int  `json:"users_without_mfa"`
	PhishResistantMFA         bool `json:"phish_resistant_mfa"`
	GlobalAdmins              int  `json:"global_admins"`
	RiskBasedSignOn           bool `json:"risk_based_sign_on"`
	RoleBasedAccessControl    bool `json:"role_based_access_control"`
	SingleSignOn              bool `json:"single_sign_on"`
	ManagedIdentityProtection bool `json:"managed_identity_protection"`
}

// DeviceMetrics are the endpoint-posture signals frozen into a report.
type DeviceMetrics struct {
	DiskEncryption   bool `json:"disk_encryption"`
	EndpointDefense  bool `json:"endpoint_defense"`
	Hardening        bool `json:"hardening"`
	SoftwareCurrent  bool `json:"software_current"`
	ManagedDetection bool `json:"managed_detection"`
}

// CloudMetrics are the cloud/SaaS-posture signals frozen into a report.
type CloudMetrics struct {
	SaaSProtection      bool `json:"saas_protection"`
	SensitivityLabels   bool `json:"sensitivity_labels"`
	BackupArchiving     bool `json:"backup_archiving"`
	DLP                 bool `json:"dlp"`
	AdvancedMailDefense bool `json:"advanced_mail_defense"`
	Firewall            bool `json:"firewall"`
	DKIM                bool `json:"dkim"`
	DMARC               bool `json:"dmarc"`
	ConditionalAccess   bool `json:"conditional_access"`
	CompliancePolicies  bool `json:"compliance_policies"`
	BYODPolicy          bool `json:"byod_policy"`
}

// ThreatMetrics are the detected-threat signals frozen into a report.
type ThreatMetrics struct {
	TotalThreats int `json:"total_threats"`
}

// SecurityMetrics is the fixed-shape payload every report freezes at
// creation time. It is never re-derived, so historical reports stay
// reproducible even if scoring rules change later.
type SecurityMetrics struct {
	Identity IdentityMetrics `json:"identity"`
	Device   DeviceMetrics   `json:"device"`
	Cloud    CloudMetrics    `json:"cloud"`
	Threat   ThreatMetrics   `json:"threat"`
}

// Report is one quarterly client-facing risk report. At most one exists per
// (tenant, quarter, year) unless an explicit force refresh replaces it.
type Report struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"    db:"tenant_id"`
	Quarter     int             `json:"quarter"      db:"quarter"`
	Year        int             `json:"year"         db:"year"`
	PeriodStart time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"   db:"period_end"`
	Metrics     SecurityMetrics `json:"metrics"      db:"metrics"`

	IdentityRisk int `json:"identity_risk" db:"identity_risk"`
	TrainingRisk int `json:"training_risk" db:"training_risk"`
	DeviceRisk   int `json:"device_risk"   db:"device_risk"`
	CloudRisk    int `json:"cloud_risk"    db:"cloud_risk"`
	ThreatRisk   int `json:"threat_risk"   db:"threat_risk"`
	OverallRisk  int `json:"overall_risk"  db:"overall_risk"`

	Summary         string `json:"summary"          db:"summary"`
	Recommendations string `json:"recommendations"  db:"recommendations"`
	AnalystComments string `json:"analyst_comments" db:"analyst_comments"`

	Status     Status     `json:"status"      db:"status"`
	CreatedBy  string     `json:"created_by"  db:"created_by"`
	ApprovedBy string     `json:"approved_by" db:"approved_by"`
	SentAt     *time.Time `json:"sent_at"     db:"sent_at"`
	CreatedAt  time.Time  `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"  db:"updated_at"`
}

// Recipient is one distribution target owned by a report. SentAt is set only
// after that recipient's individual send succeeded.
type Recipient struct {
	ID        uuid.UUID  `json:"id"         db:"id"`
	ReportID  uuid.UUID  `json:"report_id"  db:"report_id"`
	Email     string     `json:"email"      db:"email"`
	Name      string     `json:"name"       db:"name"`
	SentAt    *time.Time `json:"sent_at"    db:"sent_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Period returns the quarter's date range in UTC.
func Period(quarter, year int) (start, end time.Time) {
	start = time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 3, 0).Add(-time.Nanosecond)
	return start, end
}
