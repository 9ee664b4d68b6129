package report

import "math"

// Category weights for the overall risk score. Fixed constants, not
// configuration.
const (
	weightIdentity = 0.30
	weightTraining = 0.20
	weightDevice   = 0.20
	weightCloud    = 0.20
	weightThreat   = 0.10
)

// Risk band thresholds, shared by every surface that displays a risk level.
const (
	BandMediumFrom = 30
	BandHighFrom   = 70
)

// Band is a Low/Medium/High classification of a 0–100 risk score.
type Band string

const (
	BandLow    Band = "Low"
	BandMedium Band = "Medium"
	BandHigh   Band = "High"
)

// BandOf classifies a risk score.
func BandOf(score int) Band {
	switch {
	case score >= BandHighFrom:
		return BandHigh
	case score >= BandMediumFrom:
		return BandMedium
	default:
		return BandLow
	}
}

// RiskScores is the five-category decomposition plus the weighted overall.
type RiskScores struct {
	Identity int `json:"identity"`
	Training int `json:"training"`
	Device   int `json:"device"`
	Cloud    int `json:"cloud"`
	Threat   int `json:"threat"`
	Overall  int `json:"overall"`
}

// DecomposeRisk maps a frozen metrics payload to category risk scores and
// the weighted overall score. Pure and deterministic: the same metrics
// always produce the same scores.
func DecomposeRisk(m SecurityMetrics) RiskScores {
	s := RiskScores{
		Identity: identityRisk(m.Identity),
		// No training signal is integrated yet, so training risk is pinned
		// at the worst case rather than silently scoring 0.
		Training: 100,
		Device:   deviceRisk(m.Device),
		Cloud:    cloudRisk(m.Cloud),
		Threat:   threatRisk(m.Threat),
	}
	s.Overall = int(math.Round(
		weightIdentity*float64(s.Identity) +
			weightTraining*float64(s.Training) +
			weightDevice*float64(s.Device) +
			weightCloud*float64(s.Cloud) +
			weightThreat*float64(s.Threat),
	))
	return s
}

func identityRisk(m IdentityMetrics) int {
	risk := 0
	if m.UsersWithoutMFA > 0 {
		risk += 25
	}
	if !m.PhishResistantMFA {
		risk += 20
	}
	if m.GlobalAdmins > 2 {
		risk += 15
	}
	if !m.RiskBasedSignOn {
		risk += 15
	}
	if !m.RoleBasedAccessControl {
		risk += 10
	}
	if !m.SingleSignOn {
		risk += 10
	}
	if !m.ManagedIdentityProtection {
		risk += 5
	}
	return capRisk(risk)
}

func deviceRisk(m DeviceMetrics) int {
	risk := 0
	if !m.DiskEncryption {
		risk += 25
	}
	if !m.EndpointDefense {
		risk += 25
	}
	if !m.Hardening {
		risk += 20
	}
	if !m.SoftwareCurrent {
		risk += 15
	}
	if !m.ManagedDetection {
		risk += 15
	}
	return capRisk(risk)
}

func cloudRisk(m CloudMetrics) int {
	risk := 0
	if !m.SaaSProtection {
		risk += 15
	}
	if !m.SensitivityLabels {
		risk += 5
	}
	if !m.BackupArchiving {
		risk += 10
	}
	if !m.DLP {
		risk += 10
	}
	if !m.AdvancedMailDefense {
		risk += 10
	}
	if !m.Firewall {
		risk += 10
	}
	if !m.DKIM {
		risk += 5
	}
	if !m.DMARC {
		risk += 10
	}
	if !m.ConditionalAccess {
		risk += 10
	}
	if !m.CompliancePolicies {
		risk += 10
	}
	if !m.BYODPolicy {
		risk += 5
	}
	return capRisk(risk)
}

// threatRisk is a step function over the total detected threat count.
func threatRisk(m ThreatMetrics) int {
	switch {
	case m.TotalThreats <= 0:
		return 0
	case m.TotalThreats <= 2:
		return 25
	case m.TotalThreats <= 5:
		return 50
	case m.TotalThreats <= 10:
		return 75
	default:
		return 100
	}
}

func capRisk(risk int) int {
	if risk > 100 {
		return 100
	}
	return risk
}
