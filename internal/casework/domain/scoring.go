package domain

import "math"

// VulnerabilityLevel classifies a household for the acceptance decision.
type VulnerabilityLevel string

const (
	VulnerabilityBajo  VulnerabilityLevel = "BAJO"
	VulnerabilityMedio VulnerabilityLevel = "MEDIO"
	VulnerabilityAlto  VulnerabilityLevel = "ALTO"
)

// Scoring thresholds and bounds.
const (
	// MaxSubScore bounds housing, employment and health-access sub-scores.
	MaxSubScore = 25

	thresholdMedio = 40
	thresholdAlto  = 60
)

// Score combines the evaluator's sub-scores with the monthly medical expense.
//
//	total = housing + employment + healthAccess + floor(expense / 10)
//
// Inputs are assumed valid; see SocialScores.Validate.
func Score(housing, employment, healthAccess int, monthlyMedicalExpense float64) (int, VulnerabilityLevel) {
	total := housing + employment + healthAccess + int(math.Floor(monthlyMedicalExpense/10))
	return total, LevelFor(total)
}

// LevelFor maps a total score to its band.
func LevelFor(total int) VulnerabilityLevel {
	switch {
	case total >= thresholdAlto:
		return VulnerabilityAlto
	case total >= thresholdMedio:
		return VulnerabilityMedio
	default:
		return VulnerabilityBajo
	}
}
