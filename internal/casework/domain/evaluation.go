package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/oncoayuda/casework/internal/shared/types"
)

// Income brackets run from 1 (lowest) to MaxIncomeBracket.
const MaxIncomeBracket = 5

// SocialScores are the raw intake figures gathered by the social worker.
// IncomeBracket and HouseholdSize are kept as evidence; only the sub-scores
// and the expense feed Score.
type SocialScores struct {
	IncomeBracket         int     `json:"income_bracket"`
	HouseholdSize         int     `json:"household_size"`
	Housing               int     `json:"housing"`
	Employment            int     `json:"employment"`
	HealthAccess          int     `json:"health_access"`
	MonthlyMedicalExpense float64 `json:"monthly_medical_expense"`
}

// Validate bounds every figure.
func (s SocialScores) Validate() error {
	fe := fieldErrors{}
	if s.IncomeBracket < 1 || s.IncomeBracket > MaxIncomeBracket {
		fe.add("income_bracket", fmt.Sprintf("must be between 1 and %d", MaxIncomeBracket))
	}
	fe.between("household_size", s.HouseholdSize, 1, MaxHouseholdSize)
	for field, v := range map[string]int{"housing": s.Housing, "employment": s.Employment, "health_access": s.HealthAccess} {
		if v < 0 || v > MaxSubScore {
			fe.add(field, fmt.Sprintf("must be between 0 and %d", MaxSubScore))
		}
	}
	fe.amount("monthly_medical_expense", s.MonthlyMedicalExpense, false)
	return fe.err("invalid social evaluation")
}

// SocialEvaluation is immutable evidence for the acceptance decision.
type SocialEvaluation struct {
	ID           types.ID           `json:"id"`
	CaseID       types.ID           `json:"case_id"`
	Scores       SocialScores       `json:"scores"`
	TotalScore   int                `json:"total_score"`
	Level        VulnerabilityLevel `json:"vulnerability_level"`
	Observations string             `json:"observations,omitempty"`
	EvaluatorID  types.ID           `json:"evaluator_id"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewSocialEvaluation validates the scores and runs the scoring engine.
func NewSocialEvaluation(caseID types.ID, scores SocialScores, observations string, evaluatorID types.ID, now time.Time) (*SocialEvaluation, error) {
	if err := scores.Validate(); err != nil {
		return nil, err
	}

	total, level := Score(scores.Housing, scores.Employment, scores.HealthAccess, scores.MonthlyMedicalExpense)
	return &SocialEvaluation{
		ID:           types.NewID(),
		CaseID:       caseID,
		Scores:       scores,
		TotalScore:   total,
		Level:        level,
		Observations: strings.TrimSpace(observations),
		EvaluatorID:  evaluatorID,
		CreatedAt:    now,
	}, nil
}

// PsychologicalEvaluation references the psychologist's uploaded report.
type PsychologicalEvaluation struct {
	ID           types.ID  `json:"id"`
	CaseID       types.ID  `json:"case_id"`
	ReportFileID string    `json:"report_file_id"`
	Observations string    `json:"observations,omitempty"`
	EvaluatorID  types.ID  `json:"evaluator_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// PsychologicalReport is the evaluator's input.
type PsychologicalReport struct {
	ReportFileID string `json:"report_file_id"`
	Observations string `json:"observations"`
}

func NewPsychologicalEvaluation(caseID types.ID, report PsychologicalReport, evaluatorID types.ID, now time.Time) (*PsychologicalEvaluation, error) {
	fe := fieldErrors{}
	fe.require("report_file_id", !blank(report.ReportFileID))
	if err := fe.err("invalid psychological evaluation"); err != nil {
		return nil, err
	}

	return &PsychologicalEvaluation{
		ID:           types.NewID(),
		CaseID:       caseID,
		ReportFileID: strings.TrimSpace(report.ReportFileID),
		Observations: strings.TrimSpace(report.Observations),
		EvaluatorID:  evaluatorID,
		CreatedAt:    now,
	}, nil
}
