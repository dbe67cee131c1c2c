package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

var now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func anaIntake() CaseIntake {
	return CaseIntake{
		Child: Child{
			FirstName: "Ana",
			LastName:  "Quispe",
			BirthDate: now.AddDate(-9, -2, 0),
		},
		Diagnosis: "Leucemia linfoblástica aguda",
		Guardian: Guardian{
			Name:         "María Quispe",
			Relationship: "madre",
			Contact:      types.ContactInfo{Phone: "71234567"},
			Address:      types.Address{Street: "Av. Busch 123", City: "Cochabamba"},
		},
	}
}

func newTestCase(t *testing.T) *CaseRecord {
	t.Helper()
	c, err := NewCase(anaIntake(), "C001", "sw-1", now, "BO")
	require.NoError(t, err)
	return c
}

func TestNewCase(t *testing.T) {
	c := newTestCase(t)

	assert.Equal(t, CaseStatusRegistroInicial, c.Status)
	assert.Equal(t, "C001", c.Code)
	assert.Equal(t, "+59171234567", c.Guardian.Contact.Phone)
	assert.Equal(t, 9, c.AgeAt(now))
	assert.Equal(t, 1, c.Version)
	assert.False(t, c.ID.IsZero())
}

func TestNewCaseValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CaseIntake)
		field  string
	}{
		{"missing guardian name", func(in *CaseIntake) { in.Guardian.Name = " " }, "guardian.name"},
		{"missing guardian phone", func(in *CaseIntake) { in.Guardian.Contact.Phone = "" }, "guardian.contact.phone"},
		{"invalid phone", func(in *CaseIntake) { in.Guardian.Contact.Phone = "12" }, "guardian.contact.phone"},
		{"future birth date", func(in *CaseIntake) { in.Child.BirthDate = now.AddDate(0, 0, 3) }, "child.birth_date"},
		{"too old", func(in *CaseIntake) { in.Child.BirthDate = now.AddDate(-19, 0, -1) }, "child.birth_date"},
		{"missing birth date", func(in *CaseIntake) { in.Child.BirthDate = time.Time{} }, "child.birth_date"},
		{"missing diagnosis", func(in *CaseIntake) { in.Diagnosis = "" }, "diagnosis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := anaIntake()
			tt.mutate(&in)

			_, err := NewCase(in, "C001", "sw-1", now, "BO")
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrValidation)

			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Contains(t, appErr.Details, tt.field)
		})
	}
}

func TestNewCaseAgeBounds(t *testing.T) {
	in := anaIntake()
	in.Child.BirthDate = now.AddDate(-18, 0, 0)
	_, err := NewCase(in, "C001", "sw-1", now, "BO")
	assert.NoError(t, err, "exactly 18 is accepted")

	in.Child.BirthDate = now
	_, err = NewCase(in, "C001", "sw-1", now, "BO")
	assert.NoError(t, err, "newborn is accepted")
}

func TestNewCaseListsEveryMissingField(t *testing.T) {
	_, err := NewCase(CaseIntake{}, "C001", "sw-1", now, "BO")
	appErr, ok := errors.As(err)
	require.True(t, ok)
	for _, f := range []string{"child.first_name", "child.last_name", "child.birth_date", "diagnosis", "guardian.name", "guardian.contact.phone"} {
		assert.Equal(t, "required", appErr.Details[f], f)
	}
}

func TestEvaluationsInEitherOrder(t *testing.T) {
	socialFirst := newTestCase(t)
	require.NoError(t, socialFirst.RecordSocialEvaluation(now))
	assert.Equal(t, CaseStatusPendienteEvalPsicologica, socialFirst.Status)
	require.NoError(t, socialFirst.RecordPsychologicalEvaluation(now))
	assert.Equal(t, CaseStatusPendienteDecision, socialFirst.Status)

	psychFirst := newTestCase(t)
	require.NoError(t, psychFirst.RecordPsychologicalEvaluation(now))
	assert.Equal(t, CaseStatusPendienteEvalSocial, psychFirst.Status)
	require.NoError(t, psychFirst.RecordSocialEvaluation(now))
	assert.Equal(t, CaseStatusPendienteDecision, psychFirst.Status)
}

func TestSecondEvaluationConflicts(t *testing.T) {
	c := newTestCase(t)
	require.NoError(t, c.RecordSocialEvaluation(now))
	assert.ErrorIs(t, c.RecordSocialEvaluation(now), errors.ErrConflict)

	require.NoError(t, c.RecordPsychologicalEvaluation(now))
	assert.ErrorIs(t, c.RecordPsychologicalEvaluation(now), errors.ErrConflict)
	assert.ErrorIs(t, c.RecordSocialEvaluation(now), errors.ErrConflict)
}

func TestDecisionRequiresBothEvaluations(t *testing.T) {
	c := newTestCase(t)
	assert.ErrorIs(t, c.Accept(now), errors.ErrInvalidTransition)

	require.NoError(t, c.RecordSocialEvaluation(now))
	assert.ErrorIs(t, c.Accept(now), errors.ErrInvalidTransition)
	assert.ErrorIs(t, c.Reject("admin-1", "", now), errors.ErrInvalidTransition)

	require.NoError(t, c.RecordPsychologicalEvaluation(now))
	require.NoError(t, c.Accept(now))
	assert.Equal(t, CaseStatusBeneficiarioActivo, c.Status)
	assert.ErrorIs(t, c.Accept(now), errors.ErrConflict)
	assert.ErrorIs(t, c.Reject("admin-1", "late", now), errors.ErrConflict)
}

func TestRejectIsTerminal(t *testing.T) {
	c := newTestCase(t)
	require.NoError(t, c.RecordSocialEvaluation(now))
	require.NoError(t, c.RecordPsychologicalEvaluation(now))

	require.NoError(t, c.Reject("admin-1", "  fuera de cobertura ", now))
	assert.Equal(t, CaseStatusRechazado, c.Status)
	require.NotNil(t, c.RejectionReason)
	assert.Equal(t, "fuera de cobertura", *c.RejectionReason)
	require.NotNil(t, c.RejectedBy)
	assert.Equal(t, types.ID("admin-1"), *c.RejectedBy)

	assert.ErrorIs(t, c.Accept(now), errors.ErrTerminalState)
	assert.ErrorIs(t, c.Reject("admin-1", "", now), errors.ErrTerminalState)
	assert.ErrorIs(t, c.RecordSocialEvaluation(now), errors.ErrTerminalState)
}

func TestSocialEvaluationScoring(t *testing.T) {
	eval, err := NewSocialEvaluation("case-1", SocialScores{
		IncomeBracket: 2, HouseholdSize: 5,
		Housing: 10, Employment: 15, HealthAccess: 10, MonthlyMedicalExpense: 150,
	}, "", "sw-1", now)
	require.NoError(t, err)
	assert.Equal(t, 50, eval.TotalScore)
	assert.Equal(t, VulnerabilityMedio, eval.Level)
}

func TestSocialScoresValidate(t *testing.T) {
	err := SocialScores{IncomeBracket: 0, HouseholdSize: 0, Housing: 26, Employment: -1, HealthAccess: 3, MonthlyMedicalExpense: -5}.Validate()
	appErr, ok := errors.As(err)
	require.True(t, ok)
	for _, f := range []string{"income_bracket", "household_size", "housing", "employment", "monthly_medical_expense"} {
		assert.Contains(t, appErr.Details, f)
	}
	assert.NotContains(t, appErr.Details, "health_access")
}

func TestPsychologicalEvaluationRequiresReport(t *testing.T) {
	_, err := NewPsychologicalEvaluation("case-1", PsychologicalReport{}, "psy-1", now)
	assert.ErrorIs(t, err, errors.ErrValidation)

	eval, err := NewPsychologicalEvaluation("case-1", PsychologicalReport{ReportFileID: "files/report.pdf"}, "psy-1", now)
	require.NoError(t, err)
	assert.Equal(t, "files/report.pdf", eval.ReportFileID)
}
