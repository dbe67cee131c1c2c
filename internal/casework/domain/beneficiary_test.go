package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncoayuda/casework/internal/shared/errors"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int { return &i }
func boolPtr(b bool) *bool { return &b }
func timePtr(t time.Time) *time.Time { return &t }
func floatPtr(f float64) *float64 { return &f }

func newTestBeneficiary(t *testing.T) *Beneficiary {
	t.Helper()
	c := newTestCase(t)
	require.NoError(t, c.RecordSocialEvaluation(now))
	require.NoError(t, c.RecordPsychologicalEvaluation(now))
	require.NoError(t, c.Accept(now))

	b, err := NewBeneficiary(c, "B001", "admin-1", "sw-1", now)
	require.NoError(t, err)
	return b
}

func TestNewBeneficiary(t *testing.T) {
	b := newTestBeneficiary(t)
	assert.Equal(t, AdminStatusActivo, b.AdminStatus)
	assert.Equal(t, MedicalStatusEnTratamiento, b.MedicalStatus)
	assert.Equal(t, "B001", b.Code)

	initial := InitialMedicalChange(b)
	assert.Nil(t, initial.From)
	assert.Equal(t, MedicalStatusEnTratamiento, initial.To)
}

func TestNewBeneficiaryRequiresAcceptedCase(t *testing.T) {
	c := newTestCase(t)
	_, err := NewBeneficiary(c, "B001", "admin-1", "sw-1", now)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestMedicalEdges(t *testing.T) {
	allowed := map[MedicalStatus][]MedicalStatus{
		MedicalStatusEnTratamiento: {MedicalStatusVigilancia, MedicalStatusPaliativo, MedicalStatusAbandono, MedicalStatusFallecido},
		MedicalStatusVigilancia:    {MedicalStatusEnTratamiento, MedicalStatusPaliativo, MedicalStatusAbandono, MedicalStatusFallecido},
		MedicalStatusPaliativo:     {MedicalStatusAbandono, MedicalStatusFallecido},
		MedicalStatusAbandono:      {MedicalStatusEnTratamiento, MedicalStatusFallecido},
		MedicalStatusFallecido:     {},
	}
	all := []MedicalStatus{MedicalStatusEnTratamiento, MedicalStatusVigilancia, MedicalStatusPaliativo, MedicalStatusAbandono, MedicalStatusFallecido}

	for from, tos := range allowed {
		for _, to := range all {
			assert.Equal(t, contains(tos, to), CanTransitionMedical(from, to), "%s -> %s", from, to)
		}
	}
}

func contains(list []MedicalStatus, s MedicalStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestTransitionMedicalRequiredFields(t *testing.T) {
	tests := []struct {
		to      MedicalStatus
		payload MedicalDetails
		missing []string
	}{
		{MedicalStatusVigilancia, MedicalDetails{}, []string{"surveillance_start"}},
		{MedicalStatusAbandono, MedicalDetails{}, []string{"abandonment_reason", "guardianship_notified"}},
		{MedicalStatusAbandono, MedicalDetails{AbandonmentReason: strPtr("sin contacto")}, []string{"guardianship_notified"}},
		{MedicalStatusFallecido, MedicalDetails{DateOfDeath: timePtr(now)}, []string{"cause_of_death"}},
		{MedicalStatusFallecido, MedicalDetails{}, []string{"cause_of_death", "date_of_death"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			b := newTestBeneficiary(t)
			_, err := b.TransitionMedical(tt.to, tt.payload, "asis-1", now)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrValidation)

			appErr, _ := errors.As(err)
			assert.Len(t, appErr.Details, len(tt.missing))
			for _, f := range tt.missing {
				assert.Equal(t, "required", appErr.Details[f])
			}
			assert.Equal(t, MedicalStatusEnTratamiento, b.MedicalStatus, "state untouched on failure")
		})
	}
}

func TestTransitionMedicalChecksEdgeBeforeFields(t *testing.T) {
	b := newTestBeneficiary(t)
	_, err := b.TransitionMedical(MedicalStatusEnTratamiento, MedicalDetails{}, "asis-1", now)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = b.TransitionMedical(MedicalStatus("CURADO"), MedicalDetails{}, "asis-1", now)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestFallecidoIsTerminal(t *testing.T) {
	b := newTestBeneficiary(t)

	_, err := b.TransitionMedical(MedicalStatusFallecido, MedicalDetails{DateOfDeath: timePtr(now)}, "asis-1", now)
	require.ErrorIs(t, err, errors.ErrValidation)

	change, err := b.TransitionMedical(MedicalStatusFallecido, MedicalDetails{
		DateOfDeath:    timePtr(now),
		CauseOfDeath:   strPtr("complicaciones"),
		TreatmentPhase: strPtr("stale"),
	}, "asis-1", now)
	require.NoError(t, err)
	assert.Equal(t, MedicalStatusFallecido, b.MedicalStatus)
	assert.Equal(t, AdminStatusFallecido, b.AdminStatus)
	assert.Nil(t, b.Medical.TreatmentPhase, "fields of other states are dropped")
	require.NotNil(t, change.From)
	assert.Equal(t, MedicalStatusEnTratamiento, *change.From)

	for _, to := range []MedicalStatus{MedicalStatusEnTratamiento, MedicalStatusVigilancia, MedicalStatusFallecido} {
		_, err = b.TransitionMedical(to, MedicalDetails{}, "asis-1", now)
		assert.ErrorIs(t, err, errors.ErrTerminalState, to)
	}
	assert.ErrorIs(t, b.Reassign("sw-2", now), errors.ErrTerminalState)
	assert.ErrorIs(t, b.ChangeAdminStatus(AdminStatusActivo, now), errors.ErrTerminalState)
	assert.ErrorIs(t, b.CanReceiveAid(), errors.ErrTerminalState)
}

func TestFallecidoRejectsFutureDate(t *testing.T) {
	b := newTestBeneficiary(t)
	_, err := b.TransitionMedical(MedicalStatusFallecido, MedicalDetails{
		DateOfDeath:  timePtr(now.AddDate(0, 0, 2)),
		CauseOfDeath: strPtr("x"),
	}, "asis-1", now)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "must not be in the future", appErr.Details["date_of_death"])
}

func TestAbandonoCanResumeTreatment(t *testing.T) {
	b := newTestBeneficiary(t)
	_, err := b.TransitionMedical(MedicalStatusAbandono, MedicalDetails{
		AbandonmentReason:    strPtr("familia sin contacto"),
		GuardianshipNotified: boolPtr(false),
	}, "asis-1", now)
	require.NoError(t, err)
	require.NotNil(t, b.Medical.GuardianshipNotified)
	assert.False(t, *b.Medical.GuardianshipNotified)

	_, err = b.TransitionMedical(MedicalStatusEnTratamiento, MedicalDetails{TreatmentPhase: strPtr("consolidación"), ProtocolWeek: intPtr(12)}, "asis-1", now)
	require.NoError(t, err)
	assert.Nil(t, b.Medical.AbandonmentReason)
	assert.Equal(t, 12, *b.Medical.ProtocolWeek)
}

func TestPaliativoHasNoReturnEdge(t *testing.T) {
	b := newTestBeneficiary(t)
	_, err := b.TransitionMedical(MedicalStatusPaliativo, MedicalDetails{}, "asis-1", now)
	require.NoError(t, err)

	_, err = b.TransitionMedical(MedicalStatusEnTratamiento, MedicalDetails{TreatmentPhase: strPtr("x")}, "asis-1", now)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	_, err = b.TransitionMedical(MedicalStatusVigilancia, MedicalDetails{SurveillanceStart: timePtr(now)}, "asis-1", now)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
}

func TestUpdateTreatmentProgress(t *testing.T) {
	b := newTestBeneficiary(t)
	require.NoError(t, b.UpdateTreatmentProgress("inducción", intPtr(3), now))
	assert.Equal(t, "inducción", *b.Medical.TreatmentPhase)

	assert.ErrorIs(t, b.UpdateTreatmentProgress("", nil, now), errors.ErrValidation)

	_, err := b.TransitionMedical(MedicalStatusVigilancia, MedicalDetails{SurveillanceStart: timePtr(now)}, "asis-1", now)
	require.NoError(t, err)
	assert.ErrorIs(t, b.UpdateTreatmentProgress("x", nil, now), errors.ErrInvalidTransition)
}

func TestAdminStatusAndReassign(t *testing.T) {
	b := newTestBeneficiary(t)

	assert.ErrorIs(t, b.ChangeAdminStatus(AdminStatusActivo, now), errors.ErrConflict)
	assert.ErrorIs(t, b.ChangeAdminStatus(AdminStatusFallecido, now), errors.ErrInvalidTransition)
	assert.ErrorIs(t, b.ChangeAdminStatus(AdminStatus("X"), now), errors.ErrValidation)
	require.NoError(t, b.ChangeAdminStatus(AdminStatusInactivo, now))
	assert.ErrorIs(t, b.CanReceiveAid(), errors.ErrInvalidTransition)

	assert.ErrorIs(t, b.Reassign("sw-1", now), errors.ErrConflict)
	assert.ErrorIs(t, b.Reassign("", now), errors.ErrValidation)
	require.NoError(t, b.Reassign("sw-2", now))
	assert.Equal(t, "sw-2", b.OwnerID.String())
}

func TestBeneficiaryJSONRoundTrip(t *testing.T) {
	b := newTestBeneficiary(t)
	_, err := b.TransitionMedical(MedicalStatusAbandono, MedicalDetails{
		AbandonmentReason:    strPtr("mudanza"),
		GuardianshipNotified: boolPtr(false),
	}, "asis-1", now)
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)

	var back Beneficiary
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, b.AdminStatus, back.AdminStatus)
	assert.Equal(t, b.MedicalStatus, back.MedicalStatus)
	require.NotNil(t, back.Medical.GuardianshipNotified, "explicit false survives")
	assert.False(t, *back.Medical.GuardianshipNotified)
	assert.Nil(t, back.Medical.TreatmentPhase)
	assert.Nil(t, back.Medical.DateOfDeath)
}
