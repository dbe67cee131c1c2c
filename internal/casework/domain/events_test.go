package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowEventPayloads(t *testing.T) {
	c := newTestCase(t)
	require.NoError(t, c.RecordSocialEvaluation(now))
	require.NoError(t, c.RecordPsychologicalEvaluation(now))
	require.NoError(t, c.Accept(now))
	b, err := NewBeneficiary(c, "B007", "admin-1", "sw-1", now)
	require.NoError(t, err)

	accepted := CaseAcceptedEvent(c, b)
	assert.Equal(t, EventCaseAccepted, accepted.Type)
	assert.Equal(t, "B007", accepted.Subject)
	notice := accepted.Data.(Notice)
	assert.Equal(t, "+59171234567", notice.Recipient.Phone)
	assert.Equal(t, "Ana Quispe", notice.ChildName)
	assert.Equal(t, "C001", notice.CaseCode)
	assert.Equal(t, "EN_TRATAMIENTO", notice.Summary["estado_medico"])

	r, err := NewAidRequest(b, medicamentos(300), "SOL-007-01", "sw-1", now)
	require.NoError(t, err)
	require.NoError(t, r.Review("asis-1", ReviewRecepcionar, floatPtr(280), "", now))
	reviewed := AidRequestReviewedEvent(c, b, r).Data.(Notice)
	assert.Equal(t, "RECEPCIONADO", reviewed.State)
	assert.Equal(t, "280.00", reviewed.Summary["approved_amount"])

	require.NoError(t, r.Deliver(delivery(275), "asis-1", now))
	delivered := AidRequestDeliveredEvent(c, b, r).Data.(Notice)
	assert.Equal(t, "275.00", delivered.Summary["actual_cost"])
	assert.Equal(t, "SOL-007-01", delivered.RequestCode)

	change, err := b.TransitionMedical(MedicalStatusPaliativo, MedicalDetails{}, "asis-1", now)
	require.NoError(t, err)
	medical := MedicalStatusChangedEvent(c, b, change).Data.(Notice)
	assert.Equal(t, "PALIATIVO", medical.State)
	assert.Equal(t, "EN_TRATAMIENTO", medical.Summary["from"])
}
