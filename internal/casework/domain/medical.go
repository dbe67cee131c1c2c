package domain

import (
	"strings"
	"time"

	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// MedicalStatus is the beneficiary's clinical trajectory.
type MedicalStatus string

const (
	MedicalStatusEnTratamiento MedicalStatus = "EN_TRATAMIENTO"
	MedicalStatusVigilancia    MedicalStatus = "VIGILANCIA"
	MedicalStatusPaliativo     MedicalStatus = "PALIATIVO"
	MedicalStatusAbandono      MedicalStatus = "ABANDONO"
	MedicalStatusFallecido     MedicalStatus = "FALLECIDO"
)

// Valid reports whether s is a known medical status.
func (s MedicalStatus) Valid() bool {
	_, ok := medicalPredecessors[s]
	return ok
}

// Terminal reports whether no further medical transition is allowed.
func (s MedicalStatus) Terminal() bool {
	return s == MedicalStatusFallecido
}

// medicalPredecessors lists, for every state, the states it may be entered from.
// EN_TRATAMIENTO is also the initial state set at acceptance.
var medicalPredecessors = map[MedicalStatus][]MedicalStatus{
	MedicalStatusEnTratamiento: {MedicalStatusVigilancia, MedicalStatusAbandono},
	MedicalStatusVigilancia:    {MedicalStatusEnTratamiento},
	MedicalStatusPaliativo:     {MedicalStatusEnTratamiento, MedicalStatusVigilancia},
	MedicalStatusAbandono:      {MedicalStatusEnTratamiento, MedicalStatusVigilancia, MedicalStatusPaliativo},
	MedicalStatusFallecido:     {MedicalStatusEnTratamiento, MedicalStatusVigilancia, MedicalStatusPaliativo, MedicalStatusAbandono},
}

// CanTransitionMedical reports whether from -> to is an allowed edge.
func CanTransitionMedical(from, to MedicalStatus) bool {
	for _, p := range medicalPredecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}

// MedicalDetails holds the companion fields of the current medical state.
// Only the fields belonging to the current state are ever set.
type MedicalDetails struct {
	TreatmentPhase       *string    `json:"treatment_phase,omitempty"`
	ProtocolWeek         *int       `json:"protocol_week,omitempty"`
	SurveillanceStart    *time.Time `json:"surveillance_start,omitempty"`
	SurveillanceMonths   *int       `json:"surveillance_months,omitempty"`
	AbandonmentReason    *string    `json:"abandonment_reason,omitempty"`
	GuardianshipNotified *bool      `json:"guardianship_notified,omitempty"`
	DateOfDeath          *time.Time `json:"date_of_death,omitempty"`
	CauseOfDeath         *string    `json:"cause_of_death,omitempty"`
}

// check validates d for state. A non-zero now also rejects dates in the future.
func (d MedicalDetails) check(state MedicalStatus, now time.Time) fieldErrors {
	fe := fieldErrors{}
	switch state {
	case MedicalStatusEnTratamiento:
		fe.require("treatment_phase", !blankPtr(d.TreatmentPhase))
		if d.ProtocolWeek != nil {
			fe.between("protocol_week", *d.ProtocolWeek, 0, MaxProtocolWeek)
		}
	case MedicalStatusVigilancia:
		fe.require("surveillance_start", d.SurveillanceStart != nil && !d.SurveillanceStart.IsZero())
		if d.SurveillanceMonths != nil {
			fe.between("surveillance_months", *d.SurveillanceMonths, 1, MaxSurveillanceMonths)
		}
	case MedicalStatusAbandono:
		fe.require("abandonment_reason", !blankPtr(d.AbandonmentReason))
		fe.require("guardianship_notified", d.GuardianshipNotified != nil)
	case MedicalStatusFallecido:
		fe.require("date_of_death", d.DateOfDeath != nil && !d.DateOfDeath.IsZero())
		fe.require("cause_of_death", !blankPtr(d.CauseOfDeath))
		if d.DateOfDeath != nil && !now.IsZero() && types.DateOnly(*d.DateOfDeath).After(types.DateOnly(now)) {
			fe.add("date_of_death", "must not be in the future")
		}
	}
	return fe
}

// forState keeps only the companion fields that belong to state.
func (d MedicalDetails) forState(state MedicalStatus) MedicalDetails {
	var out MedicalDetails
	switch state {
	case MedicalStatusEnTratamiento:
		out.TreatmentPhase = trimmed(d.TreatmentPhase)
		out.ProtocolWeek = d.ProtocolWeek
	case MedicalStatusVigilancia:
		out.SurveillanceStart = dateOnly(d.SurveillanceStart)
		out.SurveillanceMonths = d.SurveillanceMonths
	case MedicalStatusAbandono:
		out.AbandonmentReason = trimmed(d.AbandonmentReason)
		out.GuardianshipNotified = d.GuardianshipNotified
	case MedicalStatusFallecido:
		out.DateOfDeath = dateOnly(d.DateOfDeath)
		out.CauseOfDeath = trimmed(d.CauseOfDeath)
	}
	return out
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := types.DateOnly(*t)
	return &v
}

// MedicalStatusChange is one row of a beneficiary's clinical history.
// From is nil for the initial state recorded at acceptance.
type MedicalStatusChange struct {
	ID            types.ID       `json:"id"`
	BeneficiaryID types.ID       `json:"beneficiary_id"`
	From          *MedicalStatus `json:"from,omitempty"`
	To            MedicalStatus  `json:"to"`
	Payload       MedicalDetails `json:"payload"`
	ActorID       types.ID       `json:"actor_id"`
	ChangedAt     time.Time      `json:"changed_at"`
}

// InitialMedicalChange records the EN_TRATAMIENTO state set at acceptance.
func InitialMedicalChange(b *Beneficiary) *MedicalStatusChange {
	return &MedicalStatusChange{
		ID:            types.NewID(),
		BeneficiaryID: b.ID,
		To:            b.MedicalStatus,
		Payload:       b.Medical,
		ActorID:       b.AcceptedBy,
		ChangedAt:     b.AcceptedAt,
	}
}

// TransitionMedical applies a medical state change and returns its history row.
// Checks run in order: terminal state, allowed edge, required fields.
func (b *Beneficiary) TransitionMedical(to MedicalStatus, payload MedicalDetails, actorID types.ID, now time.Time) (*MedicalStatusChange, error) {
	from := b.MedicalStatus
	if from.Terminal() {
		return nil, errors.TerminalState("beneficiary", string(from))
	}
	if !to.Valid() {
		return nil, errors.Validation("invalid medical status", map[string]string{"status": "unknown value " + string(to)})
	}
	if !CanTransitionMedical(from, to) {
		return nil, errors.InvalidTransition("beneficiary", string(from), string(to))
	}
	if err := payload.check(to, now).err("missing fields for " + string(to)); err != nil {
		return nil, err
	}

	b.MedicalStatus = to
	b.Medical = payload.forState(to)
	if to == MedicalStatusFallecido {
		b.AdminStatus = AdminStatusFallecido
	}
	b.UpdatedAt = now

	return &MedicalStatusChange{
		ID:            types.NewID(),
		BeneficiaryID: b.ID,
		From:          &from,
		To:            to,
		Payload:       b.Medical,
		ActorID:       actorID,
		ChangedAt:     now,
	}, nil
}
