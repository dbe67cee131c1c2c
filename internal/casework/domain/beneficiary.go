package domain

import (
	"strings"
	"time"

	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// AdminStatus is the administrative standing of a beneficiary.
type AdminStatus string

const (
	AdminStatusActivo     AdminStatus = "ACTIVO"
	AdminStatusInactivo   AdminStatus = "INACTIVO"
	AdminStatusRecuperado AdminStatus = "RECUPERADO"
	AdminStatusFallecido  AdminStatus = "FALLECIDO"
)

// Valid reports whether s is a known administrative status.
func (s AdminStatus) Valid() bool {
	switch s {
	case AdminStatusActivo, AdminStatusInactivo, AdminStatusRecuperado, AdminStatusFallecido:
		return true
	}
	return false
}

// Beneficiary is an accepted case receiving ongoing support.
type Beneficiary struct {
	ID            types.ID       `json:"id"`
	CaseID        types.ID       `json:"case_id"`
	Code          string         `json:"code"`
	AdminStatus   AdminStatus    `json:"estado_beneficiario"`
	MedicalStatus MedicalStatus  `json:"estado_medico"`
	Medical       MedicalDetails `json:"medical"`

	OwnerID    types.ID  `json:"owner_id"`
	AcceptedBy types.ID  `json:"accepted_by"`
	AcceptedAt time.Time `json:"accepted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// NewBeneficiary converts an accepted case. The case must already have been
// moved to BENEFICIARIO_ACTIVO by CaseRecord.Accept.
func NewBeneficiary(c *CaseRecord, code string, adminID, ownerID types.ID, now time.Time) (*Beneficiary, error) {
	if c.Status != CaseStatusBeneficiarioActivo {
		return nil, errors.InvalidTransition("case", string(c.Status), string(CaseStatusBeneficiarioActivo))
	}
	fe := fieldErrors{}
	fe.require("assignee_id", !ownerID.IsZero())
	if err := fe.err("invalid decision"); err != nil {
		return nil, err
	}

	return &Beneficiary{
		ID:            types.NewID(),
		CaseID:        c.ID,
		Code:          code,
		AdminStatus:   AdminStatusActivo,
		MedicalStatus: MedicalStatusEnTratamiento,
		OwnerID:       ownerID,
		AcceptedBy:    adminID,
		AcceptedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}, nil
}

// IsDeceased reports whether day-to-day activity on the beneficiary has ended.
func (b *Beneficiary) IsDeceased() bool {
	return b.AdminStatus == AdminStatusFallecido || b.MedicalStatus == MedicalStatusFallecido
}

// CanReceiveAid guards aid request submission.
func (b *Beneficiary) CanReceiveAid() error {
	switch {
	case b.IsDeceased():
		return errors.TerminalState("beneficiary", string(AdminStatusFallecido))
	case b.AdminStatus != AdminStatusActivo:
		return errors.InvalidTransition("beneficiary", string(b.AdminStatus), "aid request").
			WithDetail("reason", "beneficiary must be ACTIVO")
	}
	return nil
}

// Reassign hands the beneficiary to another caseworker.
func (b *Beneficiary) Reassign(newOwner types.ID, now time.Time) error {
	if b.IsDeceased() {
		return errors.TerminalState("beneficiary", string(AdminStatusFallecido))
	}
	fe := fieldErrors{}
	fe.require("owner_id", !newOwner.IsZero())
	if err := fe.err("invalid reassignment"); err != nil {
		return err
	}
	if newOwner == b.OwnerID {
		return errors.Conflict("beneficiary " + b.Code + " is already assigned to " + newOwner.String())
	}
	b.OwnerID = newOwner
	b.UpdatedAt = now
	return nil
}

// ChangeAdminStatus moves between ACTIVO, INACTIVO and RECUPERADO.
// FALLECIDO is reached only through the medical machine.
func (b *Beneficiary) ChangeAdminStatus(to AdminStatus, now time.Time) error {
	if b.IsDeceased() {
		return errors.TerminalState("beneficiary", string(AdminStatusFallecido))
	}
	if !to.Valid() {
		return errors.Validation("invalid administrative status", map[string]string{"status": "unknown value " + string(to)})
	}
	if to == AdminStatusFallecido {
		return errors.InvalidTransition("beneficiary", string(b.AdminStatus), string(to)).
			WithDetail("reason", "record the death through the medical status")
	}
	if to == b.AdminStatus {
		return errors.Conflict("beneficiary " + b.Code + " is already " + string(to))
	}
	b.AdminStatus = to
	b.UpdatedAt = now
	return nil
}

// UpdateTreatmentProgress edits the treatment phase and protocol week while in treatment.
func (b *Beneficiary) UpdateTreatmentProgress(phase string, week *int, now time.Time) error {
	if b.MedicalStatus == MedicalStatusFallecido {
		return errors.TerminalState("beneficiary", string(b.MedicalStatus))
	}
	if b.MedicalStatus != MedicalStatusEnTratamiento {
		return errors.InvalidTransition("beneficiary", string(b.MedicalStatus), string(MedicalStatusEnTratamiento))
	}

	fe := fieldErrors{}
	fe.require("treatment_phase", !blank(phase))
	if week != nil {
		fe.between("protocol_week", *week, 0, MaxProtocolWeek)
	}
	if err := fe.err("invalid treatment progress"); err != nil {
		return err
	}

	phase = strings.TrimSpace(phase)
	b.Medical.TreatmentPhase = &phase
	b.Medical.ProtocolWeek = week
	b.UpdatedAt = now
	return nil
}
