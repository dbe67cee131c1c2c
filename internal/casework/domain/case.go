package domain

import (
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// CaseStatus is the intake state of a case record.
type CaseStatus string

const (
	CaseStatusRegistroInicial          CaseStatus = "REGISTRO_INICIAL"
	CaseStatusPendienteEvalSocial      CaseStatus = "PENDIENTE_EVAL_SOCIAL"
	CaseStatusPendienteEvalPsicologica CaseStatus = "PENDIENTE_EVAL_PSICOLOGICA"
	CaseStatusPendienteDecision        CaseStatus = "PENDIENTE_DECISION"
	CaseStatusBeneficiarioActivo       CaseStatus = "BENEFICIARIO_ACTIVO"
	CaseStatusRechazado                CaseStatus = "RECHAZADO"
)

// Valid reports whether s is a known case status.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusRegistroInicial, CaseStatusPendienteEvalSocial, CaseStatusPendienteEvalPsicologica,
		CaseStatusPendienteDecision, CaseStatusBeneficiarioActivo, CaseStatusRechazado:
		return true
	}
	return false
}

// HasSocialEvaluation reports whether a case in status s already carries a social evaluation.
func (s CaseStatus) HasSocialEvaluation() bool {
	return s == CaseStatusPendienteEvalPsicologica || s == CaseStatusPendienteDecision || s == CaseStatusBeneficiarioActivo
}

// HasPsychologicalEvaluation reports whether a case in status s already carries a psychological evaluation.
func (s CaseStatus) HasPsychologicalEvaluation() bool {
	return s == CaseStatusPendienteEvalSocial || s == CaseStatusPendienteDecision || s == CaseStatusBeneficiarioActivo
}

// Age bounds accepted at intake, inclusive.
const (
	MinChildAge = 0
	MaxChildAge = 18
)

// Child identifies the patient.
type Child struct {
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	BirthDate  time.Time `json:"birth_date"`
	NationalID string    `json:"national_id,omitempty"`
}

// FullName joins first and last name.
func (c Child) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Guardian is the adult responsible for the child and the recipient of notifications.
type Guardian struct {
	Name         string            `json:"name"`
	Relationship string            `json:"relationship,omitempty"`
	NationalID   string            `json:"national_id,omitempty"`
	Contact      types.ContactInfo `json:"contact"`
	Address      types.Address     `json:"address"`
}

// CaseIntake is the registration input.
type CaseIntake struct {
	Child     Child    `json:"child"`
	Diagnosis string   `json:"diagnosis"`
	Guardian  Guardian `json:"guardian"`
}

// Validate checks the intake and normalizes the guardian phone to E.164.
func (in *CaseIntake) Validate(now time.Time, phoneRegion string) error {
	fe := fieldErrors{}

	fe.require("child.first_name", !blank(in.Child.FirstName))
	fe.require("child.last_name", !blank(in.Child.LastName))
	fe.require("diagnosis", !blank(in.Diagnosis))
	fe.require("guardian.name", !blank(in.Guardian.Name))

	if in.Child.BirthDate.IsZero() {
		fe.require("child.birth_date", false)
	} else {
		birth := types.DateOnly(in.Child.BirthDate)
		today := types.DateOnly(now)
		switch age := types.AgeAt(birth, today); {
		case birth.After(today):
			fe.add("child.birth_date", "must not be in the future")
		case age < MinChildAge || age > MaxChildAge:
			fe.add("child.birth_date", "age must be between 0 and 18 years")
		default:
			in.Child.BirthDate = birth
		}
	}

	if blank(in.Guardian.Contact.Phone) {
		fe.require("guardian.contact.phone", false)
	} else if normalized, ok := normalizePhone(in.Guardian.Contact.Phone, phoneRegion); ok {
		in.Guardian.Contact.Phone = normalized
	} else {
		fe.add("guardian.contact.phone", "not a valid phone number")
	}

	return fe.err("invalid case intake")
}

func normalizePhone(raw, region string) (string, bool) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// CaseRecord is one registered child prior to and through the acceptance decision.
type CaseRecord struct {
	ID        types.ID   `json:"id"`
	Code      string     `json:"code"`
	Status    CaseStatus `json:"status"`
	Child     Child      `json:"child"`
	Diagnosis string     `json:"diagnosis"`
	Guardian  Guardian   `json:"guardian"`

	CreatedBy types.ID  `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Set only when RECHAZADO.
	RejectedBy      *types.ID  `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	Version int `json:"version"`
}

// NewCase registers a validated intake under the given code.
func NewCase(in CaseIntake, code string, createdBy types.ID, now time.Time, phoneRegion string) (*CaseRecord, error) {
	if err := in.Validate(now, phoneRegion); err != nil {
		return nil, err
	}

	return &CaseRecord{
		ID:        types.NewID(),
		Code:      code,
		Status:    CaseStatusRegistroInicial,
		Child:     in.Child,
		Diagnosis: strings.TrimSpace(in.Diagnosis),
		Guardian:  in.Guardian,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}, nil
}

// AgeAt derives the child's age; it is never stored.
func (c *CaseRecord) AgeAt(at time.Time) int {
	return types.AgeAt(c.Child.BirthDate, at)
}

// RecordSocialEvaluation advances the case after its social evaluation.
func (c *CaseRecord) RecordSocialEvaluation(now time.Time) error {
	switch {
	case c.Status == CaseStatusRechazado:
		return errors.TerminalState("case", string(c.Status))
	case c.Status.HasSocialEvaluation():
		return errors.Conflict("case " + c.Code + " already has a social evaluation")
	case c.Status != CaseStatusRegistroInicial && c.Status != CaseStatusPendienteEvalSocial:
		return errors.InvalidTransition("case", string(c.Status), string(CaseStatusPendienteEvalPsicologica))
	}

	if c.Status.HasPsychologicalEvaluation() {
		c.Status = CaseStatusPendienteDecision
	} else {
		c.Status = CaseStatusPendienteEvalPsicologica
	}
	c.UpdatedAt = now
	return nil
}

// RecordPsychologicalEvaluation advances the case after its psychological evaluation.
func (c *CaseRecord) RecordPsychologicalEvaluation(now time.Time) error {
	switch {
	case c.Status == CaseStatusRechazado:
		return errors.TerminalState("case", string(c.Status))
	case c.Status.HasPsychologicalEvaluation():
		return errors.Conflict("case " + c.Code + " already has a psychological evaluation")
	case c.Status != CaseStatusRegistroInicial && c.Status != CaseStatusPendienteEvalPsicologica:
		return errors.InvalidTransition("case", string(c.Status), string(CaseStatusPendienteEvalSocial))
	}

	if c.Status.HasSocialEvaluation() {
		c.Status = CaseStatusPendienteDecision
	} else {
		c.Status = CaseStatusPendienteEvalSocial
	}
	c.UpdatedAt = now
	return nil
}

// checkDecidable guards the two administrative decisions.
func (c *CaseRecord) checkDecidable(to CaseStatus) error {
	switch c.Status {
	case CaseStatusPendienteDecision:
		return nil
	case CaseStatusRechazado:
		return errors.TerminalState("case", string(c.Status))
	case CaseStatusBeneficiarioActivo:
		return errors.Conflict("case " + c.Code + " was already accepted")
	default:
		return errors.InvalidTransition("case", string(c.Status), string(to))
	}
}

// Accept marks the case as converted into a beneficiary.
func (c *CaseRecord) Accept(now time.Time) error {
	if err := c.checkDecidable(CaseStatusBeneficiarioActivo); err != nil {
		return err
	}
	c.Status = CaseStatusBeneficiarioActivo
	c.UpdatedAt = now
	return nil
}

// Reject closes the case. reason is optional.
func (c *CaseRecord) Reject(adminID types.ID, reason string, now time.Time) error {
	if err := c.checkDecidable(CaseStatusRechazado); err != nil {
		return err
	}
	c.Status = CaseStatusRechazado
	c.RejectedBy = &adminID
	c.RejectedAt = &now
	if r := strings.TrimSpace(reason); r != "" {
		c.RejectionReason = &r
	}
	c.UpdatedAt = now
	return nil
}
