// Package auth provides the casework roles and the fixed operation permission table.
package auth

import (
	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// Role represents a staff role issued by the identity provider.
type Role string

const (
	RoleAdministrador    Role = "ADMINISTRADOR"
	RoleTrabajadorSocial Role = "TRABAJADOR_SOCIAL"
	RolePsicologo        Role = "PSICOLOGO"
	RoleAsistente        Role = "ASISTENTE"
)

// AllRoles lists every role the platform recognises.
var AllRoles = []Role{RoleAdministrador, RoleTrabajadorSocial, RolePsicologo, RoleAsistente}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Operation names a workflow entry point subject to role gating.
type Operation string

// Mutating operations
const (
	OpRegisterCase               Operation = "case.register"
	OpRecordSocialEvaluation     Operation = "case.evaluation.social"
	OpRecordPsychEvaluation      Operation = "case.evaluation.psychological"
	OpDecideCase                 Operation = "case.decide"
	OpRejectCase                 Operation = "case.reject"
	OpTransitionMedicalStatus    Operation = "beneficiary.medical.transition"
	OpUpdateTreatmentProgress    Operation = "beneficiary.medical.progress"
	OpReassignOwner              Operation = "beneficiary.reassign"
	OpChangeAdministrativeStatus Operation = "beneficiary.status"
	OpSubmitAidRequest           Operation = "aid_request.submit"
	OpReviewAidRequest           Operation = "aid_request.review"
	OpDeliverAidRequest          Operation = "aid_request.deliver"
)

// Read operations
const (
	OpReadCase             Operation = "case.read"
	OpReadSocialEvaluation Operation = "case.evaluation.social.read"
	OpReadPsychEvaluation  Operation = "case.evaluation.psychological.read"
	OpReadBeneficiary      Operation = "beneficiary.read"
	OpReadAidRequest       Operation = "aid_request.read"
)

// OperationRoles is the single authorization table. It is fixed at build time.
var OperationRoles = map[Operation][]Role{
	OpRegisterCase:               {RoleTrabajadorSocial},
	OpRecordSocialEvaluation:     {RoleTrabajadorSocial},
	OpRecordPsychEvaluation:      {RolePsicologo},
	OpDecideCase:                 {RoleAdministrador},
	OpRejectCase:                 {RoleAdministrador},
	OpTransitionMedicalStatus:    {RoleAsistente, RoleAdministrador},
	OpUpdateTreatmentProgress:    {RoleAsistente, RoleAdministrador},
	OpReassignOwner:              {RoleAdministrador},
	OpChangeAdministrativeStatus: {RoleAdministrador},
	OpSubmitAidRequest:           {RoleTrabajadorSocial, RoleAsistente, RoleAdministrador},
	OpReviewAidRequest:           {RoleAsistente, RoleAdministrador},
	OpDeliverAidRequest:          {RoleAsistente, RoleAdministrador},

	// The two evaluation reads keep the evaluators independent of each other.
	OpReadSocialEvaluation: {RoleAdministrador, RoleTrabajadorSocial},
	OpReadPsychEvaluation:  {RoleAdministrador, RolePsicologo},

	OpReadCase:        AllRoles,
	OpReadBeneficiary: AllRoles,
	OpReadAidRequest:  AllRoles,
}

// Allowed reports whether role may run op. Unknown operations are denied.
func Allowed(op Operation, role Role) bool {
	for _, r := range OperationRoles[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Actor is the already-authenticated caller of an operation.
type Actor struct {
	ID   types.ID `json:"id"`
	Role Role     `json:"role"`
}

// Authorize returns a FORBIDDEN AppError when the actor may not run op.
func Authorize(op Operation, actor Actor) error {
	if actor.ID.IsZero() {
		return errors.Unauthorized("actor identity is required")
	}
	if !Allowed(op, actor.Role) {
		return errors.Forbidden("role " + string(actor.Role) + " may not perform " + string(op)).
			WithDetail("operation", string(op)).
			WithDetail("role", string(actor.Role))
	}
	return nil
}
