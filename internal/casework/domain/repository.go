package domain

import (
	"context"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// Reader is the query side shared by the store and its transactions.
// Find methods return a NOT_FOUND AppError when nothing matches.
type Reader interface {
	FindCase(ctx context.Context, id types.ID) (*CaseRecord, error)
	FindCaseByCode(ctx context.Context, code string) (*CaseRecord, error)
	ListCases(ctx context.Context, filter CaseFilter) ([]CaseRecord, int, error)

	// Evaluation reads are keyed on the viewer role. A psychologist can never
	// load a social evaluation and a social worker can never load a
	// psychological one; such reads fail with FORBIDDEN.
	FindSocialEvaluation(ctx context.Context, caseID types.ID, viewer auth.Role) (*SocialEvaluation, error)
	FindPsychologicalEvaluation(ctx context.Context, caseID types.ID, viewer auth.Role) (*PsychologicalEvaluation, error)

	FindBeneficiary(ctx context.Context, id types.ID) (*Beneficiary, error)
	FindBeneficiaryByCase(ctx context.Context, caseID types.ID) (*Beneficiary, error)
	ListBeneficiaries(ctx context.Context, filter BeneficiaryFilter) ([]Beneficiary, int, error)
	ListMedicalHistory(ctx context.Context, beneficiaryID types.ID) ([]MedicalStatusChange, error)

	FindAidRequest(ctx context.Context, id types.ID) (*AidRequest, error)
	ListAidRequests(ctx context.Context, filter AidRequestFilter) ([]AidRequest, int, error)
}

// Tx is one unit of work. Update methods compare the entity's Version with the
// stored one and fail with CONFLICT when another writer got there first; on
// success they bump Version on the passed entity.
type Tx interface {
	Reader

	InsertCase(ctx context.Context, c *CaseRecord) error
	UpdateCase(ctx context.Context, c *CaseRecord) error
	InsertSocialEvaluation(ctx context.Context, e *SocialEvaluation) error
	InsertPsychologicalEvaluation(ctx context.Context, e *PsychologicalEvaluation) error

	InsertBeneficiary(ctx context.Context, b *Beneficiary) error
	UpdateBeneficiary(ctx context.Context, b *Beneficiary) error
	InsertMedicalStatusChange(ctx context.Context, change *MedicalStatusChange) error

	InsertAidRequest(ctx context.Context, r *AidRequest) error
	UpdateAidRequest(ctx context.Context, r *AidRequest) error
}

// Store is the durable state of the workflow engine.
type Store interface {
	Reader
	Sequencer

	// WithinTx runs fn in a transaction. Any error returned by fn rolls back
	// every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Page bounds list queries.
type Page struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Normalize applies the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// CaseFilter defines filters for listing cases
type CaseFilter struct {
	Status    *CaseStatus `json:"status,omitempty"`
	CreatedBy *types.ID   `json:"created_by,omitempty"`
	Page
}

// BeneficiaryFilter defines filters for listing beneficiaries
type BeneficiaryFilter struct {
	OwnerID       *types.ID      `json:"owner_id,omitempty"`
	AdminStatus   *AdminStatus   `json:"estado_beneficiario,omitempty"`
	MedicalStatus *MedicalStatus `json:"estado_medico,omitempty"`
	Page
}

// AidRequestFilter defines filters for listing aid requests
type AidRequestFilter struct {
	BeneficiaryID *types.ID  `json:"beneficiary_id,omitempty"`
	Status        *AidStatus `json:"estado,omitempty"`
	Page
}

// CanViewSocialEvaluation reports whether viewer may read social evaluation content.
func CanViewSocialEvaluation(viewer auth.Role) bool {
	return auth.Allowed(auth.OpReadSocialEvaluation, viewer)
}

// CanViewPsychologicalEvaluation reports whether viewer may read psychological evaluation content.
func CanViewPsychologicalEvaluation(viewer auth.Role) bool {
	return auth.Allowed(auth.OpReadPsychEvaluation, viewer)
}
