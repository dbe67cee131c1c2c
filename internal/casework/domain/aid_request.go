package domain

import (
	"strings"
	"time"

	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// AidType is the kind of assistance requested.
type AidType string

const (
	AidTypeMedicamentos     AidType = "MEDICAMENTOS"
	AidTypeQuimioterapia    AidType = "QUIMIOTERAPIA"
	AidTypeAnalisisExamenes AidType = "ANALISIS_EXAMENES"
	AidTypeOtro             AidType = "OTRO"
)

func (t AidType) Valid() bool {
	switch t {
	case AidTypeMedicamentos, AidTypeQuimioterapia, AidTypeAnalisisExamenes, AidTypeOtro:
		return true
	}
	return false
}

// Priority of an aid request.
type Priority string

const (
	PriorityBaja    Priority = "BAJA"
	PriorityMedia   Priority = "MEDIA"
	PriorityAlta    Priority = "ALTA"
	PriorityUrgente Priority = "URGENTE"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityBaja, PriorityMedia, PriorityAlta, PriorityUrgente:
		return true
	}
	return false
}

// AidStatus is the lifecycle state of an aid request.
type AidStatus string

const (
	AidStatusPendiente    AidStatus = "PENDIENTE"
	AidStatusRecepcionado AidStatus = "RECEPCIONADO"
	AidStatusEntregado    AidStatus = "ENTREGADO"
	AidStatusRechazado    AidStatus = "RECHAZADO"
)

func (s AidStatus) Valid() bool {
	switch s {
	case AidStatusPendiente, AidStatusRecepcionado, AidStatusEntregado, AidStatusRechazado:
		return true
	}
	return false
}

// Terminal reports whether the request is closed.
func (s AidStatus) Terminal() bool {
	return s == AidStatusEntregado || s == AidStatusRechazado
}

// ReviewDecision is the reviewer's verdict on a pending request.
type ReviewDecision string

const (
	ReviewRecepcionar ReviewDecision = "RECEPCIONAR"
	ReviewRechazar    ReviewDecision = "RECHAZAR"
)

// AidRequestInput is the submission payload.
type AidRequestInput struct {
	Type             AidType  `json:"tipo_ayuda"`
	Priority         Priority `json:"prioridad"`
	Detail           string   `json:"detail"`
	EstimatedCost    float64  `json:"estimated_cost"`
	AttachmentFileID string   `json:"attachment_file_id,omitempty"`
}

// Validate checks the submission payload.
func (in AidRequestInput) Validate() error {
	fe := fieldErrors{}
	if !in.Type.Valid() {
		fe.add("tipo_ayuda", "must be one of MEDICAMENTOS, QUIMIOTERAPIA, ANALISIS_EXAMENES, OTRO")
	}
	if !in.Priority.Valid() {
		fe.add("prioridad", "must be one of BAJA, MEDIA, ALTA, URGENTE")
	}
	if in.Type == AidTypeOtro {
		fe.require("detail", !blank(in.Detail))
	}
	fe.amount("estimated_cost", in.EstimatedCost, true)
	return fe.err("invalid aid request")
}

// Delivery is populated only once the request is ENTREGADO.
type Delivery struct {
	Place         string    `json:"place"`
	Provider      string    `json:"provider"`
	Date          time.Time `json:"date"`
	DeliveredBy   types.ID  `json:"delivered_by"`
	ReceiptFileID *string   `json:"receipt_file_id,omitempty"`
}

// DeliveryInput is the disbursement payload.
type DeliveryInput struct {
	ActualCost    float64   `json:"actual_cost"`
	Place         string    `json:"place"`
	Provider      string    `json:"provider"`
	DeliveryDate  time.Time `json:"delivery_date"`
	ReceiptFileID string    `json:"receipt_file_id,omitempty"`
}

// AidRequest is one ask for assistance, tracked to disbursement or rejection.
// Pointer fields stay nil until the step that resolves them.
type AidRequest struct {
	ID               types.ID  `json:"id"`
	BeneficiaryID    types.ID  `json:"beneficiary_id"`
	Code             string    `json:"code"`
	Type             AidType   `json:"tipo_ayuda"`
	Priority         Priority  `json:"prioridad"`
	Detail           string    `json:"detail"`
	EstimatedCost    float64   `json:"estimated_cost"`
	Status           AidStatus `json:"estado"`
	RequesterID      types.ID  `json:"requester_id"`
	AttachmentFileID *string   `json:"attachment_file_id"`

	ReviewerID      *types.ID  `json:"reviewer_id"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	ApprovedAmount  *float64   `json:"approved_amount"`
	RejectionReason *string    `json:"rejection_reason"`

	ActualCost *float64  `json:"actual_cost"`
	Delivery   *Delivery `json:"delivery"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// NewAidRequest opens a PENDIENTE request for an active beneficiary.
func NewAidRequest(b *Beneficiary, in AidRequestInput, code string, requesterID types.ID, now time.Time) (*AidRequest, error) {
	if err := b.CanReceiveAid(); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r := &AidRequest{
		ID:            types.NewID(),
		BeneficiaryID: b.ID,
		Code:          code,
		Type:          in.Type,
		Priority:      in.Priority,
		Detail:        strings.TrimSpace(in.Detail),
		EstimatedCost: in.EstimatedCost,
		Status:        AidStatusPendiente,
		RequesterID:   requesterID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if ref := strings.TrimSpace(in.AttachmentFileID); ref != "" {
		r.AttachmentFileID = &ref
	}
	return r, nil
}

// Review moves a PENDIENTE request to RECEPCIONADO or RECHAZADO.
func (r *AidRequest) Review(reviewerID types.ID, decision ReviewDecision, approvedAmount *float64, reason string, now time.Time) error {
	switch {
	case r.Status.Terminal():
		return errors.TerminalState("aid_request", string(r.Status))
	case r.Status == AidStatusRecepcionado:
		return errors.Conflict("aid request " + r.Code + " was already reviewed")
	case r.Status != AidStatusPendiente:
		return errors.InvalidTransition("aid_request", string(r.Status), string(decision))
	}

	fe := fieldErrors{}
	switch decision {
	case ReviewRecepcionar:
		if approvedAmount == nil {
			fe.require("approved_amount", false)
		} else {
			fe.amount("approved_amount", *approvedAmount, true)
		}
	case ReviewRechazar:
		fe.require("reason", !blank(reason))
	default:
		fe.add("decision", "must be RECEPCIONAR or RECHAZAR")
	}
	if err := fe.err("invalid review"); err != nil {
		return err
	}

	r.ReviewerID = &reviewerID
	r.ReviewedAt = &now
	if decision == ReviewRecepcionar {
		amount := *approvedAmount
		r.ApprovedAmount = &amount
		r.Status = AidStatusRecepcionado
	} else {
		why := strings.TrimSpace(reason)
		r.RejectionReason = &why
		r.Status = AidStatusRechazado
	}
	r.UpdatedAt = now
	return nil
}

// Deliver closes a RECEPCIONADO request with its disbursement record.
// ActualCost may differ from ApprovedAmount; both are kept.
func (r *AidRequest) Deliver(in DeliveryInput, actorID types.ID, now time.Time) error {
	switch {
	case r.Status.Terminal():
		return errors.TerminalState("aid_request", string(r.Status))
	case r.Status != AidStatusRecepcionado:
		return errors.InvalidTransition("aid_request", string(r.Status), string(AidStatusEntregado))
	}

	fe := fieldErrors{}
	fe.amount("actual_cost", in.ActualCost, true)
	fe.require("place", !blank(in.Place))
	fe.require("provider", !blank(in.Provider))
	if in.DeliveryDate.IsZero() {
		fe.require("delivery_date", false)
	} else if types.DateOnly(in.DeliveryDate).After(types.DateOnly(now)) {
		fe.add("delivery_date", "must not be in the future")
	}
	if err := fe.err("invalid delivery"); err != nil {
		return err
	}

	cost := in.ActualCost
	r.ActualCost = &cost
	r.Delivery = &Delivery{
		Place:       strings.TrimSpace(in.Place),
		Provider:    strings.TrimSpace(in.Provider),
		Date:        types.DateOnly(in.DeliveryDate),
		DeliveredBy: actorID,
	}
	if ref := strings.TrimSpace(in.ReceiptFileID); ref != "" {
		r.Delivery.ReceiptFileID = &ref
	}
	r.Status = AidStatusEntregado
	r.UpdatedAt = now
	return nil
}
