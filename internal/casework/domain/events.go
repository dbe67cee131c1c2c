package domain

import (
	"strconv"
	"time"

	"github.com/oncoayuda/casework/internal/shared/events"
)

// EventSource tags every casework event.
const EventSource = "casework"

// Event types handed to the notification dispatcher.
const (
	EventCaseAccepted         = "CaseAccepted"
	EventCaseRejected         = "CaseRejected"
	EventAidRequestReviewed   = "AidRequestReviewed"
	EventAidRequestDelivered  = "AidRequestDelivered"
	EventMedicalStatusChanged = "MedicalStatusChanged"
)

// Recipient is who the message templates address.
type Recipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Notice is the payload of every workflow event: enough to render a message
// without reading the store again.
type Notice struct {
	Recipient       Recipient         `json:"recipient"`
	ChildName       string            `json:"child_name"`
	CaseCode        string            `json:"case_code"`
	BeneficiaryCode string            `json:"beneficiary_code,omitempty"`
	RequestCode     string            `json:"request_code,omitempty"`
	State           string            `json:"state"`
	Summary         map[string]string `json:"summary,omitempty"`
}

func noticeFor(c *CaseRecord, state string) Notice {
	return Notice{
		Recipient: Recipient{
			Name:  c.Guardian.Name,
			Phone: c.Guardian.Contact.Phone,
			Email: c.Guardian.Contact.Email,
		},
		ChildName: c.Child.FullName(),
		CaseCode:  c.Code,
		State:     state,
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// CaseAcceptedEvent announces a new beneficiary.
func CaseAcceptedEvent(c *CaseRecord, b *Beneficiary) events.Event {
	n := noticeFor(c, string(c.Status))
	n.BeneficiaryCode = b.Code
	n.Summary = map[string]string{
		"estado_beneficiario": string(b.AdminStatus),
		"estado_medico":       string(b.MedicalStatus),
		"owner_id":            b.OwnerID.String(),
	}
	return events.NewEvent(EventCaseAccepted, EventSource, b.Code, n)
}

// CaseRejectedEvent announces a closed intake.
func CaseRejectedEvent(c *CaseRecord) events.Event {
	n := noticeFor(c, string(c.Status))
	if c.RejectionReason != nil {
		n.Summary = map[string]string{"reason": *c.RejectionReason}
	}
	return events.NewEvent(EventCaseRejected, EventSource, c.Code, n)
}

// AidRequestReviewedEvent announces a review verdict.
func AidRequestReviewedEvent(c *CaseRecord, b *Beneficiary, r *AidRequest) events.Event {
	n := noticeFor(c, string(r.Status))
	n.BeneficiaryCode = b.Code
	n.RequestCode = r.Code
	n.Summary = map[string]string{"tipo_ayuda": string(r.Type)}
	if r.ApprovedAmount != nil {
		n.Summary["approved_amount"] = money(*r.ApprovedAmount)
	}
	if r.RejectionReason != nil {
		n.Summary["reason"] = *r.RejectionReason
	}
	return events.NewEvent(EventAidRequestReviewed, EventSource, r.Code, n)
}

// AidRequestDeliveredEvent announces a disbursement.
func AidRequestDeliveredEvent(c *CaseRecord, b *Beneficiary, r *AidRequest) events.Event {
	n := noticeFor(c, string(r.Status))
	n.BeneficiaryCode = b.Code
	n.RequestCode = r.Code
	n.Summary = map[string]string{"tipo_ayuda": string(r.Type)}
	if r.ActualCost != nil {
		n.Summary["actual_cost"] = money(*r.ActualCost)
	}
	if r.Delivery != nil {
		n.Summary["place"] = r.Delivery.Place
		n.Summary["provider"] = r.Delivery.Provider
		n.Summary["date"] = r.Delivery.Date.Format(time.DateOnly)
	}
	return events.NewEvent(EventAidRequestDelivered, EventSource, r.Code, n)
}

// MedicalStatusChangedEvent announces a clinical state change.
func MedicalStatusChangedEvent(c *CaseRecord, b *Beneficiary, change *MedicalStatusChange) events.Event {
	n := noticeFor(c, string(change.To))
	n.BeneficiaryCode = b.Code
	n.Summary = map[string]string{"estado_beneficiario": string(b.AdminStatus)}
	if change.From != nil {
		n.Summary["from"] = string(*change.From)
	}
	return events.NewEvent(EventMedicalStatusChanged, EventSource, b.Code, n)
}
