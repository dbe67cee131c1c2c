package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/shared/metrics"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// SubmitAidRequest opens a PENDIENTE request for an ACTIVO beneficiary.
func (s *Service) SubmitAidRequest(ctx context.Context, actor auth.Actor, beneficiaryID types.ID, in domain.AidRequestInput) (*domain.AidRequest, error) {
	var (
		r    *domain.AidRequest
		code string
	)
	// Nothing is allocated until the beneficiary and the payload check out.
	prepare := func(ctx context.Context) error {
		b, err := s.store.FindBeneficiary(ctx, beneficiaryID)
		if err != nil {
			return err
		}
		if err := b.CanReceiveAid(); err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}
		if err := s.documents.CheckOptional(ctx, "attachment_file_id", in.AttachmentFileID); err != nil {
			return err
		}
		code, err = s.codes.NextCode(ctx, domain.RequestScope(b.ID), domain.RequestPrefixFor(b.Code))
		return err
	}
	err := s.prepareAndMutate(ctx, auth.OpSubmitAidRequest, actor, prepare, func(ctx context.Context, tx domain.Tx, _ *unit) error {
		b, err := tx.FindBeneficiary(ctx, beneficiaryID)
		if err != nil {
			return err
		}
		if r, err = domain.NewAidRequest(b, in, code, actor.ID, s.now()); err != nil {
			return err
		}
		return tx.InsertAidRequest(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("aid_request", "", string(r.Status))
	metrics.RecordAidAmount("estimated", r.EstimatedCost)
	s.log.Info("aid request submitted",
		zap.String("request_code", r.Code),
		zap.String("tipo_ayuda", string(r.Type)),
		zap.String("prioridad", string(r.Priority)),
		zap.Float64("estimated_cost", r.EstimatedCost),
	)
	return r, nil
}

// ReviewAidRequest records the reviewer's verdict on a PENDIENTE request. The
// loser of a concurrent review fails with CONFLICT.
func (s *Service) ReviewAidRequest(ctx context.Context, actor auth.Actor, requestID types.ID, decision domain.ReviewDecision, approvedAmount *float64, reason string) (*domain.AidRequest, error) {
	var r *domain.AidRequest
	err := s.mutate(ctx, auth.OpReviewAidRequest, actor, func(ctx context.Context, tx domain.Tx, u *unit) error {
		var err error
		if r, err = tx.FindAidRequest(ctx, requestID); err != nil {
			return err
		}
		if err := r.Review(actor.ID, decision, approvedAmount, reason, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateAidRequest(ctx, r); err != nil {
			return err
		}
		b, c, err := s.owners(ctx, tx, r)
		if err != nil {
			return err
		}
		u.emit(domain.AidRequestReviewedEvent(c, b, r))
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("aid_request", string(domain.AidStatusPendiente), string(r.Status))
	if r.ApprovedAmount != nil {
		metrics.RecordAidAmount("approved", *r.ApprovedAmount)
	}
	s.log.Info("aid request reviewed",
		zap.String("request_code", r.Code),
		zap.String("estado", string(r.Status)),
		zap.String("reviewer_id", actor.ID.String()),
	)
	return r, nil
}

// DeliverAidRequest closes a RECEPCIONADO request with its disbursement record.
func (s *Service) DeliverAidRequest(ctx context.Context, actor auth.Actor, requestID types.ID, in domain.DeliveryInput) (*domain.AidRequest, error) {
	var r *domain.AidRequest
	prepare := func(ctx context.Context) error {
		return s.documents.CheckOptional(ctx, "receipt_file_id", in.ReceiptFileID)
	}
	err := s.prepareAndMutate(ctx, auth.OpDeliverAidRequest, actor, prepare, func(ctx context.Context, tx domain.Tx, u *unit) error {
		var err error
		if r, err = tx.FindAidRequest(ctx, requestID); err != nil {
			return err
		}
		if err := r.Deliver(in, actor.ID, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateAidRequest(ctx, r); err != nil {
			return err
		}
		b, c, err := s.owners(ctx, tx, r)
		if err != nil {
			return err
		}
		u.emit(domain.AidRequestDeliveredEvent(c, b, r))
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("aid_request", string(domain.AidStatusRecepcionado), string(r.Status))
	metrics.RecordAidAmount("delivered", *r.ActualCost)
	s.log.Info("aid request delivered",
		zap.String("request_code", r.Code),
		zap.Float64("actual_cost", *r.ActualCost),
		zap.Float64p("approved_amount", r.ApprovedAmount),
	)
	return r, nil
}

// owners loads the beneficiary and case a request belongs to, for event payloads.
func (s *Service) owners(ctx context.Context, tx domain.Tx, r *domain.AidRequest) (*domain.Beneficiary, *domain.CaseRecord, error) {
	b, err := tx.FindBeneficiary(ctx, r.BeneficiaryID)
	if err != nil {
		return nil, nil, err
	}
	c, err := tx.FindCase(ctx, b.CaseID)
	if err != nil {
		return nil, nil, err
	}
	return b, c, nil
}
