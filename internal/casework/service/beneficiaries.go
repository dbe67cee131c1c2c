package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/shared/metrics"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// TransitionMedicalStatus moves the beneficiary along the medical machine and
// appends the change to its history.
func (s *Service) TransitionMedicalStatus(ctx context.Context, actor auth.Actor, beneficiaryID types.ID, to domain.MedicalStatus, payload domain.MedicalDetails) (*domain.Beneficiary, error) {
	var (
		b      *domain.Beneficiary
		change *domain.MedicalStatusChange
	)
	err := s.mutate(ctx, auth.OpTransitionMedicalStatus, actor, func(ctx context.Context, tx domain.Tx, u *unit) error {
		var err error
		if b, err = tx.FindBeneficiary(ctx, beneficiaryID); err != nil {
			return err
		}
		if change, err = b.TransitionMedical(to, payload, actor.ID, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateBeneficiary(ctx, b); err != nil {
			return err
		}
		if err := tx.InsertMedicalStatusChange(ctx, change); err != nil {
			return err
		}
		c, err := tx.FindCase(ctx, b.CaseID)
		if err != nil {
			return err
		}
		u.emit(domain.MedicalStatusChangedEvent(c, b, change))
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("beneficiary_medical", string(*change.From), string(change.To))
	s.log.Info("medical status changed",
		zap.String("beneficiary_code", b.Code),
		zap.String("from", string(*change.From)),
		zap.String("to", string(change.To)),
	)
	return b, nil
}

// UpdateTreatmentProgress edits the phase and week of an EN_TRATAMIENTO beneficiary.
func (s *Service) UpdateTreatmentProgress(ctx context.Context, actor auth.Actor, beneficiaryID types.ID, phase string, week *int) (*domain.Beneficiary, error) {
	var b *domain.Beneficiary
	err := s.mutate(ctx, auth.OpUpdateTreatmentProgress, actor, func(ctx context.Context, tx domain.Tx, _ *unit) error {
		var err error
		if b, err = tx.FindBeneficiary(ctx, beneficiaryID); err != nil {
			return err
		}
		if err := b.UpdateTreatmentProgress(phase, week, s.now()); err != nil {
			return err
		}
		return tx.UpdateBeneficiary(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("treatment progress updated", zap.String("beneficiary_code", b.Code), zap.Stringp("phase", b.Medical.TreatmentPhase))
	return b, nil
}

// ReassignOwner hands the beneficiary to another caseworker.
func (s *Service) ReassignOwner(ctx context.Context, actor auth.Actor, beneficiaryID, newOwnerID types.ID) (*domain.Beneficiary, error) {
	var (
		b        *domain.Beneficiary
		previous types.ID
	)
	err := s.mutate(ctx, auth.OpReassignOwner, actor, func(ctx context.Context, tx domain.Tx, _ *unit) error {
		var err error
		if b, err = tx.FindBeneficiary(ctx, beneficiaryID); err != nil {
			return err
		}
		previous = b.OwnerID
		if err := b.Reassign(newOwnerID, s.now()); err != nil {
			return err
		}
		return tx.UpdateBeneficiary(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("beneficiary reassigned",
		zap.String("beneficiary_code", b.Code),
		zap.String("from_owner", previous.String()),
		zap.String("to_owner", b.OwnerID.String()),
	)
	return b, nil
}

// ChangeAdministrativeStatus moves the beneficiary between ACTIVO, INACTIVO and RECUPERADO.
func (s *Service) ChangeAdministrativeStatus(ctx context.Context, actor auth.Actor, beneficiaryID types.ID, to domain.AdminStatus) (*domain.Beneficiary, error) {
	var (
		b    *domain.Beneficiary
		from domain.AdminStatus
	)
	err := s.mutate(ctx, auth.OpChangeAdministrativeStatus, actor, func(ctx context.Context, tx domain.Tx, _ *unit) error {
		var err error
		if b, err = tx.FindBeneficiary(ctx, beneficiaryID); err != nil {
			return err
		}
		from = b.AdminStatus
		if err := b.ChangeAdminStatus(to, s.now()); err != nil {
			return err
		}
		return tx.UpdateBeneficiary(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("beneficiary_admin", string(from), string(b.AdminStatus))
	s.log.Info("administrative status changed",
		zap.String("beneficiary_code", b.Code),
		zap.String("from", string(from)),
		zap.String("to", string(b.AdminStatus)),
	)
	return b, nil
}
