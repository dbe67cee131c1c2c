package service

import (
	"context"
	"strings"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/shared/types"
)

func (s *Service) GetCase(ctx context.Context, actor auth.Actor, id types.ID) (*domain.CaseRecord, error) {
	var c *domain.CaseRecord
	err := s.query(ctx, auth.OpReadCase, actor, func(ctx context.Context) (err error) {
		c, err = s.store.FindCase(ctx, id)
		return err
	})
	return c, err
}

func (s *Service) ListCases(ctx context.Context, actor auth.Actor, filter domain.CaseFilter) ([]domain.CaseRecord, int, error) {
	var (
		out   []domain.CaseRecord
		total int
	)
	err := s.query(ctx, auth.OpReadCase, actor, func(ctx context.Context) (err error) {
		out, total, err = s.store.ListCases(ctx, filter)
		return err
	})
	return out, total, err
}

// FindCaseByCode looks a case up by its human-readable code, e.g. C014.
func (s *Service) FindCaseByCode(ctx context.Context, actor auth.Actor, code string) (*domain.CaseRecord, error) {
	var c *domain.CaseRecord
	err := s.query(ctx, auth.OpReadCase, actor, func(ctx context.Context) (err error) {
		c, err = s.store.FindCaseByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
		return err
	})
	return c, err
}

// GetCaseBeneficiary returns the beneficiary an accepted case produced.
func (s *Service) GetCaseBeneficiary(ctx context.Context, actor auth.Actor, caseID types.ID) (*domain.Beneficiary, error) {
	var b *domain.Beneficiary
	err := s.query(ctx, auth.OpReadBeneficiary, actor, func(ctx context.Context) error {
		if _, err := s.store.FindCase(ctx, caseID); err != nil {
			return err
		}
		var err error
		b, err = s.store.FindBeneficiaryByCase(ctx, caseID)
		return err
	})
	return b, err
}

// GetSocialEvaluation is denied to psychologists at both the operation and the store level.
func (s *Service) GetSocialEvaluation(ctx context.Context, actor auth.Actor, caseID types.ID) (*domain.SocialEvaluation, error) {
	var e *domain.SocialEvaluation
	err := s.query(ctx, auth.OpReadSocialEvaluation, actor, func(ctx context.Context) (err error) {
		e, err = s.store.FindSocialEvaluation(ctx, caseID, actor.Role)
		return err
	})
	return e, err
}

// GetPsychologicalEvaluation is denied to social workers at both the operation and the store level.
func (s *Service) GetPsychologicalEvaluation(ctx context.Context, actor auth.Actor, caseID types.ID) (*domain.PsychologicalEvaluation, error) {
	var e *domain.PsychologicalEvaluation
	err := s.query(ctx, auth.OpReadPsychEvaluation, actor, func(ctx context.Context) (err error) {
		e, err = s.store.FindPsychologicalEvaluation(ctx, caseID, actor.Role)
		return err
	})
	return e, err
}

func (s *Service) GetBeneficiary(ctx context.Context, actor auth.Actor, id types.ID) (*domain.Beneficiary, error) {
	var b *domain.Beneficiary
	err := s.query(ctx, auth.OpReadBeneficiary, actor, func(ctx context.Context) (err error) {
		b, err = s.store.FindBeneficiary(ctx, id)
		return err
	})
	return b, err
}

func (s *Service) ListBeneficiaries(ctx context.Context, actor auth.Actor, filter domain.BeneficiaryFilter) ([]domain.Beneficiary, int, error) {
	var (
		out   []domain.Beneficiary
		total int
	)
	err := s.query(ctx, auth.OpReadBeneficiary, actor, func(ctx context.Context) (err error) {
		out, total, err = s.store.ListBeneficiaries(ctx, filter)
		return err
	})
	return out, total, err
}

// GetMedicalHistory returns the beneficiary's medical changes, oldest first.
func (s *Service) GetMedicalHistory(ctx context.Context, actor auth.Actor, beneficiaryID types.ID) ([]domain.MedicalStatusChange, error) {
	var history []domain.MedicalStatusChange
	err := s.query(ctx, auth.OpReadBeneficiary, actor, func(ctx context.Context) error {
		if _, err := s.store.FindBeneficiary(ctx, beneficiaryID); err != nil {
			return err
		}
		var err error
		history, err = s.store.ListMedicalHistory(ctx, beneficiaryID)
		return err
	})
	return history, err
}

func (s *Service) GetAidRequest(ctx context.Context, actor auth.Actor, id types.ID) (*domain.AidRequest, error) {
	var r *domain.AidRequest
	err := s.query(ctx, auth.OpReadAidRequest, actor, func(ctx context.Context) (err error) {
		r, err = s.store.FindAidRequest(ctx, id)
		return err
	})
	return r, err
}

func (s *Service) ListAidRequests(ctx context.Context, actor auth.Actor, filter domain.AidRequestFilter) ([]domain.AidRequest, int, error) {
	var (
		out   []domain.AidRequest
		total int
	)
	err := s.query(ctx, auth.OpReadAidRequest, actor, func(ctx context.Context) (err error) {
		out, total, err = s.store.ListAidRequests(ctx, filter)
		return err
	})
	return out, total, err
}
