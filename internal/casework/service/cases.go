package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/metrics"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// RegisterCase validates the intake and opens a case in REGISTRO_INICIAL.
func (s *Service) RegisterCase(ctx context.Context, actor auth.Actor, in domain.CaseIntake) (*domain.CaseRecord, error) {
	var (
		created *domain.CaseRecord
		code    string
		now     time.Time
	)
	prepare := func(ctx context.Context) error {
		now = s.now()
		// Validate before allocating so rejected intakes do not burn codes.
		if err := in.Validate(now, s.phoneRegion); err != nil {
			return err
		}
		var err error
		code, err = s.codes.NextCode(ctx, domain.ScopeCase, domain.CasePrefix)
		return err
	}
	err := s.prepareAndMutate(ctx, auth.OpRegisterCase, actor, prepare, func(ctx context.Context, tx domain.Tx, _ *unit) error {
		c, err := domain.NewCase(in, code, actor.ID, now, s.phoneRegion)
		if err != nil {
			return err
		}
		if err := tx.InsertCase(ctx, c); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("case", "", string(created.Status))
	s.log.Info("case registered",
		zap.String("case_code", created.Code),
		zap.String("created_by", actor.ID.String()),
	)
	return created, nil
}

// RecordSocialEvaluation scores the household and advances the case.
func (s *Service) RecordSocialEvaluation(ctx context.Context, actor auth.Actor, caseID types.ID, scores domain.SocialScores, observations string) (*domain.SocialEvaluation, error) {
	var (
		eval *domain.SocialEvaluation
		from domain.CaseStatus
		c    *domain.CaseRecord
	)
	err := s.mutate(ctx, auth.OpRecordSocialEvaluation, actor, func(ctx context.Context, tx domain.Tx, _ *unit) error {
		var err error
		if c, err = tx.FindCase(ctx, caseID); err != nil {
			return err
		}
		from = c.Status
		now := s.now()
		if err := c.RecordSocialEvaluation(now); err != nil {
			return err
		}
		if eval, err = domain.NewSocialEvaluation(c.ID, scores, observations, actor.ID, now); err != nil {
			return err
		}
		if err := tx.InsertSocialEvaluation(ctx, eval); err != nil {
			return replayConflict(err, "case "+c.Code+" already has a social evaluation")
		}
		return tx.UpdateCase(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("case", string(from), string(c.Status))
	metrics.RecordVulnerabilityLevel(string(eval.Level))
	s.log.Info("social evaluation recorded",
		zap.String("case_code", c.Code),
		zap.Int("total_score", eval.TotalScore),
		zap.String("vulnerability_level", string(eval.Level)),
		zap.String("status", string(c.Status)),
	)
	return eval, nil
}

// RecordPsychologicalEvaluation stores the report reference and advances the case.
func (s *Service) RecordPsychologicalEvaluation(ctx context.Context, actor auth.Actor, caseID types.ID, report domain.PsychologicalReport) (*domain.PsychologicalEvaluation, error) {
	var (
		eval *domain.PsychologicalEvaluation
		from domain.CaseStatus
		c    *domain.CaseRecord
	)
	// A blank reference is reported as required by the evaluation itself.
	prepare := func(ctx context.Context) error {
		return s.documents.CheckOptional(ctx, "report_file_id", report.ReportFileID)
	}
	err := s.prepareAndMutate(ctx, auth.OpRecordPsychEvaluation, actor, prepare, func(ctx context.Context, tx domain.Tx, _ *unit) error {
		var err error
		if c, err = tx.FindCase(ctx, caseID); err != nil {
			return err
		}
		from = c.Status
		now := s.now()
		if err := c.RecordPsychologicalEvaluation(now); err != nil {
			return err
		}
		if eval, err = domain.NewPsychologicalEvaluation(c.ID, report, actor.ID, now); err != nil {
			return err
		}
		if err := tx.InsertPsychologicalEvaluation(ctx, eval); err != nil {
			return replayConflict(err, "case "+c.Code+" already has a psychological evaluation")
		}
		return tx.UpdateCase(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("case", string(from), string(c.Status))
	s.log.Info("psychological evaluation recorded",
		zap.String("case_code", c.Code),
		zap.String("status", string(c.Status)),
	)
	return eval, nil
}

// DecideCase accepts an evaluated case. The beneficiary, its initial medical
// history row and the case transition commit together or not at all.
func (s *Service) DecideCase(ctx context.Context, actor auth.Actor, caseID, assigneeID types.ID) (*domain.Beneficiary, error) {
	var (
		b    *domain.Beneficiary
		code string
	)
	// The precondition is checked against a snapshot before a code is drawn,
	// then again inside the transaction. Losing a race burns the code.
	prepare := func(ctx context.Context) error {
		c, err := s.store.FindCase(ctx, caseID)
		if err != nil {
			return err
		}
		if err := acceptable(c, assigneeID, s.now()); err != nil {
			return err
		}
		code, err = s.codes.NextCode(ctx, domain.ScopeBeneficiary, domain.BeneficiaryPrefix)
		return err
	}
	err := s.prepareAndMutate(ctx, auth.OpDecideCase, actor, prepare, func(ctx context.Context, tx domain.Tx, u *unit) error {
		c, err := tx.FindCase(ctx, caseID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := acceptable(c, assigneeID, now); err != nil {
			return err
		}
		if b, err = domain.NewBeneficiary(c, code, actor.ID, assigneeID, now); err != nil {
			return err
		}
		if err := tx.InsertBeneficiary(ctx, b); err != nil {
			return replayConflict(err, "case "+c.Code+" was already accepted")
		}
		if err := tx.InsertMedicalStatusChange(ctx, domain.InitialMedicalChange(b)); err != nil {
			return err
		}
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		u.emit(domain.CaseAcceptedEvent(c, b))
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("case", string(domain.CaseStatusPendienteDecision), string(domain.CaseStatusBeneficiarioActivo))
	s.log.Info("case accepted",
		zap.String("beneficiary_code", b.Code),
		zap.String("owner_id", b.OwnerID.String()),
		zap.String("accepted_by", actor.ID.String()),
	)
	return b, nil
}

// RejectCase closes an evaluated case. reason is optional.
func (s *Service) RejectCase(ctx context.Context, actor auth.Actor, caseID types.ID, reason string) (*domain.CaseRecord, error) {
	var c *domain.CaseRecord
	err := s.mutate(ctx, auth.OpRejectCase, actor, func(ctx context.Context, tx domain.Tx, u *unit) error {
		var err error
		if c, err = tx.FindCase(ctx, caseID); err != nil {
			return err
		}
		if err := c.Reject(actor.ID, reason, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		u.emit(domain.CaseRejectedEvent(c))
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("case", string(domain.CaseStatusPendienteDecision), string(domain.CaseStatusRechazado))
	s.log.Info("case rejected", zap.String("case_code", c.Code), zap.String("rejected_by", actor.ID.String()))
	return c, nil
}

// acceptable moves c to BENEFICIARIO_ACTIVO and checks the decision payload.
func acceptable(c *domain.CaseRecord, assigneeID types.ID, now time.Time) error {
	if err := c.Accept(now); err != nil {
		return err
	}
	if assigneeID.IsZero() {
		return errors.Validation("invalid decision", map[string]string{"assignee_id": "required"})
	}
	return nil
}

// replayConflict rewords a uniqueness conflict on a one-per-case record.
func replayConflict(err error, msg string) error {
	if errors.Is(err, errors.ErrConflict) {
		return errors.Conflict(msg)
	}
	return err
}
