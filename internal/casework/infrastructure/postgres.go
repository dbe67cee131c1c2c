package infrastructure

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// Postgres SQLSTATE codes the store maps to workflow errors.
const (
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgInvalidText          = "22P02"
	pgNumericOutOfRange    = "22003"
	pgStringTooLong        = "22001"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements domain.Store using PostgreSQL.
type PostgresStore struct {
	pgReader
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore creates the store. lockTimeout bounds row lock waits inside
// every transaction; zero leaves the server default.
func NewPostgresStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{
		pgReader:    pgReader{q: pool},
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

// NextSequence bumps the scope counter in its own autocommit statement, so the
// value is burned even when the caller's transaction rolls back.
func (s *PostgresStore) NextSequence(ctx context.Context, scope domain.Scope) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO code_counters (scope, last_value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET last_value = code_counters.last_value + 1
		RETURNING last_value`, string(scope)).Scan(&n)
	if err != nil {
		return 0, mapError(err, "failed to allocate sequence")
	}
	return n, nil
}

// WithinTx runs fn inside a READ COMMITTED transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if s.lockTimeout > 0 {
		// SET does not take bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return mapError(err, "failed to set lock timeout")
		}
	}

	if err := fn(ctx, &pgTx{pgReader: pgReader{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "failed to commit transaction")
	}
	return nil
}

// mapError turns driver errors into workflow errors. AppErrors pass through.
func mapError(err error, msg string) error {
	if _, ok := errors.As(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Conflict("duplicate record").WithDetail("constraint", pgErr.ConstraintName)
		case pgLockNotAvailable, pgQueryCanceled:
			return errors.Timeout("store contention exceeded the lock timeout")
		case pgSerializationFailure, pgDeadlockDetected:
			return errors.Conflict("concurrent update, retry with fresh state")
		case pgInvalidText:
			return errors.Validation("invalid identifier", map[string]string{"id": "invalid format"})
		case pgNumericOutOfRange:
			return errors.Validation("value out of range", map[string]string{fieldOf(pgErr): "out of range"})
		case pgStringTooLong:
			return errors.Validation("value too long", map[string]string{fieldOf(pgErr): "too long"})
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout("store operation timed out")
	}
	return errors.Wrap(err, msg)
}

// fieldOf names the offending column when the server reports one.
func fieldOf(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	return "value"
}

// --- Reader ---

type pgReader struct {
	q querier
}

const caseColumns = `
	id, code, status,
	child_first_name, child_last_name, child_birth_date, child_national_id,
	diagnosis,
	guardian_name, guardian_relationship, guardian_national_id, guardian_phone, guardian_email,
	address_street, address_city, address_department, address_reference,
	created_by, created_at, updated_at,
	rejected_by, rejected_at, rejection_reason, version`

func scanCase(row pgx.Row) (*domain.CaseRecord, error) {
	c := &domain.CaseRecord{}
	var childNationalID, relationship, guardianNationalID, email *string
	var street, city, department, reference *string
	err := row.Scan(
		&c.ID, &c.Code, &c.Status,
		&c.Child.FirstName, &c.Child.LastName, &c.Child.BirthDate, &childNationalID,
		&c.Diagnosis,
		&c.Guardian.Name, &relationship, &guardianNationalID, &c.Guardian.Contact.Phone, &email,
		&street, &city, &department, &reference,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		&c.RejectedBy, &c.RejectedAt, &c.RejectionReason, &c.Version,
	)
	if err != nil {
		return nil, err
	}
	c.Child.NationalID = deref(childNationalID)
	c.Guardian.Relationship = deref(relationship)
	c.Guardian.NationalID = deref(guardianNationalID)
	c.Guardian.Contact.Email = deref(email)
	c.Guardian.Address.Street = deref(street)
	c.Guardian.Address.City = deref(city)
	c.Guardian.Address.Department = deref(department)
	c.Guardian.Address.Reference = deref(reference)
	return c, nil
}

func (r pgReader) FindCase(ctx context.Context, id types.ID) (*domain.CaseRecord, error) {
	c, err := scanCase(r.q.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("case", id.String())
	}
	if err != nil {
		return nil, mapError(err, "failed to find case")
	}
	return c, nil
}

func (r pgReader) FindCaseByCode(ctx context.Context, code string) (*domain.CaseRecord, error) {
	c, err := scanCase(r.q.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE code = $1`, code))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("case", code)
	}
	if err != nil {
		return nil, mapError(err, "failed to find case by code")
	}
	return c, nil
}

func (r pgReader) ListCases(ctx context.Context, filter domain.CaseFilter) ([]domain.CaseRecord, int, error) {
	var w where
	if filter.Status != nil {
		w.add("status = $%d", *filter.Status)
	}
	if filter.CreatedBy != nil {
		w.add("created_by = $%d", *filter.CreatedBy)
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM cases `+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, mapError(err, "failed to count cases")
	}

	query, args := w.page(`SELECT `+caseColumns+` FROM cases `+w.clause()+` ORDER BY code`, filter.Page)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err, "failed to list cases")
	}
	defer rows.Close()

	cases := []domain.CaseRecord{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, mapError(err, "failed to scan case")
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "failed to list cases")
	}
	return cases, total, nil
}

func (r pgReader) FindSocialEvaluation(ctx context.Context, caseID types.ID, viewer auth.Role) (*domain.SocialEvaluation, error) {
	if err := checkSocialViewer(viewer); err != nil {
		return nil, err
	}

	e := &domain.SocialEvaluation{}
	var observations *string
	err := r.q.QueryRow(ctx, `
		SELECT id, case_id, income_bracket, household_size, housing_score, employment_score,
			health_access_score, monthly_medical_expense, total_score, vulnerability_level,
			observations, evaluator_id, created_at
		FROM social_evaluations
		WHERE case_id = $1`, caseID).Scan(
		&e.ID, &e.CaseID, &e.Scores.IncomeBracket, &e.Scores.HouseholdSize, &e.Scores.Housing, &e.Scores.Employment,
		&e.Scores.HealthAccess, &e.Scores.MonthlyMedicalExpense, &e.TotalScore, &e.Level,
		&observations, &e.EvaluatorID, &e.CreatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("social_evaluation", caseID.String())
	}
	if err != nil {
		return nil, mapError(err, "failed to find social evaluation")
	}
	e.Observations = deref(observations)
	return e, nil
}

func (r pgReader) FindPsychologicalEvaluation(ctx context.Context, caseID types.ID, viewer auth.Role) (*domain.PsychologicalEvaluation, error) {
	if err := checkPsychViewer(viewer); err != nil {
		return nil, err
	}

	e := &domain.PsychologicalEvaluation{}
	var observations *string
	err := r.q.QueryRow(ctx, `
		SELECT id, case_id, report_file_id, observations, evaluator_id, created_at
		FROM psychological_evaluations
		WHERE case_id = $1`, caseID).Scan(
		&e.ID, &e.CaseID, &e.ReportFileID, &observations, &e.EvaluatorID, &e.CreatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("psychological_evaluation", caseID.String())
	}
	if err != nil {
		return nil, mapError(err, "failed to find psychological evaluation")
	}
	e.Observations = deref(observations)
	return e, nil
}

const beneficiaryColumns = `
	id, case_id, code, admin_status, medical_status,
	owner_id, accepted_by, accepted_at,
	treatment_phase, protocol_week, surveillance_start, surveillance_months,
	abandonment_reason, guardianship_notified, death_date, death_cause,
	created_at, updated_at, version`

func scanBeneficiary(row pgx.Row) (*domain.Beneficiary, error) {
	b := &domain.Beneficiary{}
	m := &b.Medical
	err := row.Scan(
		&b.ID, &b.CaseID, &b.Code, &b.AdminStatus, &b.MedicalStatus,
		&b.OwnerID, &b.AcceptedBy, &b.AcceptedAt,
		&m.TreatmentPhase, &m.ProtocolWeek, &m.SurveillanceStart, &m.SurveillanceMonths,
		&m.AbandonmentReason, &m.GuardianshipNotified, &m.DateOfDeath, &m.CauseOfDeath,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r pgReader) FindBeneficiary(ctx context.Context, id types.ID) (*domain.Beneficiary, error) {
	b, err := scanBeneficiary(r.q.QueryRow(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("beneficiary", id.String())
	}
	if err != nil {
		return nil, mapError(err, "failed to find beneficiary")
	}
	return b, nil
}

func (r pgReader) FindBeneficiaryByCase(ctx context.Context, caseID types.ID) (*domain.Beneficiary, error) {
	b, err := scanBeneficiary(r.q.QueryRow(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE case_id = $1`, caseID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("beneficiary", caseID.String())
	}
	if err != nil {
		return nil, mapError(err, "failed to find beneficiary by case")
	}
	return b, nil
}

func (r pgReader) ListBeneficiaries(ctx context.Context, filter domain.BeneficiaryFilter) ([]domain.Beneficiary, int, error) {
	var w where
	if filter.OwnerID != nil {
		w.add("owner_id = $%d", *filter.OwnerID)
	}
	if filter.AdminStatus != nil {
		w.add("admin_status = $%d", *filter.AdminStatus)
	}
	if filter.MedicalStatus != nil {
		w.add("medical_status = $%d", *filter.MedicalStatus)
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM beneficiaries `+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, mapError(err, "failed to count beneficiaries")
	}

	query, args := w.page(`SELECT `+beneficiaryColumns+` FROM beneficiaries `+w.clause()+` ORDER BY code`, filter.Page)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err, "failed to list beneficiaries")
	}
	defer rows.Close()

	out := []domain.Beneficiary{}
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, 0, mapError(err, "failed to scan beneficiary")
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "failed to list beneficiaries")
	}
	return out, total, nil
}

func (r pgReader) ListMedicalHistory(ctx context.Context, beneficiaryID types.ID) ([]domain.MedicalStatusChange, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, beneficiary_id, from_status, to_status, payload, actor_id, changed_at
		FROM medical_status_changes
		WHERE beneficiary_id = $1
		ORDER BY changed_at, id`, beneficiaryID)
	if err != nil {
		return nil, mapError(err, "failed to list medical history")
	}
	defer rows.Close()

	history := []domain.MedicalStatusChange{}
	for rows.Next() {
		var ch domain.MedicalStatusChange
		var payload []byte
		if err := rows.Scan(&ch.ID, &ch.BeneficiaryID, &ch.From, &ch.To, &payload, &ch.ActorID, &ch.ChangedAt); err != nil {
			return nil, mapError(err, "failed to scan medical status change")
		}
		if err := json.Unmarshal(payload, &ch.Payload); err != nil {
			return nil, errors.Wrap(err, "failed to decode medical status payload")
		}
		history = append(history, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to list medical history")
	}
	return history, nil
}

const aidRequestColumns = `
	id, beneficiary_id, code, tipo_ayuda, prioridad, detail, estimated_cost, estado,
	requester_id, attachment_file_id,
	reviewer_id, reviewed_at, approved_amount, rejection_reason,
	actual_cost, delivery_place, delivery_provider, delivery_date, delivered_by, receipt_file_id,
	created_at, updated_at, version`

func scanAidRequest(row pgx.Row) (*domain.AidRequest, error) {
	r := &domain.AidRequest{}
	var place, provider *string
	var date *time.Time
	var deliveredBy *types.ID
	var receipt *string
	err := row.Scan(
		&r.ID, &r.BeneficiaryID, &r.Code, &r.Type, &r.Priority, &r.Detail, &r.EstimatedCost, &r.Status,
		&r.RequesterID, &r.AttachmentFileID,
		&r.ReviewerID, &r.ReviewedAt, &r.ApprovedAmount, &r.RejectionReason,
		&r.ActualCost, &place, &provider, &date, &deliveredBy, &receipt,
		&r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	if date != nil {
		r.Delivery = &domain.Delivery{
			Place:         deref(place),
			Provider:      deref(provider),
			Date:          *date,
			ReceiptFileID: receipt,
		}
		if deliveredBy != nil {
			r.Delivery.DeliveredBy = *deliveredBy
		}
	}
	return r, nil
}

func (r pgReader) FindAidRequest(ctx context.Context, id types.ID) (*domain.AidRequest, error) {
	req, err := scanAidRequest(r.q.QueryRow(ctx, `SELECT `+aidRequestColumns+` FROM aid_requests WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("aid_request", id.String())
	}
	if err != nil {
		return nil, mapError(err, "failed to find aid request")
	}
	return req, nil
}

func (r pgReader) ListAidRequests(ctx context.Context, filter domain.AidRequestFilter) ([]domain.AidRequest, int, error) {
	var w where
	if filter.BeneficiaryID != nil {
		w.add("beneficiary_id = $%d", *filter.BeneficiaryID)
	}
	if filter.Status != nil {
		w.add("estado = $%d", *filter.Status)
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM aid_requests `+w.clause(), w.args...).Scan(&total); err != nil {
		return nil, 0, mapError(err, "failed to count aid requests")
	}

	query, args := w.page(`SELECT `+aidRequestColumns+` FROM aid_requests `+w.clause()+` ORDER BY created_at, code`, filter.Page)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err, "failed to list aid requests")
	}
	defer rows.Close()

	out := []domain.AidRequest{}
	for rows.Next() {
		req, err := scanAidRequest(rows)
		if err != nil {
			return nil, 0, mapError(err, "failed to scan aid request")
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "failed to list aid requests")
	}
	return out, total, nil
}

// --- Tx ---

type pgTx struct {
	pgReader
}

func (t *pgTx) InsertCase(ctx context.Context, c *domain.CaseRecord) error {
	g := c.Guardian
	_, err := t.q.Exec(ctx, `
		INSERT INTO cases (
			id, code, status,
			child_first_name, child_last_name, child_birth_date, child_national_id,
			diagnosis,
			guardian_name, guardian_relationship, guardian_national_id, guardian_phone, guardian_email,
			address_street, address_city, address_department, address_reference,
			created_by, created_at, updated_at, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`,
		c.ID, c.Code, c.Status,
		c.Child.FirstName, c.Child.LastName, c.Child.BirthDate, nullable(c.Child.NationalID),
		c.Diagnosis,
		g.Name, nullable(g.Relationship), nullable(g.NationalID), g.Contact.Phone, nullable(g.Contact.Email),
		nullable(g.Address.Street), nullable(g.Address.City), nullable(g.Address.Department), nullable(g.Address.Reference),
		c.CreatedBy, c.CreatedAt, c.UpdatedAt, c.Version,
	)
	if err != nil {
		return mapError(err, "failed to insert case")
	}
	return nil
}

func (t *pgTx) UpdateCase(ctx context.Context, c *domain.CaseRecord) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE cases SET
			status = $3, rejected_by = $4, rejected_at = $5, rejection_reason = $6,
			updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2`,
		c.ID, c.Version, c.Status, c.RejectedBy, c.RejectedAt, c.RejectionReason, c.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "failed to update case")
	}
	if tag.RowsAffected() == 0 {
		return staleVersion("case", c.Code)
	}
	c.Version++
	return nil
}

func (t *pgTx) InsertSocialEvaluation(ctx context.Context, e *domain.SocialEvaluation) error {
	s := e.Scores
	_, err := t.q.Exec(ctx, `
		INSERT INTO social_evaluations (
			id, case_id, income_bracket, household_size, housing_score, employment_score,
			health_access_score, monthly_medical_expense, total_score, vulnerability_level,
			observations, evaluator_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.CaseID, s.IncomeBracket, s.HouseholdSize, s.Housing, s.Employment,
		s.HealthAccess, s.MonthlyMedicalExpense, e.TotalScore, e.Level,
		nullable(e.Observations), e.EvaluatorID, e.CreatedAt,
	)
	if err != nil {
		return mapError(err, "failed to insert social evaluation")
	}
	return nil
}

func (t *pgTx) InsertPsychologicalEvaluation(ctx context.Context, e *domain.PsychologicalEvaluation) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO psychological_evaluations (id, case_id, report_file_id, observations, evaluator_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.CaseID, e.ReportFileID, nullable(e.Observations), e.EvaluatorID, e.CreatedAt,
	)
	if err != nil {
		return mapError(err, "failed to insert psychological evaluation")
	}
	return nil
}

func (t *pgTx) InsertBeneficiary(ctx context.Context, b *domain.Beneficiary) error {
	m := b.Medical
	_, err := t.q.Exec(ctx, `
		INSERT INTO beneficiaries (
			id, case_id, code, admin_status, medical_status,
			owner_id, accepted_by, accepted_at,
			treatment_phase, protocol_week, surveillance_start, surveillance_months,
			abandonment_reason, guardianship_notified, death_date, death_cause,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		b.ID, b.CaseID, b.Code, b.AdminStatus, b.MedicalStatus,
		b.OwnerID, b.AcceptedBy, b.AcceptedAt,
		m.TreatmentPhase, m.ProtocolWeek, m.SurveillanceStart, m.SurveillanceMonths,
		m.AbandonmentReason, m.GuardianshipNotified, m.DateOfDeath, m.CauseOfDeath,
		b.CreatedAt, b.UpdatedAt, b.Version,
	)
	if err != nil {
		return mapError(err, "failed to insert beneficiary")
	}
	return nil
}

func (t *pgTx) UpdateBeneficiary(ctx context.Context, b *domain.Beneficiary) error {
	m := b.Medical
	tag, err := t.q.Exec(ctx, `
		UPDATE beneficiaries SET
			admin_status = $3, medical_status = $4, owner_id = $5,
			treatment_phase = $6, protocol_week = $7, surveillance_start = $8, surveillance_months = $9,
			abandonment_reason = $10, guardianship_notified = $11, death_date = $12, death_cause = $13,
			updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $2`,
		b.ID, b.Version, b.AdminStatus, b.MedicalStatus, b.OwnerID,
		m.TreatmentPhase, m.ProtocolWeek, m.SurveillanceStart, m.SurveillanceMonths,
		m.AbandonmentReason, m.GuardianshipNotified, m.DateOfDeath, m.CauseOfDeath,
		b.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "failed to update beneficiary")
	}
	if tag.RowsAffected() == 0 {
		return staleVersion("beneficiary", b.Code)
	}
	b.Version++
	return nil
}

func (t *pgTx) InsertMedicalStatusChange(ctx context.Context, ch *domain.MedicalStatusChange) error {
	payload, err := json.Marshal(ch.Payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode medical status payload")
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO medical_status_changes (id, beneficiary_id, from_status, to_status, payload, actor_id, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ch.ID, ch.BeneficiaryID, ch.From, ch.To, payload, ch.ActorID, ch.ChangedAt,
	)
	if err != nil {
		return mapError(err, "failed to insert medical status change")
	}
	return nil
}

func (t *pgTx) InsertAidRequest(ctx context.Context, r *domain.AidRequest) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO aid_requests (
			id, beneficiary_id, code, tipo_ayuda, prioridad, detail, estimated_cost, estado,
			requester_id, attachment_file_id, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.BeneficiaryID, r.Code, r.Type, r.Priority, r.Detail, r.EstimatedCost, r.Status,
		r.RequesterID, r.AttachmentFileID, r.CreatedAt, r.UpdatedAt, r.Version,
	)
	if err != nil {
		return mapError(err, "failed to insert aid request")
	}
	return nil
}

func (t *pgTx) UpdateAidRequest(ctx context.Context, r *domain.AidRequest) error {
	var place, provider, receipt *string
	var date *time.Time
	var deliveredBy *types.ID
	if d := r.Delivery; d != nil {
		place, provider, receipt = &d.Place, &d.Provider, d.ReceiptFileID
		date, deliveredBy = &d.Date, &d.DeliveredBy
	}

	tag, err := t.q.Exec(ctx, `
		UPDATE aid_requests SET
			estado = $3, reviewer_id = $4, reviewed_at = $5, approved_amount = $6, rejection_reason = $7,
			actual_cost = $8, delivery_place = $9, delivery_provider = $10, delivery_date = $11,
			delivered_by = $12, receipt_file_id = $13,
			updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $2`,
		r.ID, r.Version, r.Status, r.ReviewerID, r.ReviewedAt, r.ApprovedAmount, r.RejectionReason,
		r.ActualCost, place, provider, date,
		deliveredBy, receipt,
		r.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "failed to update aid request")
	}
	if tag.RowsAffected() == 0 {
		return staleVersion("aid_request", r.Code)
	}
	r.Version++
	return nil
}

// --- Helpers ---

// where accumulates numbered placeholders for list filters.
type where struct {
	conditions []string
	args       []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conditions = append(w.conditions, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conditions, " AND ")
}

func (w *where) page(query string, p domain.Page) (string, []any) {
	p = p.Normalize()
	n := len(w.args)
	args := append(append([]any(nil), w.args...), p.Limit, p.Offset)
	return fmt.Sprintf("%s LIMIT $%d OFFSET $%d", query, n+1, n+2), args
}

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
