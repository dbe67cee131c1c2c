package infrastructure

import (
	"context"
	"sort"
	"sync"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

// MemoryStore implements domain.Store in process memory. It backs the limited
// mode of the server and the service tests.
//
// Transactions read committed state plus their own staged writes. Staged
// writes are checked and applied together at commit, under the store lock, so
// a transaction that lost a version race leaves nothing behind.
type MemoryStore struct {
	mu            sync.RWMutex
	cases         map[types.ID]domain.CaseRecord
	social        map[types.ID]domain.SocialEvaluation        // by case
	psych         map[types.ID]domain.PsychologicalEvaluation // by case
	beneficiaries map[types.ID]domain.Beneficiary
	history       map[types.ID][]domain.MedicalStatusChange // by beneficiary
	requests      map[types.ID]domain.AidRequest

	seqMu sync.Mutex
	seq   map[domain.Scope]int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases:         make(map[types.ID]domain.CaseRecord),
		social:        make(map[types.ID]domain.SocialEvaluation),
		psych:         make(map[types.ID]domain.PsychologicalEvaluation),
		beneficiaries: make(map[types.ID]domain.Beneficiary),
		history:       make(map[types.ID][]domain.MedicalStatusChange),
		requests:      make(map[types.ID]domain.AidRequest),
		seq:           make(map[domain.Scope]int64),
	}
}

// NextSequence increments the scope counter. The value is consumed at once and
// is not returned by a later rollback.
func (s *MemoryStore) NextSequence(_ context.Context, scope domain.Scope) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.seq[scope]++
	return s.seq[scope], nil
}

// WithinTx runs fn against a staged transaction and commits if fn succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newMemTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range tx.writes {
		if err := w.check(s); err != nil {
			return err
		}
	}
	for _, w := range tx.writes {
		w.apply(s)
	}
	return nil
}

// --- Reader on committed state ---

func (s *MemoryStore) FindCase(_ context.Context, id types.ID) (*domain.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, errors.NotFound("case", id.String())
	}
	return &c, nil
}

func (s *MemoryStore) FindCaseByCode(_ context.Context, code string) (*domain.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cases {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, errors.NotFound("case", code)
}

func (s *MemoryStore) ListCases(_ context.Context, filter domain.CaseFilter) ([]domain.CaseRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CaseRecord
	for _, c := range s.cases {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.CreatedBy != nil && c.CreatedBy != *filter.CreatedBy {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return paginate(out, filter.Page)
}

func (s *MemoryStore) FindSocialEvaluation(_ context.Context, caseID types.ID, viewer auth.Role) (*domain.SocialEvaluation, error) {
	if err := checkSocialViewer(viewer); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.social[caseID]
	if !ok {
		return nil, errors.NotFound("social_evaluation", caseID.String())
	}
	return &e, nil
}

func (s *MemoryStore) FindPsychologicalEvaluation(_ context.Context, caseID types.ID, viewer auth.Role) (*domain.PsychologicalEvaluation, error) {
	if err := checkPsychViewer(viewer); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.psych[caseID]
	if !ok {
		return nil, errors.NotFound("psychological_evaluation", caseID.String())
	}
	return &e, nil
}

func (s *MemoryStore) FindBeneficiary(_ context.Context, id types.ID) (*domain.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.beneficiaries[id]
	if !ok {
		return nil, errors.NotFound("beneficiary", id.String())
	}
	return &b, nil
}

func (s *MemoryStore) FindBeneficiaryByCase(_ context.Context, caseID types.ID) (*domain.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.beneficiaries {
		if b.CaseID == caseID {
			return &b, nil
		}
	}
	return nil, errors.NotFound("beneficiary", caseID.String())
}

func (s *MemoryStore) ListBeneficiaries(_ context.Context, filter domain.BeneficiaryFilter) ([]domain.Beneficiary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Beneficiary
	for _, b := range s.beneficiaries {
		if filter.OwnerID != nil && b.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.AdminStatus != nil && b.AdminStatus != *filter.AdminStatus {
			continue
		}
		if filter.MedicalStatus != nil && b.MedicalStatus != *filter.MedicalStatus {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return paginate(out, filter.Page)
}

func (s *MemoryStore) ListMedicalHistory(_ context.Context, beneficiaryID types.ID) ([]domain.MedicalStatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MedicalStatusChange(nil), s.history[beneficiaryID]...), nil
}

func (s *MemoryStore) FindAidRequest(_ context.Context, id types.ID) (*domain.AidRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, errors.NotFound("aid_request", id.String())
	}
	return &r, nil
}

func (s *MemoryStore) ListAidRequests(_ context.Context, filter domain.AidRequestFilter) ([]domain.AidRequest, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AidRequest
	for _, r := range s.requests {
		if filter.BeneficiaryID != nil && r.BeneficiaryID != *filter.BeneficiaryID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Code < out[j].Code
	})
	return paginate(out, filter.Page)
}

func paginate[T any](items []T, page domain.Page) ([]T, int, error) {
	page = page.Normalize()
	total := len(items)
	if page.Offset >= total {
		return []T{}, total, nil
	}
	end := page.Offset + page.Limit
	if end > total {
		end = total
	}
	return items[page.Offset:end], total, nil
}

// --- Transaction ---

// memWrite is one staged mutation. check runs against committed state before
// any write of the transaction is applied.
type memWrite struct {
	check func(s *MemoryStore) error
	apply func(s *MemoryStore)
}

type memTx struct {
	*MemoryStore

	writes []memWrite

	// Own writes, visible to point reads inside the transaction.
	cases         map[types.ID]domain.CaseRecord
	beneficiaries map[types.ID]domain.Beneficiary
	requests      map[types.ID]domain.AidRequest
}

func newMemTx(s *MemoryStore) *memTx {
	return &memTx{
		MemoryStore:   s,
		cases:         make(map[types.ID]domain.CaseRecord),
		beneficiaries: make(map[types.ID]domain.Beneficiary),
		requests:      make(map[types.ID]domain.AidRequest),
	}
}

func (tx *memTx) stage(check func(s *MemoryStore) error, apply func(s *MemoryStore)) {
	tx.writes = append(tx.writes, memWrite{check: check, apply: apply})
}

func (tx *memTx) FindCase(ctx context.Context, id types.ID) (*domain.CaseRecord, error) {
	if c, ok := tx.cases[id]; ok {
		return &c, nil
	}
	return tx.MemoryStore.FindCase(ctx, id)
}

func (tx *memTx) FindBeneficiary(ctx context.Context, id types.ID) (*domain.Beneficiary, error) {
	if b, ok := tx.beneficiaries[id]; ok {
		return &b, nil
	}
	return tx.MemoryStore.FindBeneficiary(ctx, id)
}

func (tx *memTx) FindAidRequest(ctx context.Context, id types.ID) (*domain.AidRequest, error) {
	if r, ok := tx.requests[id]; ok {
		return &r, nil
	}
	return tx.MemoryStore.FindAidRequest(ctx, id)
}

func (tx *memTx) InsertCase(_ context.Context, c *domain.CaseRecord) error {
	row := *c
	tx.cases[row.ID] = row
	tx.stage(func(s *MemoryStore) error {
		if _, ok := s.cases[row.ID]; ok {
			return errors.Conflict("case " + row.ID.String() + " already exists")
		}
		for _, other := range s.cases {
			if other.Code == row.Code {
				return errors.Conflict("case code " + row.Code + " already exists")
			}
		}
		return nil
	}, func(s *MemoryStore) { s.cases[row.ID] = row })
	return nil
}

func (tx *memTx) UpdateCase(_ context.Context, c *domain.CaseRecord) error {
	expected := c.Version
	c.Version++
	row := *c
	tx.cases[row.ID] = row
	tx.stage(func(s *MemoryStore) error {
		current, ok := s.cases[row.ID]
		if !ok {
			return errors.NotFound("case", row.ID.String())
		}
		if current.Version != expected {
			return staleVersion("case", row.Code)
		}
		return nil
	}, func(s *MemoryStore) { s.cases[row.ID] = row })
	return nil
}

func (tx *memTx) InsertSocialEvaluation(_ context.Context, e *domain.SocialEvaluation) error {
	row := *e
	tx.stage(func(s *MemoryStore) error {
		if _, ok := s.social[row.CaseID]; ok {
			return errors.Conflict("case already has a social evaluation")
		}
		return nil
	}, func(s *MemoryStore) { s.social[row.CaseID] = row })
	return nil
}

func (tx *memTx) InsertPsychologicalEvaluation(_ context.Context, e *domain.PsychologicalEvaluation) error {
	row := *e
	tx.stage(func(s *MemoryStore) error {
		if _, ok := s.psych[row.CaseID]; ok {
			return errors.Conflict("case already has a psychological evaluation")
		}
		return nil
	}, func(s *MemoryStore) { s.psych[row.CaseID] = row })
	return nil
}

func (tx *memTx) InsertBeneficiary(_ context.Context, b *domain.Beneficiary) error {
	row := *b
	tx.beneficiaries[row.ID] = row
	tx.stage(func(s *MemoryStore) error {
		for _, other := range s.beneficiaries {
			switch {
			case other.CaseID == row.CaseID:
				return errors.Conflict("case already has a beneficiary")
			case other.Code == row.Code:
				return errors.Conflict("beneficiary code " + row.Code + " already exists")
			}
		}
		return nil
	}, func(s *MemoryStore) { s.beneficiaries[row.ID] = row })
	return nil
}

func (tx *memTx) UpdateBeneficiary(_ context.Context, b *domain.Beneficiary) error {
	expected := b.Version
	b.Version++
	row := *b
	tx.beneficiaries[row.ID] = row
	tx.stage(func(s *MemoryStore) error {
		current, ok := s.beneficiaries[row.ID]
		if !ok {
			return errors.NotFound("beneficiary", row.ID.String())
		}
		if current.Version != expected {
			return staleVersion("beneficiary", row.Code)
		}
		return nil
	}, func(s *MemoryStore) { s.beneficiaries[row.ID] = row })
	return nil
}

func (tx *memTx) InsertMedicalStatusChange(_ context.Context, change *domain.MedicalStatusChange) error {
	row := *change
	tx.stage(func(*MemoryStore) error { return nil }, func(s *MemoryStore) {
		s.history[row.BeneficiaryID] = append(s.history[row.BeneficiaryID], row)
	})
	return nil
}

func (tx *memTx) InsertAidRequest(_ context.Context, r *domain.AidRequest) error {
	row := *r
	tx.requests[row.ID] = row
	tx.stage(func(s *MemoryStore) error {
		for _, other := range s.requests {
			if other.BeneficiaryID == row.BeneficiaryID && other.Code == row.Code {
				return errors.Conflict("aid request code " + row.Code + " already exists")
			}
		}
		return nil
	}, func(s *MemoryStore) { s.requests[row.ID] = row })
	return nil
}

func (tx *memTx) UpdateAidRequest(_ context.Context, r *domain.AidRequest) error {
	expected := r.Version
	r.Version++
	row := *r
	tx.requests[row.ID] = row
	tx.stage(func(s *MemoryStore) error {
		current, ok := s.requests[row.ID]
		if !ok {
			return errors.NotFound("aid_request", row.ID.String())
		}
		if current.Version != expected {
			return staleVersion("aid_request", row.Code)
		}
		return nil
	}, func(s *MemoryStore) { s.requests[row.ID] = row })
	return nil
}

// --- Shared by both stores ---

func staleVersion(entity, code string) error {
	return errors.Conflict(entity+" "+code+" was modified concurrently").
		WithDetail("entity", entity).
		WithDetail("code", code)
}

func checkSocialViewer(viewer auth.Role) error {
	if !domain.CanViewSocialEvaluation(viewer) {
		return errors.Forbidden("role " + string(viewer) + " may not read social evaluations")
	}
	return nil
}

func checkPsychViewer(viewer auth.Role) error {
	if !domain.CanViewPsychologicalEvaluation(viewer) {
		return errors.Forbidden("role " + string(viewer) + " may not read psychological evaluations")
	}
	return nil
}
