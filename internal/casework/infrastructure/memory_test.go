package infrastructure

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/shared/errors"
	"github.com/oncoayuda/casework/internal/shared/types"
)

var now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func sampleCase(code string) *domain.CaseRecord {
	return &domain.CaseRecord{
		ID:     types.NewID(),
		Code:   code,
		Status: domain.CaseStatusPendienteDecision,
		Child: domain.Child{
			FirstName: "Ana",
			LastName:  "Quispe",
			BirthDate: time.Date(2017, time.January, 10, 0, 0, 0, 0, time.UTC),
		},
		Diagnosis: "LLA",
		Guardian: domain.Guardian{
			Name:    "María Quispe",
			Contact: types.ContactInfo{Phone: "+59171234567"},
			Address: types.Address{Street: "Av. Busch 123", City: "Cochabamba"},
		},
		CreatedBy: "ts-01",
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

func insertCase(t *testing.T, s *MemoryStore, c *domain.CaseRecord) {
	t.Helper()
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.InsertCase(ctx, c)
	}))
}

func TestMemoryStoreRollback(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := sampleCase("C001")

	boom := stderrors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		require.NoError(t, tx.InsertCase(ctx, c))
		// Own writes are visible inside the transaction.
		got, err := tx.FindCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "C001", got.Code)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.FindCase(ctx, c.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemoryStoreOptimisticVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := sampleCase("C001")
	insertCase(t, s, c)

	first, err := s.FindCase(ctx, c.ID)
	require.NoError(t, err)
	second, err := s.FindCase(ctx, c.ID)
	require.NoError(t, err)

	require.NoError(t, first.Accept(now))
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.UpdateCase(ctx, first)
	}))
	assert.Equal(t, 2, first.Version)

	require.NoError(t, second.Reject("ad-01", "", now))
	err = s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.UpdateCase(ctx, second)
	})
	assert.ErrorIs(t, err, errors.ErrConflict)

	stored, err := s.FindCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusBeneficiarioActivo, stored.Status)
	assert.Nil(t, stored.RejectedBy)
}

func TestMemoryStoreUniqueness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := sampleCase("C001")
	insertCase(t, s, c)

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.InsertCase(ctx, sampleCase("C001"))
	})
	assert.ErrorIs(t, err, errors.ErrConflict)

	eval := &domain.SocialEvaluation{ID: types.NewID(), CaseID: c.ID, EvaluatorID: "ts-01", CreatedAt: now}
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.InsertSocialEvaluation(ctx, eval)
	}))
	err = s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		dup := *eval
		dup.ID = types.NewID()
		return tx.InsertSocialEvaluation(ctx, &dup)
	})
	assert.ErrorIs(t, err, errors.ErrConflict)
}

func TestMemoryStoreEvaluationViewers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := sampleCase("C001")
	insertCase(t, s, c)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.InsertSocialEvaluation(ctx, &domain.SocialEvaluation{ID: types.NewID(), CaseID: c.ID}); err != nil {
			return err
		}
		return tx.InsertPsychologicalEvaluation(ctx, &domain.PsychologicalEvaluation{ID: types.NewID(), CaseID: c.ID, ReportFileID: "r.pdf"})
	}))

	_, err := s.FindSocialEvaluation(ctx, c.ID, auth.RolePsicologo)
	assert.ErrorIs(t, err, errors.ErrForbidden)
	_, err = s.FindSocialEvaluation(ctx, c.ID, auth.RoleTrabajadorSocial)
	assert.NoError(t, err)

	_, err = s.FindPsychologicalEvaluation(ctx, c.ID, auth.RoleTrabajadorSocial)
	assert.ErrorIs(t, err, errors.ErrForbidden)
	_, err = s.FindPsychologicalEvaluation(ctx, c.ID, auth.RoleAsistente)
	assert.ErrorIs(t, err, errors.ErrForbidden)
	_, err = s.FindPsychologicalEvaluation(ctx, c.ID, auth.RoleAdministrador)
	assert.NoError(t, err)
}

func TestMemoryStoreSequence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := s.NextSequence(ctx, domain.ScopeBeneficiary)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := s.NextSequence(ctx, domain.RequestScope("b-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "scopes count independently")
}

func TestMemoryStoreListPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, code := range []string{"C003", "C001", "C002"} {
		insertCase(t, s, sampleCase(code))
	}

	page, total, err := s.ListCases(ctx, domain.CaseFilter{Page: domain.Page{Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "C001", page[0].Code)
	assert.Equal(t, "C002", page[1].Code)

	page, _, err = s.ListCases(ctx, domain.CaseFilter{Page: domain.Page{Limit: 2, Offset: 2}})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "C003", page[0].Code)

	page, _, err = s.ListCases(ctx, domain.CaseFilter{Page: domain.Page{Offset: 10}})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(context.Context, domain.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
