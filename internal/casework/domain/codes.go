package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/oncoayuda/casework/internal/shared/types"
)

// Scope partitions the sequential code space.
type Scope string

const (
	ScopeCase        Scope = "CASE"
	ScopeBeneficiary Scope = "BENEFICIARY"
)

const requestScopePrefix = "REQUEST:"

// RequestScope is the per-beneficiary aid request sequence.
func RequestScope(beneficiaryID types.ID) Scope {
	return Scope(requestScopePrefix + beneficiaryID.String())
}

// Code prefixes.
const (
	CasePrefix        = "C"
	BeneficiaryPrefix = "B"
	RequestPrefix     = "SOL-"
)

// width returns the minimum zero-padded digit count for a scope.
func (s Scope) width() int {
	if strings.HasPrefix(string(s), requestScopePrefix) {
		return 2
	}
	return 3
}

// Sequencer hands out strictly increasing values per scope. A value is never
// handed out twice, even if the caller's transaction later aborts.
type Sequencer interface {
	NextSequence(ctx context.Context, scope Scope) (int64, error)
}

// CodeAllocator turns sequence values into human-readable codes.
type CodeAllocator struct {
	seq Sequencer
}

func NewCodeAllocator(seq Sequencer) *CodeAllocator {
	return &CodeAllocator{seq: seq}
}

// NextCode returns the next code for scope, e.g. C001, B014, SOL-014-03.
func (a *CodeAllocator) NextCode(ctx context.Context, scope Scope, prefix string) (string, error) {
	n, err := a.seq.NextSequence(ctx, scope)
	if err != nil {
		return "", err
	}
	return FormatCode(prefix, n, scope.width()), nil
}

// FormatCode zero-pads n to width digits; wider values grow naturally.
func FormatCode(prefix string, n int64, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// RequestPrefixFor builds the aid request prefix from a beneficiary code,
// B014 becomes SOL-014-.
func RequestPrefixFor(beneficiaryCode string) string {
	return RequestPrefix + strings.TrimPrefix(beneficiaryCode, BeneficiaryPrefix) + "-"
}
