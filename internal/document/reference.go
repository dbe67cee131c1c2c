// Package document validates opaque file references issued by the upload collaborator.
// File bytes never pass through this service.
package document

import (
	"context"
	"regexp"
	"strings"

	"github.com/oncoayuda/casework/internal/shared/errors"
)

// MaxRefLength matches the width of the file reference columns.
const MaxRefLength = 255

var refPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/-]*$`)

// Verifier confirms a reference exists in the upload store.
type Verifier interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

// Validator checks reference syntax and, when a Verifier is set, existence.
type Validator struct {
	verifier Verifier
}

// NewValidator accepts a nil verifier for syntax-only checks.
func NewValidator(verifier Verifier) *Validator {
	return &Validator{verifier: verifier}
}

// CheckFormat validates reference syntax only.
func CheckFormat(field, ref string) error {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return errors.Validation(field+" is required", map[string]string{field: "required"})
	case len(ref) > MaxRefLength:
		return errors.Validation(field+" is too long", map[string]string{field: "must be at most 255 characters"})
	case !refPattern.MatchString(ref) || strings.Contains(ref, ".."):
		return errors.Validation(field+" is not a valid file reference", map[string]string{field: "invalid file reference"})
	}
	return nil
}

// Check validates a required reference.
func (v *Validator) Check(ctx context.Context, field, ref string) error {
	if err := CheckFormat(field, ref); err != nil {
		return err
	}
	if v == nil || v.verifier == nil {
		return nil
	}

	ok, err := v.verifier.Exists(ctx, strings.TrimSpace(ref))
	if err != nil {
		return errors.Wrap(err, "document verification failed")
	}
	if !ok {
		return errors.Validation(field+" does not exist", map[string]string{field: "unknown file reference"})
	}
	return nil
}

// CheckOptional validates ref only when it is non-blank.
func (v *Validator) CheckOptional(ctx context.Context, field, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	return v.Check(ctx, field, ref)
}
