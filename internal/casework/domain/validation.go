package domain

import (
	"sort"
	"strings"

	"github.com/oncoayuda/casework/internal/shared/errors"
)

// fieldErrors accumulates per-field problems so one ValidationError lists all of them.
type fieldErrors map[string]string

func (f fieldErrors) require(field string, present bool) {
	if !present {
		f[field] = "required"
	}
}

func (f fieldErrors) add(field, problem string) {
	f[field] = problem
}

func (f fieldErrors) err(message string) error {
	if len(f) == 0 {
		return nil
	}
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return errors.Validation(message+": "+strings.Join(fields, ", "), f)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func blankPtr(s *string) bool {
	return s == nil || blank(*s)
}
