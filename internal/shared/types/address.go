package types

import "strings"

// Address is a guardian's home address as captured at intake.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	Department string `json:"department,omitempty"`
	Reference  string `json:"reference,omitempty"`
}

// IsZero reports whether no address line was given.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Street) == "" && strings.TrimSpace(a.City) == ""
}

// ContactInfo represents contact information
type ContactInfo struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}
