package types

import "strings"

// CustomerContact is the contact snapshot written onto an order so later
// profile edits do not corrupt historical records.
type CustomerContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// IsZero reports whether no contact detail was provided.
func (c CustomerContact) IsZero() bool {
	return strings.TrimSpace(c.Name) == "" &&
		strings.TrimSpace(c.Phone) == "" &&
		strings.TrimSpace(c.Email) == ""
}
