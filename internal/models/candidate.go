package models

import (
	"strings"
	"time"
)

// Candidate is identified by recruitment + email. Attributes holds the
// coerced values mapped from form responses (name, phone, languages, ...).
type Candidate struct {
	ID              string                 `json:"id" db:"id"`
	RecruitmentID   string                 `json:"recruitmentId" db:"recruitment_id"`
	Email           string                 `json:"email" db:"email"`
	AlternateEmails []string               `json:"alternateEmails,omitempty" db:"alternate_emails"`
	Attributes      map[string]interface{} `json:"attributes" db:"attributes"`
	CreatedAt       time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time              `json:"updatedAt" db:"updated_at"`
}

// HasEmail reports whether the given address is the candidate's primary or
// one of the alternate emails. Comparison is case-insensitive.
func (c *Candidate) HasEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if strings.ToLower(c.Email) == email {
		return true
	}
	for _, alt := range c.AlternateEmails {
		if strings.ToLower(alt) == email {
			return true
		}
	}
	return false
}

// AddAlternateEmail records an additional address for the candidate,
// skipping duplicates and the primary address.
func (c *Candidate) AddAlternateEmail(email string) {
	email = strings.TrimSpace(email)
	if email == "" || c.HasEmail(email) {
		return
	}
	c.AlternateEmails = append(c.AlternateEmails, email)
}
