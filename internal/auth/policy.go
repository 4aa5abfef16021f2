// Package auth resolves the calling principal from the session store and
// answers role questions from the configured rosters.
package auth

import (
	"strings"

	"recruithub/internal/models"
)

// Policy maps principal emails to roles. Rosters come from configuration;
// admins are implicitly recruiters.
type Policy struct {
	admins     map[string]bool
	recruiters map[string]bool
}

func NewPolicy(adminEmails, recruiterEmails []string) *Policy {
	p := &Policy{
		admins:     map[string]bool{},
		recruiters: map[string]bool{},
	}
	for _, email := range adminEmails {
		p.admins[normalizeEmail(email)] = true
	}
	for _, email := range recruiterEmails {
		p.recruiters[normalizeEmail(email)] = true
	}
	return p
}

func (p *Policy) IsAdmin(email string) bool {
	return p.admins[normalizeEmail(email)]
}

func (p *Policy) IsRecruiter(email string) bool {
	email = normalizeEmail(email)
	return p.recruiters[email] || p.admins[email]
}

// RolesFor returns the roles granted to email, possibly none.
func (p *Policy) RolesFor(email string) []string {
	var roles []string
	if p.IsAdmin(email) {
		roles = append(roles, models.RoleAdmin)
	}
	if p.IsRecruiter(email) {
		roles = append(roles, models.RoleRecruiter)
	}
	return roles
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
