package models

// Roles assignable to an authenticated principal.
const (
	RoleAdmin     = "admin"
	RoleRecruiter = "recruiter"
)

// Principal is the authenticated caller of a core operation. Core services
// receive it explicitly rather than reading ambient session state.
type Principal struct {
	Email  string   `json:"email"`
	UserID string   `json:"userId"`
	Roles  []string `json:"roles,omitempty"`
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
