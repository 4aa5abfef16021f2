package models

import "time"

// FormProvider identifies which kind of external form script a connection
// or form was established with.
type FormProvider string

const (
	ProviderUnset         FormProvider = "UNSET"
	ProviderExternalSheet FormProvider = "EXTERNAL_SHEET"
	ProviderCustom        FormProvider = "CUSTOM"
)

// FormConnection is the ephemeral handshake record created by connect/init
// and consumed by connect/validate. It is only usable while now < ExpiresAt.
type FormConnection struct {
	Key            string       `json:"key" db:"key"`
	Provider       FormProvider `json:"provider" db:"provider"`
	ScriptID       string       `json:"scriptId,omitempty" db:"script_id"`
	ExpiresAt      time.Time    `json:"expiresAt" db:"expires_at"`
	Structure      string       `json:"structure,omitempty" db:"structure"`
	ValidationCode string       `json:"validationCode,omitempty" db:"validation_code"`
	CanCreateUsers bool         `json:"canCreateUsers" db:"can_create_users"`
	FormIdentifier string       `json:"formIdentifier,omitempty" db:"form_identifier"`
	CreatedAt      time.Time    `json:"createdAt" db:"created_at"`
}

// IsExpired checks if the connection is past its TTL
func (c *FormConnection) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Registered reports whether the external script has announced itself yet.
func (c *FormConnection) Registered() bool {
	return c.ValidationCode != ""
}
