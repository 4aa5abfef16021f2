package models

import "time"

// Form is the durable binding between this system and one external form
// script instance, created once a connection handshake validates.
type Form struct {
	ID             string            `json:"id" db:"id"`
	Provider       FormProvider      `json:"provider" db:"provider"`
	ScriptID       string            `json:"scriptId,omitempty" db:"script_id"`
	Structure      string            `json:"structure,omitempty" db:"structure"`
	FieldMappings  map[string]string `json:"fieldMappings" db:"field_mappings"`
	CanCreateUsers bool              `json:"canCreateUsers" db:"can_create_users"`
	FormIdentifier string            `json:"formIdentifier,omitempty" db:"form_identifier"`
	RecruitmentID  string            `json:"recruitmentId,omitempty" db:"recruitment_id"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// FormResponse is one pushed response payload from a bound form. Responses
// keys are provider field names; values are whatever the script sent.
type FormResponse struct {
	ID              string                 `json:"id" db:"id"`
	FormID          string                 `json:"formId" db:"form_id"`
	RespondentEmail string                 `json:"respondentEmail,omitempty" db:"respondent_email"`
	Responses       map[string]interface{} `json:"responses" db:"responses"`
	Processed       bool                   `json:"processed" db:"processed"`
	SubmittedAt     time.Time              `json:"submittedAt" db:"submitted_at"`
	CandidateID     string                 `json:"candidateId,omitempty" db:"candidate_id"`
}
