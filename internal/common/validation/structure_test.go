package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name       string
		structure  string
		wantErr    bool
		violations int
	}{
		{
			name:      "valid layout",
			structure: `{"title": "Signup", "fields": [{"name": "Email", "type": "text", "required": true}]}`,
		},
		{
			name:      "fields may omit type",
			structure: `{"fields": [{"name": "Age"}]}`,
		},
		{
			name:       "missing fields array",
			structure:  `{"title": "Signup"}`,
			violations: 1,
		},
		{
			name:       "field without name",
			structure:  `{"fields": [{"type": "text"}]}`,
			violations: 1,
		},
		{
			name:      "not json",
			structure: `not json at all`,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := ValidateStructure(tt.structure)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, violations, tt.violations)
		})
	}
}

func TestFormatViolations(t *testing.T) {
	out := FormatViolations([]ValidationError{
		{Field: "(root)", Message: "fields is required"},
		{Field: "fields.0", Message: "name is required"},
	})
	assert.Equal(t, "(root): fields is required; fields.0: name is required", out)
}
