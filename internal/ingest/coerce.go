package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Incident records one field that could not be coerced onto its target
// candidate attribute. Process reports all incidents at once so the
// operator can fix mappings or source data in a single pass.
type Incident struct {
	Field    string      `json:"field"`
	RawValue interface{} `json:"rawValue"`
	Reason   string      `json:"reason"`
}

// attributeKind is the expected shape of a candidate attribute.
type attributeKind int

const (
	kindString attributeKind = iota
	kindEmail
	kindNumber
	kindDate
	kindEnum
	kindList
)

type attributeSpec struct {
	kind attributeKind
	// allowed values for kindEnum, lowercase
	enum []string
}

// candidateAttributes registers the coercion targets referenced by form
// field mappings. Unknown targets fall back to kindString.
var candidateAttributes = map[string]attributeSpec{
	"email":          {kind: kindEmail},
	"name":           {kind: kindString},
	"firstName":      {kind: kindString},
	"lastName":       {kind: kindString},
	"phone":          {kind: kindString},
	"age":            {kind: kindNumber},
	"birthDate":      {kind: kindDate},
	"availableFrom":  {kind: kindDate},
	"languages":      {kind: kindList},
	"skills":         {kind: kindList},
	"motivation":     {kind: kindString},
	"preferredGroup": {kind: kindEnum, enum: []string{"mentor", "organizer", "teacher", "helper"}},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02.01.2006",
	"01/02/2006",
}

// coerce converts a raw response value to the shape of the target attribute.
// The returned reason is non-empty when coercion failed.
func coerce(target string, raw interface{}) (interface{}, string) {
	spec, ok := candidateAttributes[target]
	if !ok {
		spec = attributeSpec{kind: kindString}
	}

	switch spec.kind {
	case kindString:
		return coerceString(raw)
	case kindEmail:
		return coerceEmail(raw)
	case kindNumber:
		return coerceNumber(raw)
	case kindDate:
		return coerceDate(raw)
	case kindEnum:
		return coerceEnum(raw, spec.enum)
	case kindList:
		return coerceList(raw)
	}
	return nil, "unknown attribute kind"
}

func coerceString(raw interface{}) (interface{}, string) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), ""
	case bool:
		return strconv.FormatBool(v), ""
	case nil:
		return "", ""
	default:
		return nil, fmt.Sprintf("cannot represent %T as text", raw)
	}
}

func coerceEmail(raw interface{}) (interface{}, string) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Sprintf("email must be text, got %T", raw)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.Index(s, "@")
	if at < 1 || at == len(s)-1 || !strings.Contains(s[at:], ".") {
		return nil, "not a valid email address"
	}
	return s, ""
}

func coerceNumber(raw interface{}) (interface{}, string) {
	switch v := raw.(type) {
	case float64:
		return v, ""
	case int:
		return float64(v), ""
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Sprintf("%q is not a number", v)
		}
		return n, ""
	default:
		return nil, fmt.Sprintf("cannot coerce %T to a number", raw)
	}
}

func coerceDate(raw interface{}) (interface{}, string) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Sprintf("date must be text, got %T", raw)
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), ""
		}
	}
	return nil, fmt.Sprintf("%q does not match any supported date format", s)
}

func coerceEnum(raw interface{}, allowed []string) (interface{}, string) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Sprintf("expected one of %v, got %T", allowed, raw)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return s, ""
		}
	}
	return nil, fmt.Sprintf("%q is not one of %v", s, allowed)
}

// coerceList accepts JSON arrays and comma-separated text.
func coerceList(raw interface{}) (interface{}, string) {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, reason := coerceString(item)
			if reason != "" {
				return nil, reason
			}
			out = append(out, s.(string))
		}
		return out, ""
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, ""
	case nil:
		return []string{}, ""
	default:
		return nil, fmt.Sprintf("cannot coerce %T to a list", raw)
	}
}
