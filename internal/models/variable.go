package models

import (
	"regexp"
	"time"
)

// Source is where a Variable's value is extracted from (spec §3/§4.3).
type Source string

const (
	SourceResponseBody   Source = "response_body"
	SourceResponseHeader Source = "response_header"
	SourceCookie         Source = "cookie"
	SourceStatic         Source = "static"
	SourceRandom         Source = "random"
)

// ExtractMethod is how the value is pulled from its Source.
type ExtractMethod string

const (
	ExtractJSONPath     ExtractMethod = "json_path"
	ExtractRegex        ExtractMethod = "regex"
	ExtractCookieValue  ExtractMethod = "cookie_value"
	ExtractHeaderValue  ExtractMethod = "header_value"
	ExtractFullBody     ExtractMethod = "full_body"
	ExtractRandomString ExtractMethod = "random_string"
	ExtractRandomNumber ExtractMethod = "random_number"
	ExtractRandomUUID   ExtractMethod = "random_uuid"
)

// VariableNamePattern matches the allowed Variable.Name grammar
// (spec §3: `[A-Za-z_][A-Za-z0-9_]*`).
var VariableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Variable is a named, workflow-scoped extraction/substitution rule
// (spec §3/§4.3).
type Variable struct {
	ID         int64  `json:"id" badgerholdKey:"ID"`
	WorkflowID int64  `json:"workflow_id" badgerhold:"index"`
	Name       string `json:"name"`

	Source        Source        `json:"source"`
	ExtractMethod ExtractMethod `json:"extract_method"`
	Pattern       string        `json:"pattern,omitempty"`

	RandomLength int    `json:"random_length,omitempty"`
	RandomFormat string `json:"random_format,omitempty"`
	StaticValue  string `json:"static_value,omitempty"`

	CurrentValue     string     `json:"current_value,omitempty"`
	LastExtractedAt  *time.Time `json:"last_extracted_at,omitempty"`
}
