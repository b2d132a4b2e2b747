package applications

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/jobtrackr/backend/internal/validation"
)

const (
	maxCompanyLength   = 100
	maxRoleTitleLength = 120
	maxLocationLength  = 120
	maxJobURLLength    = 500
	maxNotesLength     = 3000

	dateOnlyLayout = "2006-01-02"
)

// OptionalString captures a JSON string field that may be absent, null, or set.
type OptionalString struct {
	Present bool
	Null    bool
	Value   string
}

// Text returns a present, non-null OptionalString.
func Text(value string) OptionalString {
	return OptionalString{Present: true, Value: value}
}

// Cleared returns a present OptionalString carrying an explicit null.
func Cleared() OptionalString {
	return OptionalString{Present: true, Null: true}
}

// UnmarshalJSON records presence and accepts either a JSON string or null.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		o.Value = ""
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON mirrors UnmarshalJSON for tests and clients reusing the type.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Present || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// ApplicationInput is the client payload for creating or updating an application.
type ApplicationInput struct {
	Company      OptionalString `json:"company"`
	RoleTitle    OptionalString `json:"roleTitle"`
	Location     OptionalString `json:"location"`
	JobURL       OptionalString `json:"jobUrl"`
	Stage        OptionalString `json:"stage"`
	AppliedDate  OptionalString `json:"appliedDate"`
	FollowUpDate OptionalString `json:"followUpDate"`
	Notes        OptionalString `json:"notes"`
}

// changeSet holds the normalized fields of a validated input; nil means untouched.
type changeSet struct {
	company         *string
	roleTitle       *string
	location        *string
	jobURL          *string
	stage           *Stage
	notes           *string
	appliedDate     *time.Time
	appliedDateSet  bool
	followUpDate    *time.Time
	followUpDateSet bool
}

func (c changeSet) applyTo(application *Application) {
	if c.company != nil {
		application.Company = *c.company
	}
	if c.roleTitle != nil {
		application.RoleTitle = *c.roleTitle
	}
	if c.location != nil {
		application.Location = *c.location
	}
	if c.jobURL != nil {
		application.JobURL = *c.jobURL
	}
	if c.stage != nil {
		application.Stage = *c.stage
	}
	if c.notes != nil {
		application.Notes = *c.notes
	}
	if c.appliedDateSet {
		application.AppliedDate = c.appliedDate
	}
	if c.followUpDateSet {
		application.FollowUpDate = c.followUpDate
	}
}

// validateInput normalizes the payload; partial inputs skip required-field checks.
func validateInput(input ApplicationInput, partial bool) (changeSet, error) {
	var (
		changes   changeSet
		collector validation.Collector
	)
	reject := collector.Reject

	requiredText := func(field string, value OptionalString, label string, maxLength int) *string {
		if !value.Present && partial {
			return nil
		}
		trimmed := strings.TrimSpace(value.Value)
		if trimmed == "" {
			reject(field, label+" is required")
			return nil
		}
		if utf8.RuneCountInString(trimmed) > maxLength {
			reject(field, label+" is too long")
			return nil
		}
		return &trimmed
	}
	optionalText := func(field string, value OptionalString, label string, maxLength int) *string {
		if !value.Present {
			if partial {
				return nil
			}
			empty := ""
			return &empty
		}
		trimmed := strings.TrimSpace(value.Value)
		if utf8.RuneCountInString(trimmed) > maxLength {
			reject(field, label+" is too long")
			return nil
		}
		return &trimmed
	}

	changes.company = requiredText("company", input.Company, "Company", maxCompanyLength)
	changes.roleTitle = requiredText("roleTitle", input.RoleTitle, "Role title", maxRoleTitleLength)
	changes.location = optionalText("location", input.Location, "Location", maxLocationLength)
	changes.notes = optionalText("notes", input.Notes, "Notes", maxNotesLength)

	if jobURL := optionalText("jobUrl", input.JobURL, "Job URL", maxJobURLLength); jobURL != nil {
		if *jobURL != "" && !validation.IsURL(*jobURL) {
			reject("jobUrl", "Job URL must be a valid URL")
		} else {
			changes.jobURL = jobURL
		}
	}

	switch {
	case input.Stage.Present && !input.Stage.Null:
		stage, err := ParseStage(input.Stage.Value)
		if err != nil {
			reject("stage", "Stage must be one of "+stageList())
		} else {
			changes.stage = &stage
		}
	case input.Stage.Null:
		reject("stage", "Stage must be one of "+stageList())
	case !partial:
		stage := DefaultStage
		changes.stage = &stage
	}

	if input.AppliedDate.Present || !partial {
		value, err := parseOptionalDate(input.AppliedDate)
		if err != nil {
			reject("appliedDate", "Applied date must be an RFC 3339 timestamp")
		} else {
			changes.appliedDate = value
			changes.appliedDateSet = true
		}
	}
	if input.FollowUpDate.Present || !partial {
		value, err := parseOptionalDate(input.FollowUpDate)
		if err != nil {
			reject("followUpDate", "Follow-up date must be an RFC 3339 timestamp")
		} else {
			changes.followUpDate = value
			changes.followUpDateSet = true
		}
	}

	if err := collector.Err(); err != nil {
		return changeSet{}, err
	}
	return changes, nil
}

func parseOptionalDate(value OptionalString) (*time.Time, error) {
	trimmed := strings.TrimSpace(value.Value)
	if !value.Present || value.Null || trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func stageList() string {
	names := make([]string, 0, len(stageOrder))
	for _, stage := range stageOrder {
		names = append(names, stage.String())
	}
	return strings.Join(names, ", ")
}
