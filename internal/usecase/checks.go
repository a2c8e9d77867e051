package usecase

import (
	"errors"
	"fmt"
	"strings"

	"cv-builder/internal/form"
	"cv-builder/internal/model"
)

// CheckResult holds the outcome of the local checks run before a request.
type CheckResult struct {
	Valid   bool
	Missing []string
	Message string
}

// Err returns nil for a valid result, or an error carrying Message.
func (r *CheckResult) Err() error {
	if r.Valid {
		return nil
	}
	return &CheckError{Missing: r.Missing, Message: r.Message}
}

// CheckError is a validation failure that blocked a request.
type CheckError struct {
	Missing []string
	Message string
}

func (e *CheckError) Error() string { return e.Message }

func invalid(message string, missing ...string) *CheckResult {
	return &CheckResult{Valid: false, Missing: missing, Message: message}
}

var valid = &CheckResult{Valid: true}

// CheckSummary requires a non-blank summary.
func CheckSummary(m *form.Model) *CheckResult {
	if strings.TrimSpace(m.Personal(form.PersonalSummary)) == "" {
		return invalid("Please enter a summary first", form.PersonalSummary)
	}
	return valid
}

// CheckExperience requires position and company on the experience at pos.
func CheckExperience(m *form.Model, pos int) *CheckResult {
	var missing []string
	for _, f := range []string{form.FieldPosition, form.FieldCompany} {
		v, err := m.Get(form.FieldRef{Section: form.Experience, Position: pos, Field: f})
		if err != nil {
			return invalid(fmt.Sprintf("No experience at position %d", pos))
		}
		if strings.TrimSpace(v) == "" {
			missing = append(missing, form.FieldRef{Section: form.Experience, Position: pos, Field: f}.Name())
		}
	}
	if len(missing) > 0 {
		return invalid("Please fill in position and company first", missing...)
	}
	return valid
}

// CheckSkills requires at least one skill.
func CheckSkills(m *form.Model) *CheckResult {
	if len(model.ParseSkills(m.Personal(form.PersonalSkills))) == 0 {
		return invalid("Please enter at least one skill first", form.PersonalSkills)
	}
	return valid
}

// CheckRecord requires a full name and a record the schema accepts.
func CheckRecord(rec model.FormRecord) *CheckResult {
	err := model.RequireExportable(rec)
	if err == nil {
		return valid
	}
	if errors.Is(err, model.ErrMissingFullName) {
		return invalid("Please enter your full name", form.PersonalFullName)
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return invalid("Please correct the form: "+strings.Join(ve.Problems, "; "), ve.Problems...)
	}
	return invalid(err.Error())
}
