package model

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed form_record.schema.json
var recordSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(recordSchema)

// ErrMissingFullName is returned before preview and export when the
// required name field is blank.
var ErrMissingFullName = errors.New("full name is required")

// ValidationError lists every field the schema rejected.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form record validation failed: %s", strings.Join(e.Problems, "; "))
}

// Validate checks a record against form_record.schema.json.
func Validate(r FormRecord) error {
	r.Normalize()
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(r))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if res.Valid() {
		return nil
	}
	verr := &ValidationError{}
	for _, e := range res.Errors() {
		// if/then failures are reported twice; keep the concrete one
		if e.Type() == "condition_then" {
			continue
		}
		verr.Problems = append(verr.Problems, e.String())
	}
	if len(verr.Problems) == 0 {
		verr.Problems = append(verr.Problems, res.Errors()[0].String())
	}
	return verr
}

// RequireExportable runs the checks the page performs before a preview or
// export request is allowed to leave.
func RequireExportable(r FormRecord) error {
	if strings.TrimSpace(r.FullName) == "" {
		return ErrMissingFullName
	}
	return Validate(r)
}
