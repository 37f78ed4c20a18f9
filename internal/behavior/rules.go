package behavior

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"bitwise74/proffer/pkg/proffer"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Rules maps a field name to a validator tag, for example "required" or
// "omitempty,max=255"
type Rules map[string]string

// IsEmptyAllowed reports if field can be left empty
func (r Rules) IsEmptyAllowed(field string) bool {
	tag, ok := r[field]
	if !ok {
		return true
	}

	for _, t := range strings.Split(tag, ",") {
		if strings.TrimSpace(t) == "required" {
			return false
		}
	}

	return true
}

// ValidationError lists every field that failed validation with the tag it failed on
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, fmt.Sprintf("%s failed on %s", f, e.Fields[f]))
	}

	return "validation failed: " + strings.Join(parts, ", ")
}

// Validate checks rec against the rules. A payload without a file counts as an
// empty value, any other payload as a present one.
func (r Rules) Validate(rec proffer.Record) error {
	failed := map[string]string{}

	for _, field := range slices.Sorted(maps.Keys(r)) {
		v := rec.Get(field)

		switch p := v.(type) {
		case *proffer.Payload:
			if p != nil && p.Error != proffer.UploadErrNoFile {
				continue
			}
			v = ""
		case proffer.Payload:
			if p.Error != proffer.UploadErrNoFile {
				continue
			}
			v = ""
		case nil:
			v = ""
		}

		if err := validate.Var(v, r[field]); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				failed[field] = verrs[0].Tag()
				continue
			}

			return fmt.Errorf("failed to validate %s, %w", field, err)
		}
	}

	if len(failed) > 0 {
		return &ValidationError{Fields: failed}
	}

	return nil
}
