package contextutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags of a struct and folds any failures
// into a single validation AppError naming the offending fields.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return WrapErrorf(ErrValidationFailed, "validation failed: %s", strings.Join(details, ", "))
	}
	return WrapError(err, "validation failed")
}
