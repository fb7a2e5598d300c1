// internal/utils/validator.go
package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var featureKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_.\-]{0,63}$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("feature_key", validateFeatureKey)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// Feature keys are lowercase identifiers such as "reports" or "sso.saml".
func validateFeatureKey(fl validator.FieldLevel) bool {
	return featureKeyPattern.MatchString(fl.Field().String())
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "feature_key":
		return "Feature keys must be lowercase letters, digits, '_', '.' or '-', starting with a letter"
	default:
		return e.Field() + " is invalid"
	}
}
