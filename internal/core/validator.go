package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"vonvault/internal/types"
)

// userIDPattern accepts the opaque identifiers issued by the identity service.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:@-]{1,128}$`)

// ValidationError describes one failed rule on one request field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
}

// IsValid reports whether the result has no blocking errors.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator to register domain-specific rules
// and translate failures into AppErrors.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator and registers custom validation tags:
//   - user_id: an identity-service user identifier.
//   - membership_level: one of the defined membership levels, including none.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "user_id", func(fl validator.FieldLevel) bool {
		return userIDPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "membership_level", func(fl validator.FieldLevel) bool {
		_, err := types.ParseMembershipLevel(fl.Field().String())
		return err == nil
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering validation tag %q: %v", tag, err))
	}
}

// ValidateStruct validates s and returns nil or a validation AppError whose code
// is that of the first failure. Every failure is listed under
// Details["validation_errors"].
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings validates s and collects every failure.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: a programming error (nil or non-struct).
		v.logger.Error("struct validation misuse", slog.String("error", err.Error()))
		return ValidationResult{Errors: []ValidationError{{
			Code:    string(types.ErrCodeInternalUnexpected),
			Message: "request could not be validated",
		}}}
	}

	result := ValidationResult{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, translateFieldError(fe))
	}
	return result
}

func translateFieldError(fe validator.FieldError) ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return ValidationError{
			Field:   field,
			Code:    string(types.ErrCodeValidationMissingField),
			Message: fmt.Sprintf("%s is required", field),
		}
	case "gte", "min":
		return ValidationError{
			Field:   field,
			Code:    string(types.ErrCodeValidationInvalidFieldType),
			Message: fmt.Sprintf("%s must be at least %s", field, fe.Param()),
		}
	case "lte", "max":
		return ValidationError{
			Field:   field,
			Code:    string(types.ErrCodeValidationInvalidFieldType),
			Message: fmt.Sprintf("%s must be at most %s", field, fe.Param()),
		}
	case "user_id":
		return ValidationError{
			Field:   field,
			Code:    string(types.ErrCodeValidationInvalidFieldType),
			Message: fmt.Sprintf("%s is not a valid user id", field),
		}
	case "membership_level":
		return ValidationError{
			Field:   field,
			Code:    string(types.ErrCodeValidationInvalidFieldType),
			Message: fmt.Sprintf("%s is not a valid membership level", field),
		}
	default:
		return ValidationError{
			Field:   field,
			Code:    string(types.ErrCodeValidationInvalidFieldType),
			Message: fmt.Sprintf("%s is invalid", field),
		}
	}
}
