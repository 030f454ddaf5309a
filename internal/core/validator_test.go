package core

import (
	"errors"
	"strings"
	"testing"

	"vonvault/internal/types"
)

type validatorFixture struct {
	UserID string `json:"user_id" validate:"required,user_id"`
	Name   string `json:"name" validate:"max=10"`
	Term   *int   `json:"term" validate:"required,gte=1,lte=120"`
	Level  string `json:"membership_level" validate:"omitempty,membership_level"`
}

func intPtr(v int) *int { return &v }

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(testLogger())

	err := v.ValidateStruct(validatorFixture{UserID: "user_abc-1", Name: "Growth", Term: intPtr(12), Level: "club"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStruct_Failures(t *testing.T) {
	tests := []struct {
		name        string
		input       validatorFixture
		wantCode    types.ErrorCode
		wantField   string
		wantMessage string
	}{
		{
			name:        "missing user id",
			input:       validatorFixture{Term: intPtr(12)},
			wantCode:    types.ErrCodeValidationMissingField,
			wantField:   "user_id",
			wantMessage: "user_id is required",
		},
		{
			name:        "malformed user id",
			input:       validatorFixture{UserID: "has spaces", Term: intPtr(12)},
			wantCode:    types.ErrCodeValidationInvalidFieldType,
			wantField:   "user_id",
			wantMessage: "user_id is not a valid user id",
		},
		{
			name:        "missing term",
			input:       validatorFixture{UserID: "u1"},
			wantCode:    types.ErrCodeValidationMissingField,
			wantField:   "term",
			wantMessage: "term is required",
		},
		{
			name:        "term too small",
			input:       validatorFixture{UserID: "u1", Term: intPtr(0)},
			wantCode:    types.ErrCodeValidationInvalidFieldType,
			wantField:   "term",
			wantMessage: "term must be at least 1",
		},
		{
			name:        "term too large",
			input:       validatorFixture{UserID: "u1", Term: intPtr(121)},
			wantCode:    types.ErrCodeValidationInvalidFieldType,
			wantField:   "term",
			wantMessage: "term must be at most 120",
		},
		{
			name:        "name too long",
			input:       validatorFixture{UserID: "u1", Term: intPtr(12), Name: "A Very Long Plan"},
			wantCode:    types.ErrCodeValidationInvalidFieldType,
			wantField:   "name",
			wantMessage: "name must be at most 10",
		},
		{
			name:        "unknown membership level",
			input:       validatorFixture{UserID: "u1", Term: intPtr(12), Level: "platinum"},
			wantCode:    types.ErrCodeValidationInvalidFieldType,
			wantField:   "membership_level",
			wantMessage: "membership_level is not a valid membership level",
		},
	}

	v := NewValidator(testLogger())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStruct(tc.input)
			if err == nil {
				t.Fatal("expected validation error")
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %T", err)
			}
			if appErr.Code != tc.wantCode {
				t.Errorf("expected code %q, got %q", tc.wantCode, appErr.Code)
			}
			if appErr.Message != tc.wantMessage {
				t.Errorf("expected message %q, got %q", tc.wantMessage, appErr.Message)
			}

			details, ok := appErr.Details["validation_errors"].([]ValidationError)
			if !ok || len(details) == 0 {
				t.Fatalf("expected validation_errors detail, got %v", appErr.Details)
			}
			if details[0].Field != tc.wantField {
				t.Errorf("expected field %q, got %q", tc.wantField, details[0].Field)
			}
		})
	}
}

func TestValidateStructWithWarnings_CollectsAllErrors(t *testing.T) {
	v := NewValidator(testLogger())

	result := v.ValidateStructWithWarnings(validatorFixture{Name: strings.Repeat("x", 11)})
	if result.IsValid() {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) != 3 {
		t.Errorf("expected 3 errors (user_id, name, term), got %d: %+v", len(result.Errors), result.Errors)
	}
}

func TestValidateStructWithWarnings_NonStruct(t *testing.T) {
	v := NewValidator(testLogger())

	result := v.ValidateStructWithWarnings("not a struct")
	if result.IsValid() {
		t.Fatal("expected invalid result for non-struct input")
	}
	if result.Errors[0].Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected internal code, got %q", result.Errors[0].Code)
	}
}

func TestValidationErrorCodesMapTo400(t *testing.T) {
	for _, code := range []types.ErrorCode{types.ErrCodeValidationMissingField, types.ErrCodeValidationInvalidFieldType} {
		if code.HTTPStatus() != 400 {
			t.Errorf("%s: expected 400, got %d", code, code.HTTPStatus())
		}
	}
}
