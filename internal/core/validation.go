package core

// validation.go checks candidate items against their column specs before
// batching. Validators are pure: no I/O, no mutation of the item, and the
// same item always yields the same result. Checks that need the store,
// such as referenced order numbers, belong to the domain processor.

import (
	"fmt"
	"strings"
)

// ValidationResult is the outcome of validating one item.
type ValidationResult struct {
	Valid bool
	Error *ValidationError // nil when Valid
}

// Reason returns the failure message, or "" for a valid item.
func (r ValidationResult) Reason() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// Validator validates one candidate item. It stops at the first failure.
type Validator func(CandidateItem) ValidationResult

// Rule is a domain-specific check run after the column checks pass.
type Rule func(CandidateItem) *ValidationError

// NewValidator builds a validator from column specs plus extra rules.
func NewValidator(cols []ColumnSpec, rules ...Rule) Validator {
	return func(item CandidateItem) ValidationResult {
		for _, col := range cols {
			if err := validateField(item, col); err != nil {
				return ValidationResult{Error: err}
			}
		}
		for _, rule := range rules {
			if err := rule(item); err != nil {
				if err.Line == 0 {
					err.Line = item.Line
				}
				return ValidationResult{Error: err}
			}
		}
		return ValidationResult{Valid: true}
	}
}

func validateField(item CandidateItem, col ColumnSpec) *ValidationError {
	value := item.Get(col.Name)
	if value == "" {
		if col.Required {
			return &ValidationError{Line: item.Line, Field: col.Name, Message: "required field is empty"}
		}
		return nil
	}

	if err := ValidateCell(value, col); err != nil {
		return &ValidationError{Line: item.Line, Field: col.Name, Value: value, Message: err.Error()}
	}
	return nil
}

// ValidateCell validates a single non-empty value against a column spec.
func ValidateCell(value string, col ColumnSpec) error {
	if value == "" {
		return nil
	}

	switch col.Type {
	case FieldNumeric:
		n := ToPgNumeric(value)
		if !n.Valid {
			return fmt.Errorf("invalid number %q", value)
		}
		if col.NonNegative && IsNegative(n) {
			return fmt.Errorf("must not be negative, got %s", value)
		}
	case FieldInteger:
		v, err := ParseWholeNumber(value)
		if err != nil {
			return fmt.Errorf("invalid number %q: %v", value, err)
		}
		if col.NonNegative && v < 0 {
			return fmt.Errorf("must not be negative, got %s", value)
		}
	case FieldDate:
		if !ToPgDate(value).Valid {
			return fmt.Errorf("invalid date %q (use YYYY-MM-DD or similar)", value)
		}
	case FieldEnum:
		for _, ev := range col.EnumValues {
			if strings.EqualFold(ev, value) {
				return nil
			}
		}
		return fmt.Errorf("invalid value %q, must be one of: %s", value, strings.Join(col.EnumValues, ", "))
	}
	return nil
}
