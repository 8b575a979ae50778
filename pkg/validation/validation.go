package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"materiel-inventory-api/internal/model"
)

// Field length limits
const (
	MaxIDLength    = 64
	MaxFieldLength = 255
)

// ValidateRequired checks if a string field is not empty
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateRecordID validates a record identifier
func ValidateRecordID(id string) error {
	if err := ValidateRequired("id", id); err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(id)) > MaxIDLength {
		return fmt.Errorf("id cannot exceed %d characters", MaxIDLength)
	}
	return nil
}

// ValidateFieldLength checks that a free-text field stays within MaxFieldLength
func ValidateFieldLength(fieldName, value string) error {
	if utf8.RuneCountInString(value) > MaxFieldLength {
		return fmt.Errorf("%s cannot exceed %d characters", fieldName, MaxFieldLength)
	}
	return nil
}

// ValidateRecordInput validates a create or update payload. Problems are
// keyed by JSON field name. Quantity is never rejected: invalid values are
// coerced during normalization.
func ValidateRecordInput(input *model.RecordInput) map[string]string {
	problems := make(map[string]string)

	if err := ValidateRecordID(input.ID); err != nil {
		problems["id"] = err.Error()
	}

	fields := map[string]string{
		"type":         input.Type,
		"usage":        input.Usage,
		"modele":       input.Model,
		"marque":       input.Brand,
		"numero_serie": input.SerialNumber,
		"statut":       input.Status,
		"lieu":         input.Location,
		"affectation":  input.Assignment,
	}
	for name, value := range fields {
		if err := ValidateFieldLength(name, value); err != nil {
			problems[name] = err.Error()
		}
	}

	return problems
}
