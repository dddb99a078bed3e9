package domain

import "github.com/salesagentco/platform/internal/apperr"

func errRequired(field string) error {
	return apperr.Validation(field + " is required")
}

func errInvalidEnum(field, value string) error {
	return apperr.Validation("invalid " + field + ": " + value)
}
