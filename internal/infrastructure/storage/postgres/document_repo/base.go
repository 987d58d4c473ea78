// Package document_repo stores inventory sessions and their rows.
package document_repo

import (
	"strings"

	"github.com/Masterminds/squirrel"

	"pharmastock/internal/core/apperror"
)

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// parseOrderBy turns "-col" / "+col" / "col" into an ORDER BY clause,
// accepting only whitelisted columns.
func parseOrderBy(orderBy, fallback string, allowed map[string]bool) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return fallback, nil
	}

	direction := "ASC"
	field := orderBy
	switch {
	case strings.HasPrefix(orderBy, "-"):
		direction = "DESC"
		field = orderBy[1:]
	case strings.HasPrefix(orderBy, "+"):
		field = orderBy[1:]
	}

	field = strings.TrimSpace(field)
	if !allowed[field] {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("field", field)
	}
	return field + " " + direction, nil
}
