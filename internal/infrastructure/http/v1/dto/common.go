// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"pharmastock/internal/core/apperror"
	"pharmastock/internal/core/id"
)

// ListResponse wraps a page of results.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// ItemsResponse wraps an unpaged list.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

// NewItemsResponse never renders a null list.
func NewItemsResponse[T any](items []T) ItemsResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ItemsResponse[T]{Items: items}
}

// CountResponse carries a count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ParseID parses a path or body id, naming field in the validation error.
func ParseID(raw, field string) (id.ID, error) {
	parsed, err := id.Parse(raw)
	if err != nil {
		return id.Nil, apperror.NewValidation("invalid id format").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return parsed, nil
}

// ParseOptionalID parses an id that may be absent.
func ParseOptionalID(raw *string, field string) (*id.ID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := ParseID(*raw, field)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
