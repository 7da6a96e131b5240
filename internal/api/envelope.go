// Package api defines the response envelope, the pagination contract and the
// HTTP boundary that turns errors into enveloped replies.
package api

import "github.com/joao-fontenele/marketplace/internal/apperr"

// Response is the single shape of every API reply. Data is set only on
// success; Meta only for list endpoints.
type Response[T any] struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    *T                  `json:"data,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
	Meta    *PaginationMeta     `json:"meta,omitempty"`
}

func OK[T any](message string, data T) Response[T] {
	return Response[T]{Success: true, Message: message, Data: &data}
}

// Paged wraps a page of items. A nil slice is sent as an empty list.
func Paged[T any](message string, items []T, meta PaginationMeta) Response[[]T] {
	if items == nil {
		items = []T{}
	}
	return Response[[]T]{Success: true, Message: message, Data: &items, Meta: &meta}
}

func Fail(message string, errs []apperr.FieldError) Response[any] {
	return Response[any]{Success: false, Message: message, Errors: errs}
}

func (r Response[T]) WithMeta(meta PaginationMeta) Response[T] {
	r.Meta = &meta
	return r
}

// Err returns nil for a successful response and the failure as an
// *apperr.Error otherwise. status is the HTTP status the envelope came with.
func (r Response[T]) Err(status int) error {
	if r.Success {
		return nil
	}
	return apperr.FromStatus(status, r.Message, r.Errors)
}
