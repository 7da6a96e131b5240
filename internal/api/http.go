package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/marketplace/internal/apperr"
)

const maxBodyBytes = 1 << 20

var errorCounter, _ = otel.Meter("marketplace/api").Int64Counter("api.errors",
	metric.WithDescription("Errors returned at the API boundary, by kind"),
)

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func WriteOK[T any](w http.ResponseWriter, logger *slog.Logger, message string, data T) {
	write(w, logger, http.StatusOK, OK(message, data))
}

func WriteCreated[T any](w http.ResponseWriter, logger *slog.Logger, message string, data T) {
	write(w, logger, http.StatusCreated, OK(message, data))
}

func WritePage[T any](w http.ResponseWriter, logger *slog.Logger, message string, items []T, meta PaginationMeta) {
	write(w, logger, http.StatusOK, Paged(message, items, meta))
}

// WriteError is the error boundary. Operational errors are sent with their
// status, message and field errors. Anything else is logged and reported as
// a generic 500 without detail.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr, ok := apperr.As(err)
	if !ok || !appErr.Operational() {
		logger.Error("unhandled error", "error", err)
		recordError(context.Background(), apperr.KindInternal)
		write(w, logger, http.StatusInternalServerError, Fail("Internal server error", nil))
		return
	}

	if appErr.Err != nil {
		logger.Debug("request failed", "kind", appErr.Kind.String(), "error", appErr.Err)
	}
	recordError(context.Background(), appErr.Kind)
	write(w, logger, appErr.StatusCode(), Fail(appErr.Message, appErr.Fields))
}

func recordError(ctx context.Context, kind apperr.Kind) {
	if errorCounter == nil {
		return
	}
	errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func write(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	if err := WriteJSON(w, status, v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// DecodeJSON reads a JSON request body into dst. Malformed input is a
// Validation error on the body.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Validation(apperr.FieldError{Field: "body", Message: "must not be empty"})
		case errors.As(err, &maxErr):
			return apperr.Validation(apperr.FieldError{Field: "body", Message: "is too large"})
		default:
			return apperr.Validation(apperr.FieldError{Field: "body", Message: "invalid request body: " + err.Error()})
		}
	}
	return nil
}

// PathUUID returns the named path value. A value that is not a UUID cannot
// name a stored record, so it is reported as NotFound for resource.
func PathUUID(r *http.Request, name, resource string) (string, error) {
	id := r.PathValue(name)
	if uuid.Validate(id) != nil {
		return "", apperr.NotFound(resource + " not found")
	}
	return id, nil
}
