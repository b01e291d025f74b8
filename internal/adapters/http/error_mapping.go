package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/docintel/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError hides internal error text behind a generic message for 5xx.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logAttrs := []any{"request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err}
		if status == http.StatusServiceUnavailable {
			message = "service temporarily unavailable"
			slog.Warn("http_handler_unavailable", logAttrs...)
		} else {
			message = "internal server error"
			slog.Error("http_handler_failed", logAttrs...)
		}
	}
	writeJSON(w, status, errorResponse{Error: message})
}
