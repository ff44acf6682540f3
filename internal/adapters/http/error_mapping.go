package httpadapter

import (
	"errors"
	"net/http"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

// mapErrorToHTTPStatus translates the error taxonomy into response codes.
// Provider transport failures and unusable model output both surface as 502
// since the upstream service, not the caller, is at fault.
func mapErrorToHTTPStatus(err error) int {
	var providerErr *domain.ProviderError
	var schemaErr *domain.SchemaValidationError

	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrUnsupportedFormat),
		domain.IsKind(err, domain.ErrUnsupportedContent):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &providerErr), errors.As(err, &schemaErr):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
