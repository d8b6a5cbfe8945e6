package httpx

import (
	"errors"
	"net/http"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

// RespondError maps document domain errors onto RFC7807 responses. Anything
// unrecognised becomes an opaque 500 so internals never leak to callers.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, documents.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, documents.ErrAlreadyConverted):
		Problem(w, http.StatusConflict, "Already Converted", err.Error())
	case errors.Is(err, documents.ErrInvalidState):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, documents.ErrImmutable):
		Problem(w, http.StatusConflict, "Document Locked", err.Error())
	case errors.Is(err, documents.ErrNumberAllocation):
		Problem(w, http.StatusServiceUnavailable, "Number Allocation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
