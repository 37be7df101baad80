package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/William6892/barcodeverify-backend/internal/carriers"
	"github.com/William6892/barcodeverify-backend/internal/reports"
	"github.com/William6892/barcodeverify-backend/internal/shipping"
	"github.com/William6892/barcodeverify-backend/internal/users"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// respondError maps domain errors to status codes in one place. Anything
// unrecognized is a 500 with the detail kept out of the response body.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		transition *shipping.InvalidTransitionError
		state      *shipping.InvalidStateError
		conflict   *shipping.ConflictError
		plate      *carriers.PlateConflictError
	)
	switch {
	case errors.Is(err, shipping.ErrNotFound),
		errors.Is(err, reports.ErrNotFound),
		errors.Is(err, carriers.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")

	case errors.As(err, &transition):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":            "invalid status transition",
			"from":             transition.From,
			"to":               transition.To,
			"allowed_statuses": transition.Allowed,
		})

	case errors.As(err, &state):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":            err.Error(),
			"status":           state.Status,
			"allowed_statuses": state.Allowed,
		})

	case errors.Is(err, shipping.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            conflict.Message,
			"existing_product": conflict.Existing,
		})

	case errors.As(err, &plate):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            plate.Error(),
			"existing_company": plate.Existing,
		})

	case errors.Is(err, users.ErrUsernameTaken), errors.Is(err, users.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, shipping.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")

	case errors.Is(err, users.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")

	case errors.Is(err, users.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session expired")

	default:
		log.Printf("http %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
