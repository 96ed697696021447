package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labelhive/labelhive/pkg/models"
)

// APIError represents an error response.
type APIError struct {
	Message string `json:"message"`
}

// extractQueryStringValueToInt extracts a query string value and converts it
// to an int if it is not empty. If the value is empty, it returns 0.
func extractQueryStringValueToInt(
	r *http.Request,
	param string,
) (int, error) {
	p := r.URL.Query().Get(param)
	if p == "" {
		return 0, nil
	}
	pInt, err := strconv.ParseInt(p, 10, 32)
	if err != nil {
		return 0, err
	}
	return int(pInt), nil
}

// extractQueryStringValueToFloat extracts a query string value and converts it
// to a float64 if it is not empty. Returns found=false when the value is empty
// so callers can fall back to a configured default.
func extractQueryStringValueToFloat(
	r *http.Request,
	param string,
) (float64, bool, error) {
	p := r.URL.Query().Get(param)
	if p == "" {
		return 0, false, nil
	}
	pFloat, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return 0, false, err
	}
	return pFloat, true, nil
}

// encodeJSON encodes data into JSON and writes it to the response writer.
func encodeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes a JSON request body into the provided data struct.
func decodeJSON(r *http.Request, data interface{}) error {
	return json.NewDecoder(r.Body).Decode(&data)
}

// renderError renders an error response. Domain errors for missing data map
// to 404 regardless of the status the caller suggested.
func renderError(w http.ResponseWriter, err error, status int) {
	if errors.Is(err, models.ErrNoData) || errors.Is(err, models.ErrNotFound) {
		status = http.StatusNotFound
	}
	if status != http.StatusNotFound {
		// Don't log not found errors
		log.Error(err)
	}
	http.Error(w, err.Error(), status)
}

// renderStoreError maps store and engine errors onto HTTP statuses: bad input
// is the caller's fault, missing data is 404, anything else is a 500.
func renderStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNoData), errors.Is(err, models.ErrNotFound):
		renderError(w, err, http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidEmbedding), errors.Is(err, models.ErrDegenerateVector):
		renderError(w, err, http.StatusBadRequest)
	default:
		renderError(w, err, http.StatusInternalServerError)
	}
}
