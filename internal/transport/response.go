package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpggio/weekly/internal/apierror"
)

// ErrorResponse wraps an APIError in the response body.
type ErrorResponse struct {
	Error *apierror.APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := apierror.Map(err)
	writeJSON(w, apiErr.Status(), ErrorResponse{Error: apiErr})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

func badRequest(msg string) *apierror.APIError {
	return &apierror.APIError{Code: apierror.CodeInvalidArgument, Message: msg}
}
