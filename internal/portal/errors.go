package portal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/billing"
)

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// writeJSONError writes an error response in JSON format.
func writeJSONError(w http.ResponseWriter, statusCode int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// describeError turns an upstream failure into a banner message.
func describeError(err error) string {
	var (
		timeoutErr     *billing.TimeoutError
		unreachableErr *billing.UnreachableError
		decodeErr      *billing.DecodeError
		fetchErr       *billing.FetchError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return "The billing service did not respond in time. Please try again."
	case errors.As(err, &unreachableErr):
		return "The billing service is unreachable. Please try again later."
	case errors.As(err, &decodeErr):
		return "The billing service returned data in an unexpected format."
	case errors.Is(err, billing.ErrNotFound):
		return "The requested record was not found."
	case errors.As(err, &fetchErr):
		return fetchErr.Error()
	}
	return err.Error()
}
