/*
Package resp writes the standard JSON envelope used by every HTTP endpoint.

Successful responses carry code 0 and a data payload; failures carry the
business code and client-facing message of an errs.CustomError.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"relaychat/internal/pkg/errs"
)

// JSONResponse is the body shape of every API response.
type JSONResponse struct {
	// Code is 0 on success, otherwise an errs code.
	Code int `json:"code"`

	Message string `json:"message"`

	Data any `json:"data,omitempty"`
}

// RespondJSON encodes payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	body, err := json.Marshal(payload)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Int("http_status", httpStatus).
			Msg("Error encoding JSON response")

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	_, _ = w.Write(body)
}

// RespondSuccess sends data with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// RespondError sends customErr with its HTTP status. A nil error is reported as ErrUnknown.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

// RespondErr converts any error with errs.From and sends it.
func RespondErr(w http.ResponseWriter, r *http.Request, err error) {
	RespondError(w, r, errs.From(err))
}
