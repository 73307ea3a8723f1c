package exporthttp

import (
	"encoding/json"
	"net/http"

	errorslib "github.com/goliatone/go-errors"
	"github.com/goliatone/go-report-export/export"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WriteError answers with a JSON error body. Pipeline failures only expose
// their generic message.
func WriteError(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ge := export.AsGoError(err)
	payload := errorResponse{
		Error: errorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForError(ge))
	_ = json.NewEncoder(w).Encode(payload)
}

// StatusForError maps a go-errors category to an HTTP status.
func StatusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.Category {
	case errorslib.CategoryValidation, errorslib.CategoryBadInput:
		return http.StatusBadRequest
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryOperation:
		if err.TextCode == "canceled" {
			return http.StatusConflict
		}
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
