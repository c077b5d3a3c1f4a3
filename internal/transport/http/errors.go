package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "canmlio/internal/errors"
	"canmlio/internal/middleware"
)

// problem is an RFC 7807 error body.
type problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeProblem renders a problem response. It bypasses chi's render so
// the problem+json content type survives.
func writeProblem(w http.ResponseWriter, r *http.Request, p *problem) {
	if p.RequestID == "" {
		p.RequestID = middleware.GetRequestID(r.Context())
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}

// renderError maps pipeline errors onto HTTP statuses: missing inputs
// are 404, bad requests 400, malformed dictionaries 422, and sink or
// streaming failures 500.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	title := "Internal Server Error"
	errType := "/errors/internal"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrTypeNotFound:
			status, title, errType = http.StatusNotFound, "Not Found", "/errors/not-found"
		case apperrors.ErrTypeValidation, apperrors.ErrTypeDuplicateName, apperrors.ErrTypeUnknownSignal:
			status, title, errType = http.StatusBadRequest, "Bad Request", "/errors/bad-request"
		case apperrors.ErrTypeFormat:
			status, title, errType = http.StatusUnprocessableEntity, "Unprocessable Dictionary", "/errors/bad-dictionary"
		case apperrors.ErrTypeWrite:
			status, title, errType = http.StatusInternalServerError, "Export Failed", "/errors/export"
		case apperrors.ErrTypeProcessing:
			status, title, errType = http.StatusInternalServerError, "Processing Failed", "/errors/processing"
		}
	}

	writeProblem(w, r, &problem{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: err.Error(),
	})
}
