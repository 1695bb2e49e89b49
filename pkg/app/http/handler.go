// Package http adapts error-returning handlers to net/http and serves them.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/chainsafe/xchain-orchestrator/pkg/app/errors"
)

// HandlerFunc is an http handler that reports failure by returning an error.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// HandleError turns h into an http.HandlerFunc that renders returned errors
// with DefaultErrorHandler.
//
//	r.Post("/transfers", apphttp.HandleError(h.accept))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

// DefaultErrorHandler writes err as {"error", "code"}. Errors that are not
// a ServiceError are rendered as a general error without their detail.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError
	if !errors.As(err, &svcErr) {
		_ = errors.As(apperrors.GeneralError(err), &svcErr)
	}
	code := svcErr.StatusCode()
	WriteJSON(w, code, &errorResponse{Error: svcErr.Message, Code: code})
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
