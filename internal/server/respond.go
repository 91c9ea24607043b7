package server

import (
	"encoding/json"
	"net/http"

	errs "igfeed/pkg/errors"
)

const messageInternal = "internal server error"

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError answers with the kind's status and the error's message.
// Errors without a kind are logged and hidden behind a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := errs.As(err)
	if !ok {
		s.logger.WithError(err).WithField("request_id", RequestID(r.Context())).Error("Unhandled error")
		writeMessage(w, http.StatusInternalServerError, messageInternal)
		return
	}

	status := errs.HTTPStatus(e.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"request_id": RequestID(r.Context()),
			"kind":       string(e.Kind),
		}).Error("Request failed")
	}
	writeMessage(w, status, e.Message)
}
