// File: internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/domain"
)

// Logger is what the handlers log through.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// maxBodyBytes caps request bodies; message content is the largest field.
const maxBodyBytes = 1 << 20

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeChatError maps a controller error to its status code.
func writeChatError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "the server could not store the entity, try again later"
	}
	writeError(w, message, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrNullID), errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, chat.ErrForeignScope), errors.Is(err, chat.ErrLocalOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrIDInUse), errors.Is(err, chat.ErrMessageOutOfOrder):
		return http.StatusConflict
	case errors.Is(err, chat.ErrUnknownConversation):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrUnknownUser):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chat.ErrPersistence), errors.Is(err, chat.ErrIDSpaceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pathID parses the {id} route variable in the given server scope.
func pathID(r *http.Request, server uint32) (domain.ID, error) {
	id, err := domain.ParseID(server, mux.Vars(r)["id"])
	if err != nil {
		return domain.NullID, err
	}
	if id.IsNull() {
		return domain.NullID, chat.ErrNullID
	}
	return id, nil
}
