// File: internal/handlers/relay_handler.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/domain"
	"github.com/iyunix/go-relaychat/internal/middleware"
)

// RelayHandler accepts entities whose id and creation time were already
// decided elsewhere. Ids must belong to this server's scope: storage keeps the
// local part only, so a foreign scope could not survive a restart.
type RelayHandler struct {
	controller *chat.Controller
	logger     Logger
}

func NewRelayHandler(controller *chat.Controller, logger Logger) (*RelayHandler, error) {
	if controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &RelayHandler{controller: controller, logger: logger}, nil
}

// Register mounts the relay routes on r. Authentication is the caller's job.
func (h *RelayHandler) Register(r *mux.Router) {
	r.HandleFunc("/users", h.RelayUser).Methods("POST")
	r.HandleFunc("/conversations", h.RelayConversation).Methods("POST")
	r.HandleFunc("/messages", h.RelayMessage).Methods("POST")
}

// parse reads ids in this server's scope and refuses any other scope.
func (h *RelayHandler) parse(raw ...string) ([]domain.ID, error) {
	ids := make([]domain.ID, len(raw))
	for i, s := range raw {
		id, err := domain.ParseID(h.controller.ServerID(), s)
		if err != nil {
			return nil, err
		}
		if !id.IsNull() && id.Server != h.controller.ServerID() {
			return nil, fmt.Errorf("%w: %s is outside server scope %d", domain.ErrInvalidID, id, h.controller.ServerID())
		}
		ids[i] = id
	}
	return ids, nil
}

func (h *RelayHandler) peer(r *http.Request) string {
	peer, _ := r.Context().Value(middleware.RelayPeerKey).(string)
	return peer
}

func (h *RelayHandler) RelayUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Created int64  `json:"created"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ids, err := h.parse(req.ID)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.controller.ReplayUser(r.Context(), ids[0], req.Name, domain.FromMillis(req.Created))
	if err != nil {
		h.logger.Warn("[RelayHandler] user rejected", "peer", h.peer(r), "id", req.ID, "error", err)
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *RelayHandler) RelayConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Owner   string `json:"owner"`
		Created int64  `json:"created"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ids, err := h.parse(req.ID, req.Owner)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	conversation, err := h.controller.ReplayConversation(r.Context(), ids[0], req.Title, ids[1], domain.FromMillis(req.Created))
	if err != nil {
		h.logger.Warn("[RelayHandler] conversation rejected", "peer", h.peer(r), "id", req.ID, "error", err)
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

func (h *RelayHandler) RelayMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string `json:"id"`
		Author       string `json:"author"`
		Conversation string `json:"conversation"`
		Body         string `json:"body"`
		Created      int64  `json:"created"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ids, err := h.parse(req.ID, req.Author, req.Conversation)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	message, err := h.controller.ReplayMessage(r.Context(), ids[0], ids[1], ids[2], req.Body, domain.FromMillis(req.Created))
	if err != nil {
		h.logger.Warn("[RelayHandler] message rejected", "peer", h.peer(r), "id", req.ID, "error", err)
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}
