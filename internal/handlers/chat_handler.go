// File: internal/handlers/chat_handler.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/domain"
)

type ChatHandler struct {
	controller *chat.Controller
	logger     Logger
	markdown   goldmark.Markdown
}

func NewChatHandler(controller *chat.Controller, logger Logger) (*ChatHandler, error) {
	if controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &ChatHandler{
		controller: controller,
		logger:     logger,
		markdown:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

// Register mounts the API on r. Creating routes are wrapped with limitWrites
// when it is not nil.
func (h *ChatHandler) Register(r *mux.Router, limitWrites func(http.Handler) http.Handler) {
	write := func(fn http.HandlerFunc) http.Handler {
		if limitWrites == nil {
			return fn
		}
		return limitWrites(fn)
	}

	r.Handle("/users", write(h.CreateUser)).Methods("POST")
	r.HandleFunc("/users", h.ListUsers).Methods("GET")
	r.HandleFunc("/users/{id}", h.GetUser).Methods("GET")

	r.Handle("/conversations", write(h.CreateConversation)).Methods("POST")
	r.HandleFunc("/conversations", h.ListConversations).Methods("GET")
	r.HandleFunc("/conversations/{id}", h.GetConversation).Methods("GET")
	r.Handle("/conversations/{id}/messages", write(h.PostMessage)).Methods("POST")
	r.HandleFunc("/conversations/{id}/messages", h.GetConversationMessages).Methods("GET")
	r.HandleFunc("/conversations/{id}/transcript", h.GetTranscript).Methods("GET")

	r.HandleFunc("/messages/{id}", h.GetMessage).Methods("GET")
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
}

func (h *ChatHandler) scope() uint32 { return h.controller.ServerID() }

func (h *ChatHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}

	user, err := h.controller.NewUser(r.Context(), req.Name)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *ChatHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(slices.Collect(h.controller.Model().Users())))
}

func (h *ChatHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, h.scope())
	if err != nil {
		writeError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	user, ok := h.controller.Model().User(id)
	if !ok {
		writeError(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Owner string `json:"owner"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	owner, err := domain.ParseID(h.scope(), req.Owner)
	if err != nil {
		writeError(w, "Invalid owner ID", http.StatusBadRequest)
		return
	}

	conversation, err := h.controller.NewConversation(r.Context(), req.Title, owner)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(slices.Collect(h.controller.Model().Conversations())))
}

func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversation, ok := h.lookupConversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

// PostMessage appends a message to the conversation named in the path.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	conversation, err := pathID(r, h.scope())
	if err != nil {
		writeError(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Author string `json:"author"`
		Body   string `json:"body"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	author, err := domain.ParseID(h.scope(), req.Author)
	if err != nil {
		writeError(w, "Invalid author ID", http.StatusBadRequest)
		return
	}

	message, err := h.controller.NewMessage(r.Context(), author, conversation, req.Body)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

// GetConversationMessages returns the conversation's messages in chain order.
func (h *ChatHandler) GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	conversation, ok := h.lookupConversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(slices.Collect(h.controller.Model().Chain(conversation.ID))))
}

// GetTranscript renders the conversation as HTML. Message bodies are markdown.
func (h *ChatHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	conversation, ok := h.lookupConversation(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.renderTranscript(&buf, conversation); err != nil {
		h.logger.Error("[ChatHandler] transcript render failed", "conversation", conversation.ID, "error", err)
		writeError(w, "Could not render transcript", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *ChatHandler) renderTranscript(buf *bytes.Buffer, conversation domain.Conversation) error {
	model := h.controller.Model()

	var src strings.Builder
	fmt.Fprintf(&src, "# %s\n\n", escapeInline(conversation.Title))
	for msg := range model.Chain(conversation.ID) {
		name := msg.Author.String()
		if author, ok := model.User(msg.Author); ok {
			name = author.Name
		}
		fmt.Fprintf(&src, "**%s** _%s_\n\n%s\n\n---\n\n",
			escapeInline(name), msg.Created.Format("2006-01-02 15:04:05 MST"), msg.Content)
	}
	return h.markdown.Convert([]byte(src.String()), buf)
}

func (h *ChatHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, h.scope())
	if err != nil {
		writeError(w, "Invalid message ID", http.StatusBadRequest)
		return
	}
	message, ok := h.controller.Model().Message(id)
	if !ok {
		writeError(w, "Message not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (h *ChatHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": h.scope(),
		"counts": h.controller.Model().Counts(),
	})
}

func (h *ChatHandler) lookupConversation(w http.ResponseWriter, r *http.Request) (domain.Conversation, bool) {
	id, err := pathID(r, h.scope())
	if err != nil {
		writeError(w, "Invalid conversation ID", http.StatusBadRequest)
		return domain.Conversation{}, false
	}
	conversation, ok := h.controller.Model().Conversation(id)
	if !ok {
		writeError(w, "Conversation not found", http.StatusNotFound)
		return domain.Conversation{}, false
	}
	return conversation, true
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

var inlineEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `#`, `\#`, `[`, `\[`, `]`, `\]`)

// escapeInline keeps names and titles from being read as markdown.
func escapeInline(s string) string {
	return inlineEscaper.Replace(strings.ReplaceAll(s, "\n", " "))
}
