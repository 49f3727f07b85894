// File: internal/chat/model.go
package chat

import (
	"iter"
	"sync"

	"github.com/iyunix/go-relaychat/internal/domain"
)

// Model is the in-memory index of every user, conversation and message.
// Each kind lives in an append-only arena addressed by handle, with an
// id -> handle map for O(1) lookup. Model enforces no business rules; only the
// Controller in this package mutates it.
//
// Readers get copies, so nothing outside the package can alias arena slots.
type Model struct {
	mu sync.RWMutex

	userByID map[domain.ID]int
	users    []domain.User

	conversationByID map[domain.ID]int
	conversations    []domain.Conversation

	messageByID map[domain.ID]int
	messages    []domain.Message
}

func NewModel() *Model {
	return &Model{
		userByID:         make(map[domain.ID]int),
		conversationByID: make(map[domain.ID]int),
		messageByID:      make(map[domain.ID]int),
	}
}

// Counts is a point-in-time size of each index.
type Counts struct {
	Users         int `json:"users"`
	Conversations int `json:"conversations"`
	Messages      int `json:"messages"`
}

func (m *Model) Counts() Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Counts{Users: len(m.users), Conversations: len(m.conversations), Messages: len(m.messages)}
}

func (m *Model) User(id domain.ID) (domain.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.userByID[id]
	if !ok {
		return domain.User{}, false
	}
	return m.users[h], true
}

func (m *Model) Conversation(id domain.ID) (domain.Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.conversationByID[id]
	if !ok {
		return domain.Conversation{}, false
	}
	return m.conversations[h].Clone(), true
}

func (m *Model) Message(id domain.ID) (domain.Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.messageByID[id]
	if !ok {
		return domain.Message{}, false
	}
	return m.messages[h], true
}

// InUse reports whether any kind of entity already holds id.
func (m *Model) InUse(id domain.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inUseLocked(id)
}

func (m *Model) inUseLocked(id domain.ID) bool {
	if _, ok := m.userByID[id]; ok {
		return true
	}
	if _, ok := m.conversationByID[id]; ok {
		return true
	}
	_, ok := m.messageByID[id]
	return ok
}

// Users yields users in insertion order. The sequence is bounded by the size
// of the index when iteration starts and can be ranged over again.
func (m *Model) Users() iter.Seq[domain.User] {
	return func(yield func(domain.User) bool) {
		n := m.Counts().Users
		for i := 0; i < n; i++ {
			m.mu.RLock()
			u := m.users[i]
			m.mu.RUnlock()
			if !yield(u) {
				return
			}
		}
	}
}

func (m *Model) Conversations() iter.Seq[domain.Conversation] {
	return func(yield func(domain.Conversation) bool) {
		n := m.Counts().Conversations
		for i := 0; i < n; i++ {
			m.mu.RLock()
			c := m.conversations[i].Clone()
			m.mu.RUnlock()
			if !yield(c) {
				return
			}
		}
	}
}

func (m *Model) Messages() iter.Seq[domain.Message] {
	return func(yield func(domain.Message) bool) {
		n := m.Counts().Messages
		for i := 0; i < n; i++ {
			m.mu.RLock()
			msg := m.messages[i]
			m.mu.RUnlock()
			if !yield(msg) {
				return
			}
		}
	}
}

// Chain walks a conversation from its first message along Next.
func (m *Model) Chain(conversation domain.ID) iter.Seq[domain.Message] {
	return func(yield func(domain.Message) bool) {
		c, ok := m.Conversation(conversation)
		if !ok {
			return
		}
		for id := c.FirstMessage; !id.IsNull(); {
			msg, ok := m.Message(id)
			if !ok || !yield(msg) {
				return
			}
			id = msg.Next
		}
	}
}

// update runs fn with exclusive access to the arenas.
func (m *Model) update(fn func(tx modelTx)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(modelTx{m: m})
}

// modelTx exposes the append and pointer primitives while the write lock is held.
type modelTx struct {
	m *Model
}

func (tx modelTx) addUser(u domain.User) {
	tx.m.userByID[u.ID] = len(tx.m.users)
	tx.m.users = append(tx.m.users, u)
}

func (tx modelTx) addConversation(c domain.Conversation) {
	tx.m.conversationByID[c.ID] = len(tx.m.conversations)
	tx.m.conversations = append(tx.m.conversations, c.Clone())
}

func (tx modelTx) addMessage(msg domain.Message) {
	tx.m.messageByID[msg.ID] = len(tx.m.messages)
	tx.m.messages = append(tx.m.messages, msg)
}

// conversation returns the arena slot for id, or nil.
func (tx modelTx) conversation(id domain.ID) *domain.Conversation {
	h, ok := tx.m.conversationByID[id]
	if !ok {
		return nil
	}
	return &tx.m.conversations[h]
}

func (tx modelTx) message(id domain.ID) *domain.Message {
	h, ok := tx.m.messageByID[id]
	if !ok {
		return nil
	}
	return &tx.m.messages[h]
}
