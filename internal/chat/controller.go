// File: internal/chat/controller.go
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iyunix/go-relaychat/internal/domain"
	"github.com/iyunix/go-relaychat/internal/identity"
	"github.com/iyunix/go-relaychat/internal/metrics"
)

const (
	kindUser         = "user"
	kindConversation = "conversation"
	kindMessage      = "message"
)

// persistMode says whether a creation must be written to the gateway first.
// Live and relayed creations persist; bootstrap replays rows that are already
// durable.
type persistMode int

const (
	persist persistMode = iota
	restoreOnly
)

// Controller is the only component that mutates the Model. Every creation is
// validated, saved through the gateway and only then applied to the Model.
// Mutations are serialized by one lock held across validate, save and apply.
type Controller struct {
	mu sync.Mutex

	config  *Config
	model   *Model
	gateway PersistenceGateway
	ids     identity.Generator
	logger  Logger
	metrics *metrics.Metrics

	// lastCreated is the newest creation time accepted so far. Generative
	// creations are stamped strictly after it.
	lastCreated time.Time
}

// scoped is implemented by generators bound to one server scope.
type scoped interface {
	Server() uint32
}

func NewController(
	cfg *Config,
	model *Model,
	gateway PersistenceGateway,
	ids identity.Generator,
	logger Logger,
	m *metrics.Metrics,
) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("persistence gateway is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if g, ok := ids.(scoped); ok && g.Server() != cfg.ServerID {
		return nil, fmt.Errorf("id generator scope %d does not match server id %d", g.Server(), cfg.ServerID)
	}

	return &Controller{
		config:  cfg,
		model:   model,
		gateway: gateway,
		ids:     ids,
		logger:  logger,
		metrics: m,
	}, nil
}

// Model exposes the read accessors. Mutation goes through the controller.
func (c *Controller) Model() *Model { return c.model }

func (c *Controller) ServerID() uint32 { return c.config.ServerID }

// BuildID scopes a stored local value to this server.
func (c *Controller) BuildID(local uint64) domain.ID {
	return domain.NewID(c.config.ServerID, local)
}

// --- Generative entry points ---

func (c *Controller) NewUser(ctx context.Context, name string) (*domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.createID("new_user")
	if err != nil {
		return nil, c.fail(kindUser, err, "name", name)
	}
	return c.createUser(ctx, id, name, c.now(), persist)
}

func (c *Controller) NewConversation(ctx context.Context, title string, owner domain.ID) (*domain.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.createID("new_conversation")
	if err != nil {
		return nil, c.fail(kindConversation, err, "title", title, "owner", owner)
	}
	return c.createConversation(ctx, id, title, owner, c.now(), persist)
}

func (c *Controller) NewMessage(ctx context.Context, author, conversation domain.ID, body string) (*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, err := c.createID("new_message")
	if err != nil {
		return nil, c.fail(kindMessage, err, "author", author, "conversation", conversation)
	}
	return c.createMessage(ctx, id, author, conversation, body, c.now(), persist)
}

// --- Replay entry points (explicit id and time) ---

func (c *Controller) ReplayUser(ctx context.Context, id domain.ID, name string, created time.Time) (*domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createUser(ctx, id, name, created, persist)
}

func (c *Controller) ReplayConversation(ctx context.Context, id domain.ID, title string, owner domain.ID, created time.Time) (*domain.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createConversation(ctx, id, title, owner, created, persist)
}

func (c *Controller) ReplayMessage(ctx context.Context, id, author, conversation domain.ID, body string, created time.Time) (*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createMessage(ctx, id, author, conversation, body, created, persist)
}

// restore* run the replay path for rows that already live in the store.
func (c *Controller) restoreUser(ctx context.Context, id domain.ID, name string, created time.Time) (*domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createUser(ctx, id, name, created, restoreOnly)
}

func (c *Controller) restoreConversation(ctx context.Context, id domain.ID, title string, owner domain.ID, created time.Time) (*domain.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createConversation(ctx, id, title, owner, created, restoreOnly)
}

func (c *Controller) restoreMessage(ctx context.Context, id, author, conversation domain.ID, body string, created time.Time) (*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createMessage(ctx, id, author, conversation, body, created, restoreOnly)
}

// --- Shared cores. Callers hold c.mu. ---

func (c *Controller) createUser(ctx context.Context, id domain.ID, name string, created time.Time, mode persistMode) (*domain.User, error) {
	const op = "new_user"
	if err := c.checkIDFree(op, id); err != nil {
		return nil, c.fail(kindUser, err, "id", id, "name", name)
	}

	user := domain.User{ID: id, Name: strings.TrimSpace(name), Created: domain.NormalizeTime(created)}

	if mode == persist {
		if err := c.gateway.SaveUser(ctx, user); err != nil {
			return nil, c.fail(kindUser, newError(ErrKindPersistence, op, id, ErrPersistence, err),
				"id", id, "name", user.Name)
		}
	}

	c.model.update(func(tx modelTx) { tx.addUser(user) })
	c.accepted(kindUser, id, user.Created)
	c.logger.Info("user created", "id", id, "name", user.Name, "created", user.Created)
	return &user, nil
}

func (c *Controller) createConversation(ctx context.Context, id domain.ID, title string, owner domain.ID, created time.Time, mode persistMode) (*domain.Conversation, error) {
	const op = "new_conversation"
	if err := c.checkIDFree(op, id); err != nil {
		return nil, c.fail(kindConversation, err, "id", id, "owner", owner)
	}
	foundOwner, ok := c.model.User(owner)
	if !ok {
		err := newError(ErrKindUnknownReference, op, id, ErrUnknownUser, fmt.Errorf("owner %s", owner))
		return nil, c.fail(kindConversation, err, "id", id, "owner", owner)
	}

	conversation := domain.Conversation{
		ID:           id,
		Owner:        foundOwner.ID,
		Created:      domain.NormalizeTime(created),
		Title:        strings.TrimSpace(title),
		FirstMessage: domain.NullID,
		LastMessage:  domain.NullID,
		Participants: []domain.ID{},
	}

	if mode == persist {
		if err := c.gateway.SaveConversation(ctx, conversation); err != nil {
			return nil, c.fail(kindConversation, newError(ErrKindPersistence, op, id, ErrPersistence, err),
				"id", id, "title", conversation.Title, "owner", owner)
		}
	}

	c.model.update(func(tx modelTx) { tx.addConversation(conversation) })
	c.accepted(kindConversation, id, conversation.Created)
	c.logger.Info("conversation created", "id", id, "title", conversation.Title, "owner", owner)
	return &conversation, nil
}

func (c *Controller) createMessage(ctx context.Context, id, author, conversation domain.ID, body string, created time.Time, mode persistMode) (*domain.Message, error) {
	const op = "new_message"
	if err := c.checkIDFree(op, id); err != nil {
		return nil, c.fail(kindMessage, err, "id", id, "author", author, "conversation", conversation)
	}
	foundAuthor, ok := c.model.User(author)
	if !ok {
		err := newError(ErrKindUnknownReference, op, id, ErrUnknownUser, fmt.Errorf("author %s", author))
		return nil, c.fail(kindMessage, err, "id", id, "author", author, "conversation", conversation)
	}
	foundConversation, ok := c.model.Conversation(conversation)
	if !ok {
		err := newError(ErrKindUnknownReference, op, id, ErrUnknownConversation, fmt.Errorf("conversation %s", conversation))
		return nil, c.fail(kindMessage, err, "id", id, "author", author, "conversation", conversation)
	}

	message := domain.Message{
		ID:      id,
		Author:  foundAuthor.ID,
		Created: domain.NormalizeTime(created),
		Content: body,
		Next:    domain.NullID,
	}
	if err := c.checkChainOrder(op, foundConversation, message); err != nil {
		return nil, c.fail(kindMessage, err, "id", id, "conversation", conversation, "created", message.Created)
	}

	if mode == persist {
		if err := c.gateway.SaveMessage(ctx, message, foundConversation.ID); err != nil {
			return nil, c.fail(kindMessage, newError(ErrKindPersistence, op, id, ErrPersistence, err),
				"id", id, "author", author, "conversation", conversation)
		}
	}

	c.model.update(func(tx modelTx) {
		tx.addMessage(message)

		conv := tx.conversation(foundConversation.ID)
		if !conv.LastMessage.IsNull() {
			if last := tx.message(conv.LastMessage); last != nil {
				last.Next = message.ID
			} else {
				c.logger.Error("last message missing from model", "conversation", conv.ID, "last_message", conv.LastMessage)
			}
		}
		if conv.FirstMessage.IsNull() {
			conv.FirstMessage = message.ID
		}
		conv.LastMessage = message.ID
		if !conv.HasParticipant(foundAuthor.ID) {
			conv.Participants = append(conv.Participants, foundAuthor.ID)
		}
	})

	c.accepted(kindMessage, id, message.Created)
	c.logger.Info("message created", "id", id, "author", author, "conversation", conversation)
	return &message, nil
}

// createID draws candidates until one is free or the attempt budget is spent.
// Running out means the generator is misconfigured for this server.
func (c *Controller) createID(op string) (domain.ID, error) {
	for attempt := 1; attempt <= c.config.MaxIDAttempts; attempt++ {
		candidate := c.ids.Next()
		if c.checkIDFree(op, candidate) == nil {
			return candidate, nil
		}
		c.logger.Warn("generated id rejected", "operation", op, "id", candidate, "attempt", attempt)
	}
	return domain.NullID, newError(ErrKindIDExhausted, op, domain.NullID, ErrIDSpaceExhausted,
		fmt.Errorf("%d attempts", c.config.MaxIDAttempts))
}

// checkIDFree accepts only non-NULL ids of this server's scope that fit
// storage and are not used by any entity. Rows keep the local part only, so a
// foreign scope would come back as a different id after a restart.
func (c *Controller) checkIDFree(op string, id domain.ID) error {
	if id.IsNull() {
		return newError(ErrKindInvalidID, op, id, ErrNullID, nil)
	}
	if id.Server != c.config.ServerID {
		return newError(ErrKindInvalidID, op, id, ErrForeignScope, fmt.Errorf("server id is %d", c.config.ServerID))
	}
	if id.Local > domain.MaxLocal {
		return newError(ErrKindInvalidID, op, id, ErrLocalOutOfRange, nil)
	}
	if c.model.InUse(id) {
		return newError(ErrKindIdentityCollision, op, id, ErrIDInUse, nil)
	}
	return nil
}

// checkChainOrder requires message to sort after the conversation's last
// message by (creation, local id), the order bootstrap rebuilds chains in.
func (c *Controller) checkChainOrder(op string, conv domain.Conversation, message domain.Message) error {
	if conv.LastMessage.IsNull() {
		return nil
	}
	last, ok := c.model.Message(conv.LastMessage)
	if !ok {
		return nil
	}
	if message.Created.After(last.Created) ||
		(message.Created.Equal(last.Created) && message.ID.Local > last.ID.Local) {
		return nil
	}
	return newError(ErrKindOrdering, op, message.ID, ErrMessageOutOfOrder,
		fmt.Errorf("last message %s created %s", last.ID, last.Created.Format(time.RFC3339Nano)))
}

func (c *Controller) accepted(kind string, id domain.ID, created time.Time) {
	if created.After(c.lastCreated) {
		c.lastCreated = created
	}
	if obs, ok := c.ids.(identity.Observer); ok {
		obs.Observe(id)
	}
	c.metrics.EntityCreated(kind)
}

func (c *Controller) fail(kind string, err error, keysAndValues ...interface{}) error {
	c.metrics.CreateFailed(kind, reason(err))
	kv := append([]interface{}{"error", err}, keysAndValues...)
	if reason(err) == "id_exhausted" {
		c.logger.Error(kind+" creation failed", kv...)
	} else {
		c.logger.Warn(kind+" creation failed", kv...)
	}
	return err
}

// now stamps a generative creation: the clock at storage precision, moved
// forward so it is strictly later than anything accepted before. Callers hold c.mu.
func (c *Controller) now() time.Time {
	t := domain.NormalizeTime(c.config.Clock())
	if !t.After(c.lastCreated) {
		t = c.lastCreated.Add(time.Millisecond)
	}
	return t
}
