// Package pebblestore keeps chat rows in an embedded Pebble key/value store.
//
// Layout:
//
//	user/<local>                  -> UserRow JSON
//	conv/<local>                  -> ConversationRow JSON
//	msg/<creation>/<local>        -> MessageRow JSON
//	msgid/<local>                 -> msg key
//
// Numbers are zero padded so lexical key order is numeric order, which makes a
// scan of msg/ yield messages by creation time.
package pebblestore

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	pebble "github.com/cockroachdb/pebble"

	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/domain"
)

var (
	// ErrExists is returned when a save targets a key that is already taken.
	ErrExists = errors.New("row already exists")
	ErrClosed = errors.New("store is closed")
)

const (
	userPrefix     = "user/"
	convPrefix     = "conv/"
	msgPrefix      = "msg/"
	msgIndexPrefix = "msgid/"
)

var _ chat.PersistenceGateway = (*Store)(nil)

type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

type Store struct {
	// mu makes the existence check and the write one step.
	mu     sync.Mutex
	db     *pebble.DB
	logger Logger
}

// Open opens or creates the database directory at path.
func Open(path string, logger Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create pebble parent dir: %w", err)
	}
	logger.Info("opening pebble store", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble open failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.logger.Info("pebble store closed")
	return err
}

func userKey(local uint64) []byte { return []byte(fmt.Sprintf("%s%020d", userPrefix, local)) }
func convKey(local uint64) []byte { return []byte(fmt.Sprintf("%s%020d", convPrefix, local)) }
func msgIndexKey(local uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", msgIndexPrefix, local))
}
func msgKey(creation int64, local uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d/%020d", msgPrefix, creation, local))
}

func (s *Store) SaveUser(_ context.Context, user domain.User) error {
	if user.ID.IsNull() {
		return fmt.Errorf("invalid user id")
	}
	row := user.Row()
	return s.insert("user", row.ID, userKey(row.ID), nil, row)
}

func (s *Store) SaveConversation(_ context.Context, conversation domain.Conversation) error {
	if conversation.ID.IsNull() || conversation.Owner.IsNull() {
		return fmt.Errorf("invalid conversation (id=%s owner=%s)", conversation.ID, conversation.Owner)
	}
	row := conversation.Row()
	return s.insert("conversation", row.ID, convKey(row.ID), nil, row)
}

func (s *Store) SaveMessage(_ context.Context, message domain.Message, conversation domain.ID) error {
	if message.ID.IsNull() || message.Author.IsNull() || conversation.IsNull() {
		return fmt.Errorf("invalid message (id=%s author=%s conversation=%s)", message.ID, message.Author, conversation)
	}
	row := message.Row(conversation)
	if row.Creation < 0 {
		return fmt.Errorf("message %d: creation before epoch", row.ID)
	}
	key := msgKey(row.Creation, row.ID)
	return s.insert("message", row.ID, msgIndexKey(row.ID), key, row)
}

// insert writes row under key, failing if key is taken. For messages key is
// the id index and dataKey holds the row; both land in one synced batch.
func (s *Store) insert(kind string, local uint64, key, dataKey []byte, row any) error {
	value, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", kind, local, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	exists, err := s.has(key)
	if err != nil {
		s.logger.Error("[PebbleStore] existence check failed", "kind", kind, "id", local, "error", err)
		return fmt.Errorf("check %s %d: %w", kind, local, err)
	}
	if exists {
		s.logger.Warn("[PebbleStore] refusing to overwrite row", "kind", kind, "id", local)
		return fmt.Errorf("%s %d: %w", kind, local, ErrExists)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if dataKey == nil {
		err = batch.Set(key, value, nil)
	} else {
		err = errors.Join(batch.Set(key, dataKey, nil), batch.Set(dataKey, value, nil))
	}
	if err != nil {
		return fmt.Errorf("stage %s %d: %w", kind, local, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		s.logger.Error("[PebbleStore] commit failed", "kind", kind, "id", local, "error", err)
		return fmt.Errorf("write %s %d: %w", kind, local, err)
	}
	return nil
}

func (s *Store) has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func (s *Store) LoadAll(context.Context) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}

	users, err := scan[domain.UserRow](s.db, userPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	conversations, err := scan[domain.ConversationRow](s.db, convPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan conversations: %w", err)
	}
	messages, err := scan[domain.MessageRow](s.db, msgPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	// user/ and conv/ scans come back in id order.
	slices.SortStableFunc(users, func(a, b domain.UserRow) int { return cmp.Compare(a.Creation, b.Creation) })
	slices.SortStableFunc(conversations, func(a, b domain.ConversationRow) int { return cmp.Compare(a.Creation, b.Creation) })

	s.logger.Debug("[PebbleStore] loaded rows", "users", len(users), "conversations", len(conversations), "messages", len(messages))
	return &domain.Snapshot{Users: users, Conversations: conversations, Messages: messages}, nil
}

func scan[T any](db *pebble.DB, prefix string) ([]T, error) {
	lower := []byte(prefix)
	upper := append(bytes.Clone(lower[:len(lower)-1]), lower[len(lower)-1]+1)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []T
	for ok := iter.First(); ok; ok = iter.Next() {
		var row T
		if err := json.Unmarshal(iter.Value(), &row); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		out = append(out, row)
	}
	return out, iter.Error()
}
