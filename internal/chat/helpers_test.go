package chat

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-relaychat/internal/domain"
	"github.com/iyunix/go-relaychat/internal/identity"
	"github.com/iyunix/go-relaychat/internal/logger"
)

const testServer uint32 = 1

var errDiskFull = errors.New("disk full")

// fakeGateway keeps rows in memory and can be told to fail saves.
type fakeGateway struct {
	mu sync.Mutex

	snapshot domain.Snapshot
	saves    int
	failSave bool
	loadErr  error
}

func (g *fakeGateway) SaveUser(_ context.Context, u domain.User) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.failSave {
		return errDiskFull
	}
	g.snapshot.Users = append(g.snapshot.Users, u.Row())
	return nil
}

func (g *fakeGateway) SaveConversation(_ context.Context, c domain.Conversation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.failSave {
		return errDiskFull
	}
	g.snapshot.Conversations = append(g.snapshot.Conversations, c.Row())
	return nil
}

func (g *fakeGateway) SaveMessage(_ context.Context, m domain.Message, conversation domain.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	if g.failSave {
		return errDiskFull
	}
	g.snapshot.Messages = append(g.snapshot.Messages, m.Row(conversation))
	return nil
}

func (g *fakeGateway) LoadAll(context.Context) (*domain.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loadErr != nil {
		return nil, g.loadErr
	}
	out := domain.Snapshot{
		Users:         slices.Clone(g.snapshot.Users),
		Conversations: slices.Clone(g.snapshot.Conversations),
		Messages:      slices.Clone(g.snapshot.Messages),
	}
	slices.SortStableFunc(out.Messages, func(a, b domain.MessageRow) int {
		return cmp.Or(cmp.Compare(a.Creation, b.Creation), cmp.Compare(a.ID, b.ID))
	})
	return &out, nil
}

func (g *fakeGateway) saveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}

// stepClock advances one millisecond per reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2017, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

// frozenClock always reads the same instant.
func frozenClock() time.Time {
	return time.Date(2017, 6, 1, 12, 0, 0, 0, time.UTC)
}

// scriptedGenerator replays a fixed list of ids, then keeps returning the last one.
type scriptedGenerator struct {
	ids []domain.ID
	n   int
}

func (g *scriptedGenerator) Next() domain.ID {
	id := g.ids[min(g.n, len(g.ids)-1)]
	g.n++
	return id
}

func newTestController(t *testing.T, gw PersistenceGateway) *Controller {
	t.Helper()
	return newTestControllerWith(t, gw, identity.NewCounterGenerator(testServer, 0))
}

func newTestControllerWith(t *testing.T, gw PersistenceGateway, ids identity.Generator) *Controller {
	t.Helper()
	return newTestControllerClock(t, gw, ids, newStepClock().Now)
}

func newTestControllerClock(t *testing.T, gw PersistenceGateway, ids identity.Generator, clock func() time.Time) *Controller {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ServerID = testServer
	cfg.Clock = clock
	c, err := NewController(cfg, NewModel(), gw, ids, logger.NoOpLogger{}, nil)
	require.NoError(t, err)
	return c
}

func localID(local uint64) domain.ID { return domain.NewID(testServer, local) }
