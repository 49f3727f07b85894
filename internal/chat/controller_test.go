package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-relaychat/internal/domain"
	"github.com/iyunix/go-relaychat/internal/identity"
	"github.com/iyunix/go-relaychat/internal/logger"
)

func TestAliceHelloWorldScenario(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	c := newTestController(t, gw)

	u1, err := c.NewUser(ctx, "alice")
	require.NoError(t, err)
	c1, err := c.NewConversation(ctx, "t", u1.ID)
	require.NoError(t, err)

	m1, err := c.NewMessage(ctx, u1.ID, c1.ID, "hello")
	require.NoError(t, err)

	conv, ok := c.Model().Conversation(c1.ID)
	require.True(t, ok)
	assert.Equal(t, m1.ID, conv.FirstMessage)
	assert.Equal(t, m1.ID, conv.LastMessage)

	m2, err := c.NewMessage(ctx, u1.ID, c1.ID, "world")
	require.NoError(t, err)

	conv, _ = c.Model().Conversation(c1.ID)
	first, _ := c.Model().Message(m1.ID)
	assert.Equal(t, m2.ID, first.Next)
	assert.Equal(t, m2.ID, conv.LastMessage)
	assert.Equal(t, m1.ID, conv.FirstMessage)
	assert.Equal(t, []domain.ID{u1.ID}, conv.Participants)

	last, _ := c.Model().Message(m2.ID)
	assert.True(t, last.Next.IsNull())
	assert.Equal(t, 4, gw.saveCount())
}

func TestMessagesExtendTheChainInOrder(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, &fakeGateway{})

	u, _ := c.NewUser(ctx, "bob")
	conv, _ := c.NewConversation(ctx, "chain", u.ID)

	var want []domain.ID
	for _, body := range []string{"a", "b", "c", "d"} {
		before, _ := c.Model().Conversation(conv.ID)
		m, err := c.NewMessage(ctx, u.ID, conv.ID, body)
		require.NoError(t, err)
		want = append(want, m.ID)

		after, _ := c.Model().Conversation(conv.ID)
		assert.Equal(t, m.ID, after.LastMessage)
		if !before.LastMessage.IsNull() {
			prev, _ := c.Model().Message(before.LastMessage)
			assert.Equal(t, m.ID, prev.Next)
		}
	}

	var got []domain.ID
	for m := range c.Model().Chain(conv.ID) {
		got = append(got, m.ID)
	}
	assert.Equal(t, want, got)
}

func TestParticipantsGrowOncePerAuthor(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, &fakeGateway{})

	alice, _ := c.NewUser(ctx, "alice")
	bob, _ := c.NewUser(ctx, "bob")
	conv, _ := c.NewConversation(ctx, "group", alice.ID)

	for _, author := range []domain.ID{bob.ID, alice.ID, bob.ID, bob.ID} {
		_, err := c.NewMessage(ctx, author, conv.ID, "hi")
		require.NoError(t, err)
	}

	got, _ := c.Model().Conversation(conv.ID)
	assert.Equal(t, []domain.ID{bob.ID, alice.ID}, got.Participants)
}

func TestIDInUseByAnyKindIsRejected(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	c := newTestController(t, gw)

	u, _ := c.NewUser(ctx, "alice")
	conv, _ := c.NewConversation(ctx, "t", u.ID)
	m, _ := c.NewMessage(ctx, u.ID, conv.ID, "hello")
	saves := gw.saveCount()
	counts := c.Model().Counts()

	_, err := c.ReplayUser(ctx, conv.ID, "mallory", c.now())
	assert.ErrorIs(t, err, ErrIDInUse)

	_, err = c.ReplayConversation(ctx, m.ID, "dup", u.ID, c.now())
	assert.ErrorIs(t, err, ErrIDInUse)

	msg, err := c.ReplayMessage(ctx, u.ID, u.ID, conv.ID, "dup", c.now())
	assert.ErrorIs(t, err, ErrIDInUse)
	assert.Nil(t, msg)

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrKindIdentityCollision, ce.Kind)

	assert.Equal(t, saves, gw.saveCount(), "no storage write may be attempted")
	assert.Equal(t, counts, c.Model().Counts())

	after, _ := c.Model().Conversation(conv.ID)
	assert.Equal(t, m.ID, after.LastMessage)
}

func TestNullIDIsRejected(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	_, err := c.ReplayUser(context.Background(), domain.NullID, "ghost", c.now())
	assert.ErrorIs(t, err, ErrNullID)
	assert.Zero(t, c.Model().Counts().Users)
}

func TestConversationWithUnknownOwnerFails(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw)

	conv, err := c.NewConversation(context.Background(), "orphan", localID(999))
	assert.Nil(t, conv)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Zero(t, c.Model().Counts().Conversations)
	assert.Zero(t, gw.saveCount())
}

func TestMessageWithUnknownReferencesHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	c := newTestController(t, gw)

	u, _ := c.NewUser(ctx, "alice")
	conv, _ := c.NewConversation(ctx, "t", u.ID)
	saves := gw.saveCount()

	_, err := c.NewMessage(ctx, localID(404), conv.ID, "who am i")
	assert.ErrorIs(t, err, ErrUnknownUser)

	_, err = c.NewMessage(ctx, u.ID, localID(405), "where am i")
	assert.ErrorIs(t, err, ErrUnknownConversation)

	assert.Equal(t, saves, gw.saveCount())
	assert.Zero(t, c.Model().Counts().Messages)
	after, _ := c.Model().Conversation(conv.ID)
	assert.True(t, after.FirstMessage.IsNull())
	assert.True(t, after.LastMessage.IsNull())
	assert.Empty(t, after.Participants)
}

func TestPersistenceFailureLeavesModelUntouched(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	c := newTestController(t, gw)

	u, _ := c.NewUser(ctx, "alice")
	conv, _ := c.NewConversation(ctx, "t", u.ID)
	m1, _ := c.NewMessage(ctx, u.ID, conv.ID, "kept")

	gw.failSave = true
	counts := c.Model().Counts()

	_, err := c.NewUser(ctx, "bob")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)

	_, err = c.NewConversation(ctx, "lost", u.ID)
	assert.ErrorIs(t, err, ErrPersistence)

	m2, err := c.NewMessage(ctx, u.ID, conv.ID, "lost")
	assert.Nil(t, m2)
	assert.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, counts, c.Model().Counts())
	after, _ := c.Model().Conversation(conv.ID)
	assert.Equal(t, m1.ID, after.LastMessage)
	kept, _ := c.Model().Message(m1.ID)
	assert.True(t, kept.Next.IsNull())

	// A retry is a fresh call and succeeds once storage recovers.
	gw.failSave = false
	m3, err := c.NewMessage(ctx, u.ID, conv.ID, "retried")
	require.NoError(t, err)
	kept, _ = c.Model().Message(m1.ID)
	assert.Equal(t, m3.ID, kept.Next)
}

func TestGeneratedCollisionIsRetried(t *testing.T) {
	ctx := context.Background()
	gen := &scriptedGenerator{ids: []domain.ID{localID(1), localID(1), localID(2)}}
	c := newTestControllerWith(t, &fakeGateway{}, gen)

	a, err := c.NewUser(ctx, "a")
	require.NoError(t, err)
	b, err := c.NewUser(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, localID(1), a.ID)
	assert.Equal(t, localID(2), b.ID)
}

func TestGeneratorExhaustionFails(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	gen := &scriptedGenerator{ids: []domain.ID{localID(1)}}
	c := newTestControllerWith(t, gw, gen)

	_, err := c.NewUser(ctx, "a")
	require.NoError(t, err)
	saves := gw.saveCount()

	u, err := c.NewUser(ctx, "b")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrIDSpaceExhausted)
	assert.Equal(t, saves, gw.saveCount())
	assert.Equal(t, 1+c.config.MaxIDAttempts, gen.n)
}

func TestReplayedIDsAreObservedByCounter(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, &fakeGateway{})

	_, err := c.ReplayUser(ctx, localID(50), "relayed", c.now())
	require.NoError(t, err)

	u, err := c.NewUser(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, localID(51), u.ID)
}

func TestReplayKeepsExplicitTime(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, &fakeGateway{})
	at := domain.FromMillis(1_500_000_000_123)

	u, err := c.ReplayUser(ctx, localID(3), "alice", at)
	require.NoError(t, err)
	got, ok := c.Model().User(localID(3))
	require.True(t, ok)
	assert.True(t, at.Equal(got.Created))
	assert.Equal(t, *u, got)
}

func TestConcurrentMessagesKeepChainIntact(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, &fakeGateway{})

	u, _ := c.NewUser(ctx, "alice")
	conv, _ := c.NewConversation(ctx, "busy", u.ID)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := c.NewMessage(ctx, u.ID, conv.ID, "x"); err != nil {
					t.Errorf("NewMessage: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[domain.ID]bool)
	var last domain.Message
	for m := range c.Model().Chain(conv.ID) {
		require.False(t, seen[m.ID], "message %s visited twice", m.ID)
		seen[m.ID] = true
		if !last.ID.IsNull() {
			assert.False(t, m.Created.Before(last.Created))
		}
		last = m
	}
	assert.Len(t, seen, workers*perWorker)

	final, _ := c.Model().Conversation(conv.ID)
	assert.Equal(t, final.LastMessage, last.ID)
}

func TestNewControllerValidatesDependencies(t *testing.T) {
	gw := &fakeGateway{}
	_, err := NewController(nil, nil, gw, &scriptedGenerator{}, logger.NoOpLogger{}, nil)
	assert.Error(t, err)

	_, err = NewController(nil, NewModel(), nil, &scriptedGenerator{}, logger.NoOpLogger{}, nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.MaxIDAttempts = 0
	_, err = NewController(cfg, NewModel(), gw, &scriptedGenerator{}, logger.NoOpLogger{}, nil)
	assert.Error(t, err)
}

func TestForeignScopeIDsAreRejected(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	c := newTestController(t, gw)
	alice, err := c.NewUser(ctx, "alice")
	require.NoError(t, err)
	conv, err := c.NewConversation(ctx, "t", alice.ID)
	require.NoError(t, err)
	saves := gw.saveCount()

	foreign := domain.NewID(testServer+1, 90)
	u, err := c.ReplayUser(ctx, foreign, "bob", c.now())
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrForeignScope)

	_, err = c.ReplayConversation(ctx, foreign, "t", alice.ID, c.now())
	assert.ErrorIs(t, err, ErrForeignScope)

	_, err = c.ReplayMessage(ctx, foreign, alice.ID, conv.ID, "x", c.now())
	assert.ErrorIs(t, err, ErrForeignScope)

	// A reference in another scope names nothing this server holds.
	_, err = c.NewConversation(ctx, "t", domain.NewID(testServer+1, alice.ID.Local))
	assert.ErrorIs(t, err, ErrUnknownUser)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, saves, gw.saveCount())
	assert.Equal(t, Counts{Users: 1, Conversations: 1}, c.Model().Counts())
}

func TestForeignScopeCannotShadowLocalUserAfterRestart(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	live := newTestController(t, gw)

	_, err := live.ReplayUser(ctx, domain.NewID(testServer+1, 1), "bob", live.now())
	require.Error(t, err)
	alice, err := live.NewUser(ctx, "alice")
	require.NoError(t, err)
	_, err = live.NewConversation(ctx, "t", alice.ID)
	require.NoError(t, err)

	restored := newTestController(t, gw)
	report, err := newTestLoader(t, restored, gw).Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Skipped())

	got, ok := restored.Model().User(alice.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Name)
}

func TestLocalBeyondStorageRangeIsRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, &fakeGateway{})

	_, err := c.ReplayUser(ctx, localID(domain.MaxLocal+1), "huge", c.now())
	assert.ErrorIs(t, err, ErrLocalOutOfRange)

	_, err = c.ReplayUser(ctx, localID(domain.MaxLocal), "edge", c.now())
	require.NoError(t, err)

	// The counter stays inside the range instead of wrapping to NULL.
	u, err := c.NewUser(ctx, "next")
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrIDSpaceExhausted)
}

func TestGeneratorScopeMustMatchServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerID = 4
	_, err := NewController(cfg, NewModel(), &fakeGateway{}, identity.NewCounterGenerator(5, 0), logger.NoOpLogger{}, nil)
	assert.Error(t, err)

	_, err = NewController(cfg, NewModel(), &fakeGateway{}, identity.NewRandomGenerator(5, 1), logger.NoOpLogger{}, nil)
	assert.Error(t, err)

	_, err = NewController(cfg, NewModel(), &fakeGateway{}, identity.NewCounterGenerator(4, 0), logger.NoOpLogger{}, nil)
	assert.NoError(t, err)
}

func TestGenerativeTimesStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	c := newTestControllerClock(t, &fakeGateway{}, identity.NewCounterGenerator(testServer, 0), frozenClock)

	alice, err := c.NewUser(ctx, "alice")
	require.NoError(t, err)
	conv, err := c.NewConversation(ctx, "t", alice.ID)
	require.NoError(t, err)
	m1, err := c.NewMessage(ctx, alice.ID, conv.ID, "one")
	require.NoError(t, err)
	m2, err := c.NewMessage(ctx, alice.ID, conv.ID, "two")
	require.NoError(t, err)

	assert.True(t, alice.Created.Equal(frozenClock()))
	assert.True(t, conv.Created.After(alice.Created))
	assert.True(t, m1.Created.After(conv.Created))
	assert.Equal(t, time.Millisecond, m2.Created.Sub(m1.Created))

	// Relayed times in the future push later generative times past them.
	ahead := frozenClock().Add(time.Hour)
	_, err = c.ReplayUser(ctx, localID(100), "relayed", ahead)
	require.NoError(t, err)
	m3, err := c.NewMessage(ctx, alice.ID, conv.ID, "three")
	require.NoError(t, err)
	assert.True(t, m3.Created.After(ahead))
}

func TestRelayedMessageMustSortAfterLast(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	c := newTestController(t, gw)
	at := domain.FromMillis(1_500_000_000_000)

	_, err := c.ReplayUser(ctx, localID(1), "alice", at)
	require.NoError(t, err)
	_, err = c.ReplayConversation(ctx, localID(2), "t", localID(1), at)
	require.NoError(t, err)
	_, err = c.ReplayMessage(ctx, localID(50), localID(1), localID(2), "first", at)
	require.NoError(t, err)
	saves := gw.saveCount()

	m, err := c.ReplayMessage(ctx, localID(60), localID(1), localID(2), "older", at.Add(-time.Millisecond))
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrMessageOutOfOrder)

	_, err = c.ReplayMessage(ctx, localID(40), localID(1), localID(2), "same time, lower id", at)
	assert.ErrorIs(t, err, ErrMessageOutOfOrder)
	assert.Equal(t, saves, gw.saveCount())

	_, err = c.ReplayMessage(ctx, localID(70), localID(1), localID(2), "same time, higher id", at)
	require.NoError(t, err)

	conv, _ := c.Model().Conversation(localID(2))
	assert.Equal(t, localID(70), conv.LastMessage)
}
