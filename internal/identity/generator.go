// File: internal/identity/generator.go
package identity

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/iyunix/go-relaychat/internal/domain"
)

// Generator mints candidate ids in one server's scope. Callers must still
// check a candidate against what is already in use.
type Generator interface {
	Next() domain.ID
}

// Observer is implemented by generators that can learn about ids minted
// elsewhere (replayed rows, relayed entities) and steer clear of them.
type Observer interface {
	Observe(id domain.ID)
}

const (
	StrategyCounter = "counter"
	StrategyRandom  = "random"
)

// New builds the generator named by strategy.
func New(strategy string, server uint32) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyCounter:
		return NewCounterGenerator(server, 0), nil
	case StrategyRandom:
		return NewRandomGenerator(server, rand.Uint64()), nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}

// CounterGenerator hands out 1, 2, 3... in its server scope. Collisions are
// impossible as long as every externally created id is observed.
type CounterGenerator struct {
	server uint32
	last   atomic.Uint64
}

// NewCounterGenerator starts counting after start.
func NewCounterGenerator(server uint32, start uint64) *CounterGenerator {
	g := &CounterGenerator{server: server}
	g.last.Store(start)
	return g
}

func (g *CounterGenerator) Next() domain.ID {
	return domain.NewID(g.server, g.last.Add(1))
}

// Observe moves the counter past id when id belongs to this server. Locals
// above domain.MaxLocal are ignored so the counter never wraps back to NULL.
func (g *CounterGenerator) Observe(id domain.ID) {
	if id.Server != g.server || id.IsNull() || id.Local > domain.MaxLocal {
		return
	}
	for {
		cur := g.last.Load()
		if id.Local <= cur || g.last.CompareAndSwap(cur, id.Local) {
			return
		}
	}
}

func (g *CounterGenerator) Server() uint32 { return g.server }

// maxRandomLocal keeps local values inside a signed 64-bit column.
const maxRandomLocal = 1 << 62

// RandomGenerator draws local values from a seeded PCG source. It can collide;
// the controller retries a bounded number of times.
type RandomGenerator struct {
	server uint32
	mu     sync.Mutex
	rng    *rand.Rand
}

func NewRandomGenerator(server uint32, seed uint64) *RandomGenerator {
	return &RandomGenerator{
		server: server,
		rng:    rand.New(rand.NewPCG(seed, uint64(server))),
	}
}

func (g *RandomGenerator) Server() uint32 { return g.server }

func (g *RandomGenerator) Next() domain.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.NewID(g.server, g.rng.Uint64N(maxRandomLocal-1)+1)
}
