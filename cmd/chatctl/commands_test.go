package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-relaychat/internal/auth"
	"github.com/iyunix/go-relaychat/internal/chat"
	"github.com/iyunix/go-relaychat/internal/config"
	"github.com/iyunix/go-relaychat/internal/database"
	"github.com/iyunix/go-relaychat/internal/identity"
	"github.com/iyunix/go-relaychat/internal/logger"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ServerID:      2,
		StoreDriver:   config.DriverSQLite,
		DatabasePath:  filepath.Join(t.TempDir(), "relaychat.db"),
		RelaySecret:   "secret",
		IDStrategy:    "counter",
		MaxIDAttempts: 8,
		Environment:   "test",
	}
}

// seed writes one user, one conversation and two messages through a live controller.
func seed(t *testing.T, cfg *config.Config) {
	t.Helper()
	ctx := context.Background()
	gateway, closeStore, err := database.OpenGateway(cfg, logger.NoOpLogger{})
	require.NoError(t, err)
	defer closeStore()

	controller, err := chat.NewController(&chat.Config{ServerID: cfg.ServerID, MaxIDAttempts: 8, Clock: time.Now},
		chat.NewModel(), gateway, identity.NewCounterGenerator(cfg.ServerID, 0), logger.NoOpLogger{}, nil)
	require.NoError(t, err)

	user, err := controller.NewUser(ctx, "alice")
	require.NoError(t, err)
	conv, err := controller.NewConversation(ctx, "standup", user.ID)
	require.NoError(t, err)
	for _, body := range []string{"first", "second"} {
		_, err = controller.NewMessage(ctx, user.ID, conv.ID, body)
		require.NoError(t, err)
	}
}

func TestSetupCreatesStore(t *testing.T) {
	cfg := sqliteConfig(t)
	var out bytes.Buffer
	require.NoError(t, runSetup(&out, cfg, logger.NoOpLogger{}))
	assert.Contains(t, out.String(), "store ready")

	// Setup is repeatable.
	require.NoError(t, runSetup(&out, cfg, logger.NoOpLogger{}))
}

func TestDumpPrintsChains(t *testing.T) {
	cfg := sqliteConfig(t)
	seed(t, cfg)

	var out bytes.Buffer
	require.NoError(t, runDump(context.Background(), &out, cfg, logger.NoOpLogger{}))
	text := out.String()
	assert.Contains(t, text, `2.1 "alice"`)
	assert.Contains(t, text, `2.2 "standup"`)
	assert.Less(t, strings.Index(text, `"first"`), strings.Index(text, `"second"`))
}

func TestStatsCounts(t *testing.T) {
	cfg := sqliteConfig(t)
	seed(t, cfg)

	var out bytes.Buffer
	require.NoError(t, runStats(context.Background(), &out, cfg, logger.NoOpLogger{}))
	assert.Contains(t, out.String(), "messages:      2")
	assert.Contains(t, out.String(), "skipped rows:  0")
}

func TestTokenValidates(t *testing.T) {
	cfg := sqliteConfig(t)

	var out bytes.Buffer
	require.NoError(t, runToken(&out, cfg, "peer-b", 9, time.Hour))
	claims, err := auth.ValidateRelayToken(strings.TrimSpace(out.String()), []byte(cfg.RelaySecret))
	require.NoError(t, err)
	assert.Equal(t, "peer-b", claims.Subject)
	assert.Equal(t, uint32(9), claims.Server)

	cfg.RelaySecret = ""
	assert.Error(t, runToken(&out, cfg, "peer-b", 9, time.Hour))
}
