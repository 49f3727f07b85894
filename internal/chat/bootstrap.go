// File: internal/chat/bootstrap.go
package chat

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/iyunix/go-relaychat/internal/domain"
	"github.com/iyunix/go-relaychat/internal/metrics"
)

// Report summarizes one bootstrap run.
type Report struct {
	Users                int `json:"users"`
	Conversations        int `json:"conversations"`
	Messages             int `json:"messages"`
	SkippedUsers         int `json:"skipped_users"`
	SkippedConversations int `json:"skipped_conversations"`
	SkippedMessages      int `json:"skipped_messages"`
}

func (r Report) Skipped() int {
	return r.SkippedUsers + r.SkippedConversations + r.SkippedMessages
}

// Loader rebuilds the Model at startup by replaying persisted rows through
// the controller: users, then conversations, then messages by creation time.
// Rows that fail validation are logged and skipped.
type Loader struct {
	controller *Controller
	gateway    PersistenceGateway
	logger     Logger
	metrics    *metrics.Metrics
}

func NewLoader(controller *Controller, gateway PersistenceGateway, logger Logger, m *metrics.Metrics) (*Loader, error) {
	if controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("persistence gateway is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Loader{controller: controller, gateway: gateway, logger: logger, metrics: m}, nil
}

// Load reads every row and replays it. Only a failure to read the store is
// returned; individual bad rows never stop the load.
func (l *Loader) Load(ctx context.Context) (*Report, error) {
	snapshot, err := l.gateway.LoadAll(ctx)
	if err != nil {
		l.logger.Error("bootstrap could not read store", "error", err)
		return nil, fmt.Errorf("load persisted state: %w", err)
	}

	report := &Report{}
	c := l.controller

	for _, row := range snapshot.Users {
		_, err := c.restoreUser(ctx, c.BuildID(row.ID), row.Name, domain.FromMillis(row.Creation))
		l.tally(kindUser, err, &report.Users, &report.SkippedUsers, "row", row.ID)
	}

	for _, row := range snapshot.Conversations {
		_, err := c.restoreConversation(ctx, c.BuildID(row.ID), row.Title, c.BuildID(row.Owner), domain.FromMillis(row.Creation))
		l.tally(kindConversation, err, &report.Conversations, &report.SkippedConversations, "row", row.ID, "owner", row.Owner)
	}

	messages := snapshot.Messages
	if !slices.IsSortedFunc(messages, compareMessageRows) {
		l.logger.Warn("store returned messages out of creation order, sorting before replay", "count", len(messages))
		messages = slices.Clone(messages)
		slices.SortStableFunc(messages, compareMessageRows)
	}
	for _, row := range messages {
		_, err := c.restoreMessage(ctx, c.BuildID(row.ID), c.BuildID(row.Author), c.BuildID(row.Conversation),
			row.Content, domain.FromMillis(row.Creation))
		l.tally(kindMessage, err, &report.Messages, &report.SkippedMessages,
			"row", row.ID, "author", row.Author, "conversation", row.Conversation)
	}

	l.logger.Info("bootstrap complete",
		"users", humanize.Comma(int64(report.Users)),
		"conversations", humanize.Comma(int64(report.Conversations)),
		"messages", humanize.Comma(int64(report.Messages)),
		"skipped", humanize.Comma(int64(report.Skipped())),
	)
	if c.config.LogLoadSummary {
		l.logSummary()
	}
	return report, nil
}

func (l *Loader) tally(kind string, err error, loaded, skipped *int, keysAndValues ...interface{}) {
	if err == nil {
		*loaded++
		l.metrics.BootstrapRow(kind, "loaded")
		return
	}
	*skipped++
	l.metrics.BootstrapRow(kind, "skipped")
	kv := append([]interface{}{"kind", kind, "error", err}, keysAndValues...)
	l.logger.Warn("bootstrap skipped row", kv...)
}

// logSummary prints the loaded users, each conversation's chain, and the
// messages in load order.
func (l *Loader) logSummary() {
	model := l.controller.Model()
	for u := range model.Users() {
		l.logger.Debug("loaded user", "id", u.ID, "name", u.Name, "created", u.Created)
	}
	for conv := range model.Conversations() {
		l.logger.Debug("loaded conversation", "id", conv.ID, "title", conv.Title, "participants", len(conv.Participants))
		position := 0
		for msg := range model.Chain(conv.ID) {
			position++
			l.logger.Debug("  chain", "conversation", conv.ID, "position", position, "message", msg.ID, "content", msg.Content)
		}
	}
	for msg := range model.Messages() {
		l.logger.Debug("loaded message", "id", msg.ID, "author", msg.Author, "created", msg.Created)
	}
}

func compareMessageRows(a, b domain.MessageRow) int {
	return cmp.Or(cmp.Compare(a.Creation, b.Creation), cmp.Compare(a.ID, b.ID))
}
