// File: internal/domain/conversation.go
package domain

import (
	"slices"
	"time"
)

// Conversation represents a single conversation thread.
// FirstMessage, LastMessage and Participants are the only fields that change
// after creation.
type Conversation struct {
	ID           ID        `json:"id"`
	Owner        ID        `json:"owner"`
	Created      time.Time `json:"created"`
	Title        string    `json:"title"`
	FirstMessage ID        `json:"first_message"`
	LastMessage  ID        `json:"last_message"`
	Participants []ID      `json:"participants"`
}

// ConversationRow is the persisted shape of a Conversation. Chain pointers and
// participants are derived state and are rebuilt from the message rows.
type ConversationRow struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Owner    uint64 `gorm:"column:owner;not null" json:"owner"`
	Creation int64  `gorm:"column:creation;not null;index" json:"creation"`
	Title    string `gorm:"column:title;not null" json:"title"`
}

func (ConversationRow) TableName() string { return "conversations" }

func (c Conversation) Row() ConversationRow {
	return ConversationRow{ID: c.ID.Local, Owner: c.Owner.Local, Creation: Millis(c.Created), Title: c.Title}
}

// HasParticipant reports whether user has ever posted in the conversation.
func (c Conversation) HasParticipant(user ID) bool {
	return slices.Contains(c.Participants, user)
}

// Clone returns a copy that shares no memory with c.
func (c Conversation) Clone() Conversation {
	c.Participants = slices.Clone(c.Participants)
	return c
}
