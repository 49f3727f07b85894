// File: internal/domain/message.go
package domain

import "time"

// Message represents a single message within a conversation. Next is the only
// mutable field; it threads the conversation's messages in creation order.
type Message struct {
	ID      ID        `json:"id"`
	Author  ID        `json:"author"`
	Created time.Time `json:"created"`
	Content string    `json:"content"`
	Next    ID        `json:"next"`
}

// MessageRow is the persisted shape of a Message. The owning conversation is
// only recorded here; in memory it is implied by the chain.
type MessageRow struct {
	ID           uint64 `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Creation     int64  `gorm:"column:creation;not null;index" json:"creation"`
	Author       uint64 `gorm:"column:author;not null" json:"author"`
	Conversation uint64 `gorm:"column:conversation;not null;index" json:"conversation"`
	Content      string `gorm:"column:content;not null" json:"content"`
}

func (MessageRow) TableName() string { return "messages" }

func (m Message) Row(conversation ID) MessageRow {
	return MessageRow{
		ID:           m.ID.Local,
		Creation:     Millis(m.Created),
		Author:       m.Author.Local,
		Conversation: conversation.Local,
		Content:      m.Content,
	}
}

// Snapshot is everything a store holds, in load order: users, conversations,
// then messages by ascending creation time.
type Snapshot struct {
	Users         []UserRow
	Conversations []ConversationRow
	Messages      []MessageRow
}
