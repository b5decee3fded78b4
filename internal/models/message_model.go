package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/query"
)

// Message 频道消息模型
type Message struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	Content   string `gorm:"not null" json:"content"`
	UserID    string `gorm:"type:uuid;not null;index" json:"user_id"`
	ChannelID string `gorm:"type:uuid;not null;index" json:"channel_id"`
	// SequenceID is a per-channel monotonic sequence assigned at create.
	// 0 when no sequence source is configured.
	SequenceID int64 `gorm:"not null;default:0;index" json:"sequence_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User    *User    `gorm:"foreignKey:UserID" json:"-"`
	Channel *Channel `gorm:"foreignKey:ChannelID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// MessageSchema enumerates the scalar columns of messages.
var MessageSchema = &query.Schema{
	Table: "messages",
	PK:    "id",
	Columns: []string{
		"id", "content", "user_id", "channel_id", "sequence_id",
		"created_at", "updated_at",
	},
	Kinds: map[string]query.Kind{
		"id":          query.KindString,
		"content":     query.KindString,
		"user_id":     query.KindString,
		"channel_id":  query.KindString,
		"sequence_id": query.KindInt,
		"created_at":  query.KindTime,
		"updated_at":  query.KindTime,
	},
}
