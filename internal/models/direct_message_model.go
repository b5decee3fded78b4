package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/query"
)

// DirectMessage 私聊消息模型，两个关系都指向 users
type DirectMessage struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	Content    string `gorm:"not null" json:"content"`
	SenderID   string `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID string `gorm:"type:uuid;not null;index" json:"receiver_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Sender   *User `gorm:"foreignKey:SenderID" json:"-"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"-"`
}

func (DirectMessage) TableName() string {
	return "direct_messages"
}

func (dm *DirectMessage) BeforeCreate(tx *gorm.DB) error {
	if dm.ID == "" {
		dm.ID = uuid.NewString()
	}
	return nil
}

// DirectMessageSchema enumerates the scalar columns of direct_messages.
var DirectMessageSchema = &query.Schema{
	Table: "direct_messages",
	PK:    "id",
	Columns: []string{
		"id", "content", "sender_id", "receiver_id", "created_at", "updated_at",
	},
	Kinds: map[string]query.Kind{
		"id":          query.KindString,
		"content":     query.KindString,
		"sender_id":   query.KindString,
		"receiver_id": query.KindString,
		"created_at":  query.KindTime,
		"updated_at":  query.KindTime,
	},
}
