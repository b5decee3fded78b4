package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/query"
)

// ChannelTypeText and ChannelTypeVoice are conventions, not an enum; the
// column stays a free string.
const (
	ChannelTypeText  = "text"
	ChannelTypeVoice = "voice"
)

// Channel 群组内的频道模型
type Channel struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	Name        string  `gorm:"not null" json:"name"`
	Description *string `json:"description,omitempty"`
	Type        string  `gorm:"not null;default:text" json:"type"`
	GroupID     string  `gorm:"type:uuid;not null;index" json:"group_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Group    *Group    `gorm:"foreignKey:GroupID" json:"-"`
	Messages []Message `gorm:"foreignKey:ChannelID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Channel) TableName() string {
	return "channels"
}

func (c *Channel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Type == "" {
		c.Type = ChannelTypeText
	}
	return nil
}

// ChannelSchema enumerates the scalar columns of channels.
var ChannelSchema = &query.Schema{
	Table: "channels",
	PK:    "id",
	Columns: []string{
		"id", "name", "description", "type", "group_id", "created_at", "updated_at",
	},
	Kinds: map[string]query.Kind{
		"id":          query.KindString,
		"name":        query.KindString,
		"description": query.KindString,
		"type":        query.KindString,
		"group_id":    query.KindString,
		"created_at":  query.KindTime,
		"updated_at":  query.KindTime,
	},
}
