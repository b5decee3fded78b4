package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/query"
)

// Group 服务器内的群组模型
type Group struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	Name        string  `gorm:"not null" json:"name"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	IsPrivate   bool    `gorm:"not null;default:false" json:"is_private"`
	ServerID    string  `gorm:"type:uuid;not null;index" json:"server_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Server   *Server       `gorm:"foreignKey:ServerID" json:"-"`
	Members  []GroupMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	Channels []Channel     `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Group) TableName() string {
	return "groups"
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// GroupSchema enumerates the scalar columns of groups.
var GroupSchema = &query.Schema{
	Table: "groups",
	PK:    "id",
	Columns: []string{
		"id", "name", "description", "image_url", "is_private", "server_id",
		"created_at", "updated_at",
	},
	Kinds: map[string]query.Kind{
		"id":          query.KindString,
		"name":        query.KindString,
		"description": query.KindString,
		"image_url":   query.KindString,
		"is_private":  query.KindBool,
		"server_id":   query.KindString,
		"created_at":  query.KindTime,
		"updated_at":  query.KindTime,
	},
}
