package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/query"
)

// Server 社区服务器模型
type Server struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	Name        string  `gorm:"not null" json:"name"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	BannerURL   *string `json:"banner_url,omitempty"`
	Category    string  `gorm:"not null;index" json:"category"`
	IsPrivate   bool    `gorm:"not null;default:false" json:"is_private"`
	AccessKey   *string `json:"-"`
	OwnerID     string  `gorm:"type:uuid;not null;index" json:"owner_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Owner   *User          `gorm:"foreignKey:OwnerID" json:"-"`
	Members []ServerMember `gorm:"foreignKey:ServerID;constraint:OnDelete:CASCADE" json:"-"`
	Groups  []Group        `gorm:"foreignKey:ServerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Server) TableName() string {
	return "servers"
}

func (s *Server) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ServerSchema enumerates the scalar columns of servers.
var ServerSchema = &query.Schema{
	Table: "servers",
	PK:    "id",
	Columns: []string{
		"id", "name", "description", "image_url", "banner_url", "category",
		"is_private", "access_key", "owner_id", "created_at", "updated_at",
	},
	Kinds: map[string]query.Kind{
		"id":          query.KindString,
		"name":        query.KindString,
		"description": query.KindString,
		"image_url":   query.KindString,
		"banner_url":  query.KindString,
		"category":    query.KindString,
		"is_private":  query.KindBool,
		"access_key":  query.KindString,
		"owner_id":    query.KindString,
		"created_at":  query.KindTime,
		"updated_at":  query.KindTime,
	},
}
