package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/query"
)

// ServerMember 服务器成员中间表，(user_id, server_id) 唯一
type ServerMember struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	UserID   string     `gorm:"type:uuid;not null;uniqueIndex:idx_server_members_user_server" json:"user_id"`
	ServerID string     `gorm:"type:uuid;not null;uniqueIndex:idx_server_members_user_server;index" json:"server_id"`
	Role     MemberRole `gorm:"type:varchar(16);not null;default:MEMBER" json:"role"`
	JoinedAt time.Time  `json:"joined_at"`

	// Relations
	User   *User   `gorm:"foreignKey:UserID" json:"-"`
	Server *Server `gorm:"foreignKey:ServerID" json:"-"`
}

func (ServerMember) TableName() string {
	return "server_members"
}

func (m *ServerMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if m.Role == "" {
		m.Role = RoleMember
	}
	return nil
}

// ServerMemberSchema enumerates the scalar columns of server_members.
var ServerMemberSchema = &query.Schema{
	Table: "server_members",
	PK:    "id",
	Columns: []string{
		"id", "user_id", "server_id", "role", "joined_at",
	},
	Kinds: map[string]query.Kind{
		"id":        query.KindString,
		"user_id":   query.KindString,
		"server_id": query.KindString,
		"role":      query.KindEnum,
		"joined_at": query.KindTime,
	},
	Enums: map[string][]string{
		"role": MemberRoleValues,
	},
}
