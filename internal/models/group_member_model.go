package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/query"
)

// GroupMember 群组成员中间表，(user_id, group_id) 唯一
type GroupMember struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	UserID   string     `gorm:"type:uuid;not null;uniqueIndex:idx_group_members_user_group" json:"user_id"`
	GroupID  string     `gorm:"type:uuid;not null;uniqueIndex:idx_group_members_user_group;index" json:"group_id"`
	Role     MemberRole `gorm:"type:varchar(16);not null;default:MEMBER" json:"role"`
	JoinedAt time.Time  `json:"joined_at"`

	// Relations
	User  *User  `gorm:"foreignKey:UserID" json:"-"`
	Group *Group `gorm:"foreignKey:GroupID" json:"-"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

func (m *GroupMember) BeforeCreate(tx *gorm.DB) error {
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

// GroupMemberSchema enumerates the scalar columns of group_members.
var GroupMemberSchema = &query.Schema{
	Table: "group_members",
	PK:    "id",
	Columns: []string{
		"id", "user_id", "group_id", "role", "joined_at",
	},
	Kinds: map[string]query.Kind{
		"id":        query.KindString,
		"user_id":   query.KindString,
		"group_id":  query.KindString,
		"role":      query.KindEnum,
		"joined_at": query.KindTime,
	},
	Enums: map[string][]string{
		"role": MemberRoleValues,
	},
}
