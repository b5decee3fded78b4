package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/query"
)

// User 用户模型
type User struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	Name          *string    `json:"name,omitempty"`
	Email         *string    `gorm:"uniqueIndex" json:"email,omitempty"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	PasswordHash  *string    `json:"-"`
	Image         *string    `json:"image,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations. Owned servers restrict deletion; everything else follows
	// the user out.
	OwnedServers     []Server        `gorm:"foreignKey:OwnerID;constraint:OnDelete:RESTRICT" json:"-"`
	Memberships      []ServerMember  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	GroupMemberships []GroupMember   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Messages         []Message       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	SentMessages     []DirectMessage `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
	ReceivedMessages []DirectMessage `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// SetPassword hashes the plaintext with bcrypt and stores the hash.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s := string(hash)
	u.PasswordHash = &s
	return nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func (u *User) CheckPassword(plain string) bool {
	if u.PasswordHash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(plain)) == nil
}

// UserSchema enumerates the scalar columns of users.
var UserSchema = &query.Schema{
	Table: "users",
	PK:    "id",
	Columns: []string{
		"id", "name", "email", "email_verified", "password_hash", "image",
		"created_at", "updated_at",
	},
	Kinds: map[string]query.Kind{
		"id":             query.KindString,
		"name":           query.KindString,
		"email":          query.KindString,
		"email_verified": query.KindTime,
		"password_hash":  query.KindString,
		"image":          query.KindString,
		"created_at":     query.KindTime,
		"updated_at":     query.KindTime,
	},
}
