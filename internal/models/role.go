package models

// MemberRole governs what a member may do inside a server or group.
type MemberRole string

const (
	RoleAdmin     MemberRole = "ADMIN"
	RoleModerator MemberRole = "MODERATOR"
	RoleMember    MemberRole = "MEMBER"
	RoleVisitor   MemberRole = "VISITOR"
)

// MemberRoleValues is the closed set of valid roles.
var MemberRoleValues = []string{
	string(RoleAdmin),
	string(RoleModerator),
	string(RoleMember),
	string(RoleVisitor),
}

// Valid reports whether r is one of the declared roles.
func (r MemberRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleMember, RoleVisitor:
		return true
	}
	return false
}

func (r MemberRole) String() string {
	return string(r)
}
