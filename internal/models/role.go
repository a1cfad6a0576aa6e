package models

import "time"

// Capability roles. These are independent of the user-facing public_role
// label shown in the directory and are not mutually exclusive.
const (
	RoleAdmin   = "admin"
	RoleBlogger = "blogger"
	RoleMember  = "member"
)

// Roles enumerates every assignable capability role.
var Roles = []string{RoleAdmin, RoleBlogger, RoleMember}

// IsValidRole reports whether the value is a known capability role.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleBlogger, RoleMember:
		return true
	}
	return false
}

// RoleAssignment maps an identity to one capability role. The composite
// unique index makes grants naturally idempotent via ON CONFLICT DO NOTHING.
type RoleAssignment struct {
	IdentityID string `gorm:"primaryKey;type:uuid" json:"identity_id"`
	Role       string `gorm:"primaryKey" json:"role"`

	CreatedAt time.Time `json:"created_at"`
}
