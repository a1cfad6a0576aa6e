package models

// Directory-display labels for members. A public role carries no system
// capability; it is only rendered in the directory.
const (
	PublicRolePresident           = "president"
	PublicRoleVicePresident       = "vice_president"
	PublicRoleExecutiveBoard      = "executive_board"
	PublicRoleBoardOfDirectors    = "board_of_directors"
	PublicRoleStateRepresentative = "state_representative"
	PublicRoleAdvisor             = "advisor"
	PublicRoleAlumni              = "alumni"
)

// PublicRoles enumerates the accepted directory labels.
var PublicRoles = []string{
	PublicRolePresident,
	PublicRoleVicePresident,
	PublicRoleExecutiveBoard,
	PublicRoleBoardOfDirectors,
	PublicRoleStateRepresentative,
	PublicRoleAdvisor,
	PublicRoleAlumni,
}

// IsValidPublicRole reports whether the value is an accepted directory label.
func IsValidPublicRole(role string) bool {
	for _, candidate := range PublicRoles {
		if candidate == role {
			return true
		}
	}
	return false
}
