package models

// Invitation holds the directory data captured when an admin invites a new
// member. At most one row exists per normalized email; re-inviting the same
// address overwrites the row. The row is deleted once registration completes.
type Invitation struct {
	BaseModel

	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	FullName   string `gorm:"not null" json:"full_name"`
	PublicRole string `gorm:"not null" json:"public_role"`

	Phone                     string `json:"phone,omitempty"`
	State                     string `json:"state,omitempty"`
	Organization              string `json:"organization,omitempty"`
	CurrentProjects           string `json:"current_projects,omitempty"`
	DutiesAndResponsibilities string `json:"duties_and_responsibilities,omitempty"`
	Biography                 string `json:"biography,omitempty"`
	Linkedin                  string `json:"linkedin,omitempty"`

	InvitedBy string `gorm:"type:uuid" json:"invited_by"`
}
