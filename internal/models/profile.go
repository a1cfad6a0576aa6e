package models

import "time"

// Profile is the durable, owner-mutable member record shown in the
// directory. Its primary key is the owning identity's id; a profile exists
// if and only if registration has completed for that identity.
type Profile struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	FullName   string `gorm:"not null" json:"full_name"`
	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	PublicRole string `gorm:"not null" json:"public_role"`

	Phone                     string `json:"phone,omitempty"`
	State                     string `json:"state,omitempty"`
	Organization              string `json:"organization,omitempty"`
	CurrentProjects           string `json:"current_projects,omitempty"`
	DutiesAndResponsibilities string `json:"duties_and_responsibilities,omitempty"`
	Biography                 string `json:"biography,omitempty"`
	Linkedin                  string `json:"linkedin,omitempty"`

	// ContactVisibility is controlled solely by the profile owner. When
	// false, email and phone are withheld from non-owner, non-admin viewers.
	ContactVisibility bool   `gorm:"default:true" json:"contact_visibility"`
	ProfilePhotoURL   string `json:"profile_photo_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
