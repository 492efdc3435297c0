package models

import (
	"time"

	"gorm.io/gorm"
)

// Credential is the identity provider's own record of an account. It
// lives in the relational store, not the document store; the document
// store only ever sees the denormalized UserRecord.
type Credential struct {
	UID          string         `gorm:"primaryKey;size:36" json:"uid"`
	Email        string         `gorm:"unique;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	DisplayName  string         `json:"display_name"`
	AvatarURL    string         `json:"avatar_url"`
	Provider     string         `gorm:"default:'password'" json:"provider"` // password, google, facebook
	Disabled     bool           `gorm:"default:false" json:"disabled"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Principal converts the credential into the provider-facing identity.
func (c *Credential) Principal() Principal {
	return Principal{
		UID:         c.UID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		AvatarURL:   c.AvatarURL,
	}
}
