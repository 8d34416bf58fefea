package model

import "time"

// User is an operator account. Machines reference it by ID only.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:256;not null" json:"email"`
	DisplayName  string    `gorm:"size:128" json:"displayName"`
	Role         string    `gorm:"size:16;not null" json:"role"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
