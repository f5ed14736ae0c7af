package models

import "time"

// User is an account that can sign in to the admin console.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         string    `json:"role" gorm:"default:author"`
	IsOwner      bool      `json:"isOwner"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser is the view of a user returned by login and profile endpoints.
type PublicUser struct {
	ID      uint   `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	IsOwner bool   `json:"isOwner"`
}

// Public strips the credential fields off a User.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Role:    u.Role,
		IsOwner: u.IsOwner,
	}
}

// LoginInput is the POST /auth/login request body.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
