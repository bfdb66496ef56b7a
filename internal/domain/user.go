package domain

import (
	"strings"
	"time"
)

type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	IsEmailVerified bool      `json:"is_email_verified"`
	GoogleID        *string   `json:"-"`
	AvatarURL       *string   `json:"avatar_url"`
	IsActive        bool      `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// FullName une nombre y apellido; si ambos estan vacios cae al username.
func (u User) FullName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

// HasGoogleIdentity indica si la cuenta ya tiene una identidad de Google vinculada.
func (u User) HasGoogleIdentity() bool {
	return u.GoogleID != nil && strings.TrimSpace(*u.GoogleID) != ""
}

// UserProfile es la vista publica del usuario que se devuelve al front.
type UserProfile struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

func (u User) Profile() UserProfile {
	return UserProfile{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		AvatarURL: u.AvatarURL,
	}
}

// UserCredential guarda la credencial de password fuera de la tabla de usuarios.
type UserCredential struct {
	UserID       string    `json:"user_id"`
	PasswordHash string    `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}
