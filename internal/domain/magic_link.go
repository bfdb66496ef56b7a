package domain

import "time"

type MagicLink struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Token     string     `json:"-"`
	Email     string     `json:"email"`
	IsSignup  bool       `json:"is_signup"`
	IsUsed    bool       `json:"is_used"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// IsValid reporta si el link todavia puede consumirse en el instante now.
func (l MagicLink) IsValid(now time.Time) bool {
	return !l.IsUsed && now.Before(l.ExpiresAt)
}
