package domain

import "time"

type LoginMethod string

const (
	LoginMethodMagicLink   LoginMethod = "magic_link"
	LoginMethodGoogleOAuth LoginMethod = "google_oauth"
	LoginMethodPassword    LoginMethod = "password"
)

func (m LoginMethod) Valid() bool {
	switch m {
	case LoginMethodMagicLink, LoginMethodGoogleOAuth, LoginMethodPassword:
		return true
	}
	return false
}

type UserSession struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	SessionKey   string      `json:"-"`
	IPAddress    string      `json:"ip_address"`
	UserAgent    string      `json:"user_agent"`
	LoginMethod  LoginMethod `json:"login_method"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActivity time.Time   `json:"last_activity"`
}

// SessionView es la representacion expuesta en GET /sessions.
type SessionView struct {
	ID           string      `json:"id"`
	LoginMethod  LoginMethod `json:"login_method"`
	IPAddress    string      `json:"ip_address"`
	UserAgent    string      `json:"user_agent"`
	Browser      string      `json:"browser"`
	OS           string      `json:"os"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActivity time.Time   `json:"last_activity"`
	IsCurrent    bool        `json:"is_current"`
}
