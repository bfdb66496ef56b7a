package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lumos-api/internal/domain"
	"lumos-api/internal/repository"
)

const (
	storedUserAgentMax = 500
	listedUserAgentMax = 100
)

// SessionService registra los logins de cada usuario y su actividad.
type SessionService struct {
	logger   *zap.Logger
	sessions repository.SessionRepository
	now      func() time.Time
}

func NewSessionService(logger *zap.Logger, sessions repository.SessionRepository) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		logger:   logger,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ClientInfo es lo que se conoce del cliente que inicia sesion.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Start crea una sesion activa con una clave nueva.
func (s *SessionService) Start(ctx context.Context, userID string, method domain.LoginMethod, client ClientInfo) (domain.UserSession, error) {
	if s.sessions == nil {
		return domain.UserSession{}, errors.New("session service not configured")
	}
	if !method.Valid() {
		return domain.UserSession{}, errors.New("unknown login method")
	}
	now := s.now()
	session := domain.UserSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		SessionKey:   newSessionKey(),
		IPAddress:    strings.TrimSpace(client.IPAddress),
		UserAgent:    truncateRunes(client.UserAgent, storedUserAgentMax),
		LoginMethod:  method,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.UserSession{}, err
	}
	return session, nil
}

// End desactiva la sesion (userID, sessionKey). Una clave que no coincide no desactiva nada.
func (s *SessionService) End(ctx context.Context, userID, sessionKey string) error {
	if s.sessions == nil {
		return errors.New("session service not configured")
	}
	if strings.TrimSpace(sessionKey) == "" {
		return nil
	}
	n, err := s.sessions.Deactivate(ctx, userID, sessionKey)
	if err != nil {
		return err
	}
	if n == 0 {
		s.logger.Debug("logout without matching session", zap.String("user_id", userID))
	}
	return nil
}

// Touch actualiza last_activity; devuelve ErrSessionInactive si la sesion ya no esta activa.
func (s *SessionService) Touch(ctx context.Context, userID, sessionKey string) error {
	if s.sessions == nil {
		return errors.New("session service not configured")
	}
	ok, err := s.sessions.Touch(ctx, userID, sessionKey, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionInactive
	}
	return nil
}

// ListActive devuelve las sesiones activas, mas reciente primero, marcando la actual.
func (s *SessionService) ListActive(ctx context.Context, userID, currentKey string) ([]domain.SessionView, error) {
	if s.sessions == nil {
		return nil, errors.New("session service not configured")
	}
	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]domain.SessionView, 0, len(sessions))
	for _, session := range sessions {
		browser, os := parseUserAgent(session.UserAgent)
		views = append(views, domain.SessionView{
			ID:           session.ID,
			LoginMethod:  session.LoginMethod,
			IPAddress:    session.IPAddress,
			UserAgent:    truncateRunes(session.UserAgent, listedUserAgentMax),
			Browser:      browser,
			OS:           os,
			CreatedAt:    session.CreatedAt,
			LastActivity: session.LastActivity,
			IsCurrent:    currentKey != "" && session.SessionKey == currentKey,
		})
	}
	return views, nil
}

type uaPattern struct {
	name string
	re   *regexp.Regexp
}

// El orden importa: Edge y Chrome incluyen "Safari" en su user agent.
var (
	browserPatterns = []uaPattern{
		{"Edge", regexp.MustCompile(`Edg(?:e|A|iOS)?/[\d.]+`)},
		{"Chrome", regexp.MustCompile(`(?:Chrome|CriOS)/[\d.]+`)},
		{"Firefox", regexp.MustCompile(`(?:Firefox|FxiOS)/[\d.]+`)},
		{"Safari", regexp.MustCompile(`Safari/[\d.]+`)},
	}
	osPatterns = []uaPattern{
		{"Android", regexp.MustCompile(`Android`)},
		{"iOS", regexp.MustCompile(`iPhone|iPad|iPod`)},
		{"Windows", regexp.MustCompile(`Windows`)},
		{"macOS", regexp.MustCompile(`Mac OS X|Macintosh`)},
		{"Linux", regexp.MustCompile(`Linux`)},
	}
)

// parseUserAgent extrae navegador y sistema operativo; "Unknown" si no reconoce ninguno.
func parseUserAgent(ua string) (string, string) {
	browser, os := "Unknown", "Unknown"
	for _, p := range browserPatterns {
		if p.re.MatchString(ua) {
			browser = p.name
			break
		}
	}
	for _, p := range osPatterns {
		if p.re.MatchString(ua) {
			os = p.name
			break
		}
	}
	return browser, os
}

func truncateRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
