package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"lumos-api/internal/domain"
)

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		browser string
		os      string
	}{
		{
			name:    "chrome on windows",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser: "Chrome",
			os:      "Windows",
		},
		{
			name:    "edge on windows",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
			browser: "Edge",
			os:      "Windows",
		},
		{
			name:    "safari on iphone",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			browser: "Safari",
			os:      "iOS",
		},
		{
			name:    "firefox on linux",
			ua:      "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			browser: "Firefox",
			os:      "Linux",
		},
		{
			name:    "chrome on android",
			ua:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			browser: "Chrome",
			os:      "Android",
		},
		{
			name:    "safari on mac",
			ua:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
			browser: "Safari",
			os:      "macOS",
		},
		{
			name:    "curl",
			ua:      "curl/8.4.0",
			browser: "Unknown",
			os:      "Unknown",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			browser, os := parseUserAgent(tc.ua)
			if browser != tc.browser || os != tc.os {
				t.Fatalf("got (%s, %s), want (%s, %s)", browser, os, tc.browser, tc.os)
			}
		})
	}
}

func TestSessionStartTruncatesUserAgent(t *testing.T) {
	repo := &mockSessionRepo{}
	svc := NewSessionService(zap.NewNop(), repo)

	long := strings.Repeat("ñ", storedUserAgentMax+20)
	session, err := svc.Start(context.Background(), "u1", domain.LoginMethodMagicLink, ClientInfo{IPAddress: " 10.0.0.2 ", UserAgent: long})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := len([]rune(session.UserAgent)); got != storedUserAgentMax {
		t.Fatalf("expected %d runes, got %d", storedUserAgentMax, got)
	}
	if session.IPAddress != "10.0.0.2" || !session.IsActive || len(session.SessionKey) != 32 {
		t.Fatalf("unexpected session: %+v", session)
	}

	if _, err := svc.Start(context.Background(), "u1", domain.LoginMethod("sms"), ClientInfo{}); err == nil {
		t.Fatalf("unknown login method should fail")
	}
}

func TestSessionListActiveMarksCurrent(t *testing.T) {
	repo := &mockSessionRepo{}
	svc := NewSessionService(zap.NewNop(), repo)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return base }
	first, _ := svc.Start(context.Background(), "u1", domain.LoginMethodPassword, ClientInfo{UserAgent: strings.Repeat("a", 150)})
	svc.now = func() time.Time { return base.Add(time.Hour) }
	second, _ := svc.Start(context.Background(), "u1", domain.LoginMethodGoogleOAuth, ClientInfo{})
	_, _ = svc.Start(context.Background(), "u2", domain.LoginMethodPassword, ClientInfo{})
	third, _ := svc.Start(context.Background(), "u1", domain.LoginMethodMagicLink, ClientInfo{})
	if err := svc.End(context.Background(), "u1", third.SessionKey); err != nil {
		t.Fatalf("End: %v", err)
	}

	views, err := svc.ListActive(context.Background(), "u1", first.SessionKey)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 active sessions, got %d", len(views))
	}
	if views[0].ID != second.ID || views[0].IsCurrent {
		t.Fatalf("most recent session should come first and not be current: %+v", views[0])
	}
	if views[1].ID != first.ID || !views[1].IsCurrent {
		t.Fatalf("first session should be current: %+v", views[1])
	}
	if len(views[1].UserAgent) != listedUserAgentMax {
		t.Fatalf("listed user agent should be truncated, got %d", len(views[1].UserAgent))
	}
}

func TestSessionEndIgnoresOtherUsers(t *testing.T) {
	repo := &mockSessionRepo{}
	svc := NewSessionService(zap.NewNop(), repo)
	session, _ := svc.Start(context.Background(), "u1", domain.LoginMethodPassword, ClientInfo{})

	if err := svc.End(context.Background(), "u2", session.SessionKey); err != nil {
		t.Fatalf("End: %v", err)
	}
	if !repo.sessions[0].IsActive {
		t.Fatalf("another user's logout must not end the session")
	}
	if err := svc.End(context.Background(), "u1", ""); err != nil {
		t.Fatalf("End without key: %v", err)
	}
}

func TestSessionTouchInactive(t *testing.T) {
	repo := &mockSessionRepo{}
	svc := NewSessionService(zap.NewNop(), repo)
	session, _ := svc.Start(context.Background(), "u1", domain.LoginMethodPassword, ClientInfo{})

	if err := svc.Touch(context.Background(), "u1", session.SessionKey); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	_ = svc.End(context.Background(), "u1", session.SessionKey)
	if err := svc.Touch(context.Background(), "u1", session.SessionKey); !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
}
