package email

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRenderMagicLink_Signup(t *testing.T) {
	subject, body := renderMagicLink(MagicLinkMessage{
		To:        "a@x.com",
		URL:       "https://lumos.dev/auth/verify?token=abc",
		IsSignup:  true,
		ExpiresIn: 15 * time.Minute,
	})
	if subject != "Sign up for your account" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "https://lumos.dev/auth/verify?token=abc") {
		t.Fatalf("body should contain the link, got %q", body)
	}
	if !strings.Contains(body, "expire in 15 minutes") {
		t.Fatalf("body should mention expiry, got %q", body)
	}
}

func TestRenderMagicLink_Login(t *testing.T) {
	subject, body := renderMagicLink(MagicLinkMessage{URL: "u", ExpiresIn: 30 * time.Minute})
	if subject != "Sign in to your account" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Click the link below to sign in:") {
		t.Fatalf("unexpected body %q", body)
	}
	if !strings.Contains(body, "30 minutes") {
		t.Fatalf("expected 30 minutes in body, got %q", body)
	}
}

func TestBuildMessage_Headers(t *testing.T) {
	msg := buildMessage("no-reply@lumos.dev", "Lumos", "a@x.com", "Subject", "body")
	if !strings.HasPrefix(msg, "From: Lumos <no-reply@lumos.dev>\r\n") {
		t.Fatalf("unexpected from header: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nbody") {
		t.Fatalf("body should follow a blank line: %q", msg)
	}
}

func TestDisabledSender(t *testing.T) {
	err := NewDisabledSender("").SendMagicLink(context.Background(), MagicLinkMessage{To: "a@x.com"})
	if err == nil {
		t.Fatalf("expected disabled sender error")
	}
}

func TestNewSMTPSender_Validation(t *testing.T) {
	if _, err := NewSMTPSender("", 0, "", "", "from@x.com", "", false); err == nil {
		t.Fatalf("expected error for empty host")
	}
	if _, err := NewSMTPSender("smtp.x.com", 0, "", "", "", "", false); err == nil {
		t.Fatalf("expected error for empty from")
	}
	s, err := NewSMTPSender("smtp.x.com", 0, "", "", "from@x.com", "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.port != 587 {
		t.Fatalf("expected default port 587, got %d", s.port)
	}
}
