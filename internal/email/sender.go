package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MagicLinkMessage describe el correo con el link de acceso.
type MagicLinkMessage struct {
	To        string
	URL       string
	IsSignup  bool
	ExpiresIn time.Duration
}

// Sender define la interfaz para envio de magic links.
type Sender interface {
	SendMagicLink(ctx context.Context, msg MagicLinkMessage) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendMagicLink(_ context.Context, _ MagicLinkMessage) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

// renderMagicLink arma asunto y cuerpo en texto plano.
func renderMagicLink(msg MagicLinkMessage) (string, string) {
	subject := "Sign in to your account"
	intro := "Click the link below to sign in:"
	if msg.IsSignup {
		subject = "Sign up for your account"
		intro = "Welcome! Click the link below to complete your signup:"
	}
	minutes := int(msg.ExpiresIn.Round(time.Minute) / time.Minute)
	if minutes <= 0 {
		minutes = 15
	}

	var b strings.Builder
	b.WriteString("Hello!\n\n")
	b.WriteString(intro)
	b.WriteString("\n\n")
	b.WriteString(msg.URL)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "This link will expire in %d minutes.\n\n", minutes)
	b.WriteString("If you didn't request this, please ignore this email.\n")
	return subject, b.String()
}
