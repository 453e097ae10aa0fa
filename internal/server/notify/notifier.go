// Package notify delivers out-of-band messages such as password reset codes.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Message is a plain-text notification addressed to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier sends messages. Implementations must honour ctx cancellation.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordResetSubject is the subject line of reset-code messages.
const PasswordResetSubject = "Recuperación de contraseña"

// NewPasswordResetMessage builds the message carrying a reset code and how
// long it stays valid.
func NewPasswordResetMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: PasswordResetSubject,
		Body: fmt.Sprintf("Tu código de recuperación es: %s\nEste código expirará en %s.",
			code, humanizeDuration(ttl)),
	}
}

// humanizeDuration renders whole hours or minutes in Spanish, falling back
// to Go duration syntax for anything else.
func humanizeDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hora", "horas")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minuto", "minutos")
	default:
		return d.String()
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
