// Package notify delivers best-effort notifications: e-mail to account
// holders and short alerts to the admins' Telegram chats.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/logging"
)

// Sender отправляет письмо. Ошибка оборачивает apperr.ErrDelivery.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Alerter шлёт короткое сообщение всем админам.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// LogSender — заглушка без SMTP: письмо только пишется в лог.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(ctx context.Context, to, subject, body string) error {
	l := s.Log
	if l == nil {
		l = zap.NewNop()
	}
	logging.For(ctx, l).Info("email (smtp disabled)",
		zap.String("to", to), zap.String("subject", subject), zap.Int("body_len", len(body)))
	return nil
}

// NopAlerter используется, когда Telegram не настроен.
type NopAlerter struct{}

func (NopAlerter) Alert(context.Context, string) error { return nil }

// Email — готовое письмо.
type Email struct {
	Subject string
	Body    string
}

func LeaveApproved(name, viewLink string) Email {
	return Email{
		Subject: "Your Leave Application Has Been Approved",
		Body: fmt.Sprintf("Dear %s,\n\nYour leave application has been approved.\n"+
			"You can view your approval letter using the link below:\n%s\n\nBest regards,\nAdmin", name, viewLink),
	}
}

func LeaveRejected(name, reason, department string) Email {
	return Email{
		Subject: "Your Leave Application Has Been Rejected",
		Body: fmt.Sprintf("Dear %s,\nUnfortunately, your leave application has been rejected.\nReason: %s\n\n"+
			"Best regards,\nHead Of the Department\n%s", name, reason, department),
	}
}

func AccountApproved(name string) Email {
	return Email{
		Subject: "Your Account Has Been Approved",
		Body:    fmt.Sprintf("Dear %s,\n\nYour account has been approved. You can now log in and apply for leave.\n\nBest regards,\nAdmin", name),
	}
}

func SignupRejected(name string) Email {
	return Email{
		Subject: "Your Registration Request Was Declined",
		Body:    fmt.Sprintf("Dear %s,\n\nYour registration request was declined by the department admin.\n\nBest regards,\nAdmin", name),
	}
}
