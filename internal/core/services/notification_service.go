package services

import (
	"context"
	"fmt"
	"html"

	"libristack/internal/core/domain"
	"libristack/internal/pkg/mailer"

	"go.uber.org/zap"
)

// NotificationService turns ledger and identity events into emails
type NotificationService struct {
	sender mailer.Sender
	log    *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(sender mailer.Sender, log *zap.Logger) *NotificationService {
	return &NotificationService{sender: sender, log: log}
}

// SendDueReminder emails a borrower about a loan that is due soon or overdue
func (s *NotificationService) SendDueReminder(ctx context.Context, r domain.DueReminder) error {
	subject := fmt.Sprintf("Reminder: \"%s\" is due soon", r.BookTitle)
	headline := "Your loan is due soon"
	if r.Kind == domain.ReminderOverdue {
		subject = fmt.Sprintf("Overdue: \"%s\"", r.BookTitle)
		headline = "Your loan is overdue"
	}

	body := fmt.Sprintf(`
<h2>%s</h2>
<p>Hello %s,</p>
<p>The book <b>%s</b> was due on <b>%s</b>.</p>
<p>Please return or renew it. Each loan can be renewed once.</p>`,
		headline,
		html.EscapeString(r.UserName),
		html.EscapeString(r.BookTitle),
		r.DueDate.Format("Mon, 02 Jan 2006"),
	)
	if r.Kind == domain.ReminderDueSoon {
		body = fmt.Sprintf(`
<h2>%s</h2>
<p>Hello %s,</p>
<p>The book <b>%s</b> is due on <b>%s</b>.</p>
<p>Please return or renew it before then. Each loan can be renewed once.</p>`,
			headline,
			html.EscapeString(r.UserName),
			html.EscapeString(r.BookTitle),
			r.DueDate.Format("Mon, 02 Jan 2006"),
		)
	}

	if err := s.sender.Send(ctx, r.UserEmail, subject, body); err != nil {
		return fmt.Errorf("send reminder for record %d: %w", r.RecordID, err)
	}
	return nil
}

// SendVerification emails the account verification link
func (s *NotificationService) SendVerification(ctx context.Context, email, fullName, link string) error {
	body := fmt.Sprintf(`
<h2>Welcome to the library</h2>
<p>Hello %s,</p>
<p>Please confirm your email address:</p>
<p><a href="%s">Verify my email</a></p>
<p>The link expires in one hour.</p>`,
		html.EscapeString(fullName),
		html.EscapeString(link),
	)

	if err := s.sender.Send(ctx, email, "Verify your email", body); err != nil {
		return fmt.Errorf("send verification: %w", err)
	}
	return nil
}
