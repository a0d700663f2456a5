package services

import (
	"context"

	"libristack/internal/core/domain"
)

// Note: the concrete Notifier is NotificationService in notification_service.go

// Notifier is the outbound notification gateway used by the ledger side
type Notifier interface {
	SendDueReminder(ctx context.Context, reminder domain.DueReminder) error
	SendVerification(ctx context.Context, email, fullName, link string) error
}

// BulkMailEnqueuer hands bulk mail to the task queue, one task per recipient
type BulkMailEnqueuer interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}
