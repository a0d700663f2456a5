package queue

import (
	"context"
	"fmt"
	"time"

	"libristack/internal/pkg/mailer"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// MailTask delivers one email of a bulk send
type MailTask struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Config returns the queue configuration for mail tasks
func (t MailTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "bulk_mail",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     30 * time.Second,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// MailProcessor sends a MailTask through sender
func MailProcessor(sender mailer.Sender, log *zap.Logger) backlite.QueueProcessor[MailTask] {
	return func(ctx context.Context, task MailTask) error {
		if sender == nil {
			return fmt.Errorf("mail sender not configured")
		}
		if err := sender.Send(ctx, task.To, task.Subject, task.Body); err != nil {
			return fmt.Errorf("send bulk mail to %s: %w", task.To, err)
		}
		log.Debug("bulk mail delivered", zap.String("to", task.To))
		return nil
	}
}

// NewMailQueue creates the backlite queue for mail tasks
func NewMailQueue(sender mailer.Sender, log *zap.Logger) backlite.Queue {
	return backlite.NewQueue(MailProcessor(sender, log))
}

// MailEnqueuer puts mail tasks on the queue
type MailEnqueuer struct {
	client *Client
}

// NewMailEnqueuer creates a new enqueuer
func NewMailEnqueuer(client *Client) *MailEnqueuer {
	return &MailEnqueuer{client: client}
}

// EnqueueMail adds one mail task
func (e *MailEnqueuer) EnqueueMail(ctx context.Context, to, subject, body string) error {
	_, err := e.client.Add(MailTask{To: to, Subject: subject, Body: body}).Ctx(ctx).Save()
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}
