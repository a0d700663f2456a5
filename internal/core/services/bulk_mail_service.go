package services

import (
	"context"
	"fmt"
	"strings"

	"libristack/internal/adapters/persistence/repositories"
	"libristack/internal/core/domain"

	"go.uber.org/zap"
)

// BulkMailService fans an admin message out to every recipient through the task queue
type BulkMailService struct {
	store    *repositories.Store
	enqueuer BulkMailEnqueuer
	log      *zap.Logger
}

// NewBulkMailService creates a new bulk mail service
func NewBulkMailService(store *repositories.Store, enqueuer BulkMailEnqueuer, log *zap.Logger) *BulkMailService {
	return &BulkMailService{store: store, enqueuer: enqueuer, log: log}
}

// BulkMailInput represents a bulk email request
type BulkMailInput struct {
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	VerifiedOnly bool   `json:"verified_only"`
}

// BulkMailResult reports how many messages were queued
type BulkMailResult struct {
	Recipients int `json:"recipients"`
	Queued     int `json:"queued"`
	Failed     int `json:"failed"`
}

// Send queues one mail per recipient. Delivery and retries happen in the queue.
func (s *BulkMailService) Send(ctx context.Context, actor domain.Actor, input *BulkMailInput) (*BulkMailResult, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Body)
	if subject == "" || body == "" {
		return nil, domain.ErrInvalidInput
	}

	recipients, err := s.store.Users.ListRecipients(ctx, input.VerifiedOnly)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	result := &BulkMailResult{Recipients: len(recipients)}
	for _, user := range recipients {
		if err := s.enqueuer.EnqueueMail(ctx, user.Email, subject, body); err != nil {
			s.log.Warn("bulk mail not queued", zap.String("to", user.Email), zap.Error(err))
			result.Failed++
			continue
		}
		result.Queued++
	}

	s.log.Info("bulk mail queued",
		zap.Uint("by_user", actor.UserID),
		zap.Int("queued", result.Queued),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
