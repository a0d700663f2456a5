package services

import (
	"context"
	"fmt"
	"strings"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/adapters/persistence/repositories"
	"libristack/internal/core/domain"

	"go.uber.org/zap"
)

// ContactService stores and lists inbound support messages
type ContactService struct {
	store *repositories.Store
	log   *zap.Logger
}

// NewContactService creates a new contact service
func NewContactService(store *repositories.Store, log *zap.Logger) *ContactService {
	return &ContactService{store: store, log: log}
}

// ContactInput represents a submitted contact form
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Submit appends a message to the inbox
func (s *ContactService) Submit(ctx context.Context, input *ContactInput) (*models.ContactMessage, error) {
	msg := &models.ContactMessage{
		Name:    strings.TrimSpace(input.Name),
		Email:   normalizeEmail(input.Email),
		Message: strings.TrimSpace(input.Message),
	}
	if msg.Name == "" || msg.Message == "" || !validEmail(msg.Email) {
		return nil, domain.ErrInvalidInput
	}

	if err := s.store.Contacts.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store contact message: %w", err)
	}

	s.log.Info("contact message received", zap.Uint("id", msg.ID), zap.String("email", msg.Email))
	return msg, nil
}

// List returns messages newest first
func (s *ContactService) List(ctx context.Context, actor domain.Actor, page, limit int) ([]*models.ContactMessage, int64, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	messages, total, err := s.store.Contacts.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list contact messages: %w", err)
	}
	return messages, total, nil
}
