package services

import (
	"context"
	"fmt"
	"strings"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/adapters/persistence/repositories"
	"libristack/internal/config"
	"libristack/internal/core/domain"
	"libristack/internal/pkg/invitecode"

	"go.uber.org/zap"
)

// UserService handles user administration
type UserService struct {
	store   *repositories.Store
	cfg     *config.Config
	log     *zap.Logger
	newCode func() (string, error)
}

// NewUserService creates a new user service
func NewUserService(store *repositories.Store, cfg *config.Config, log *zap.Logger) *UserService {
	return &UserService{
		store:   store,
		cfg:     cfg,
		log:     log,
		newCode: invitecode.Generate,
	}
}

// ListUsersInput represents list users input
type ListUsersInput struct {
	Page   int
	Limit  int
	Search string
}

// ListUsersOutput represents list users output
type ListUsersOutput struct {
	Users []*models.UserResponse
	Total int64
}

// ListUsers lists all users with pagination
func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor, input *ListUsersInput) (*ListUsersOutput, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	if input.Page < 1 {
		input.Page = 1
	}
	if input.Limit < 1 || input.Limit > 100 {
		input.Limit = 20
	}

	offset := (input.Page - 1) * input.Limit
	users, total, err := s.store.Users.List(ctx, strings.TrimSpace(input.Search), offset, input.Limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	responses := make([]*models.UserResponse, len(users))
	for i, user := range users {
		responses[i] = user.ToResponse()
	}

	return &ListUsersOutput{Users: responses, Total: total}, nil
}

// Promote makes a user an admin and issues their invite code
func (s *UserService) Promote(ctx context.Context, actor domain.Actor, id uint) (*models.UserResponse, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		u, err := tx.Users.GetByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, domain.ErrUserNotFound, "lock user")
		}
		if u.Role == domain.RoleAdmin.String() {
			return domain.ErrAlreadyAdmin
		}

		code, err := allocateInviteCode(ctx, tx.Users, s.newCode, s.cfg.Admin.BootstrapCode)
		if err != nil {
			return err
		}

		inviter := actor.Email
		u.Role = domain.RoleAdmin.String()
		u.OwnInviteCode = &code
		if u.InvitedBy == nil {
			u.InvitedBy = &inviter
		}
		if err := tx.Users.Update(ctx, u); err != nil {
			return fmt.Errorf("promote user: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user promoted to admin",
		zap.Uint("user_id", user.ID),
		zap.Uint("by_user", actor.UserID),
	)
	return user.ToResponse(), nil
}

// Delete soft deletes a user without open loans. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor domain.Actor, id uint) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == id {
		return domain.ErrCannotDeleteSelf
	}

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if _, err := tx.Users.GetByIDForUpdate(ctx, id); err != nil {
			return notFound(err, domain.ErrUserNotFound, "lock user")
		}

		active, err := tx.Borrows.CountActiveByUser(ctx, id)
		if err != nil {
			return fmt.Errorf("count active loans: %w", err)
		}
		if active > 0 {
			return domain.ErrUserHasActiveLoans
		}

		if err := tx.RefreshTokens.RevokeAllByUserID(ctx, id); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		if err := tx.Users.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("user deleted", zap.Uint("user_id", id), zap.Uint("by_user", actor.UserID))
	return nil
}
