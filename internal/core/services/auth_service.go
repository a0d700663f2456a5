package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/adapters/persistence/repositories"
	"libristack/internal/config"
	"libristack/internal/core/domain"
	"libristack/internal/pkg/invitecode"
	"libristack/internal/pkg/jwt"
	"libristack/internal/pkg/password"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// inviteCodeAttempts bounds the retry-until-unique loop
const inviteCodeAttempts = 10

// AuthService handles registration, verification and sessions
type AuthService struct {
	store    *repositories.Store
	notifier Notifier
	cfg      *config.Config
	log      *zap.Logger
	newCode  func() (string, error)
}

// NewAuthService creates a new auth service
func NewAuthService(
	store *repositories.Store,
	notifier Notifier,
	cfg *config.Config,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		newCode:  invitecode.Generate,
	}
}

// RegisterInput represents registration input
type RegisterInput struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	AdminCode string `json:"admin_code"`
}

// LoginInput represents login input
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *models.UserResponse `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
}

// Register creates an unverified account and mails the verification link.
// Admin accounts need the bootstrap code while no admin exists, and a
// current admin's invite code afterwards.
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*models.UserResponse, error) {
	email := normalizeEmail(input.Email)
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" || !validEmail(email) {
		return nil, domain.ErrInvalidInput
	}
	if !password.ValidatePassword(input.Password) {
		return nil, domain.ErrInvalidInput
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, err
	}

	// bcrypt stays outside the transaction so the write lock is held briefly
	hashedPassword, err := password.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		FullName: fullName,
		Email:    email,
		Password: hashedPassword,
		Phone:    strings.TrimSpace(input.Phone),
		Role:     role.String(),
	}

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		exists, err := tx.Users.ExistsByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return domain.ErrEmailTaken
		}

		if role == domain.RoleAdmin {
			inviter, err := s.checkAdminCode(ctx, tx, strings.TrimSpace(input.AdminCode))
			if err != nil {
				return err
			}
			code, err := allocateInviteCode(ctx, tx.Users, s.newCode, s.cfg.Admin.BootstrapCode)
			if err != nil {
				return err
			}
			user.InvitedBy = &inviter
			user.OwnInviteCode = &code
		}

		if err := tx.Users.Create(ctx, user); err != nil {
			// a concurrent registration committed the same email first
			if repositories.IsDuplicateKey(err) {
				return domain.ErrEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.Uint("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", user.Role),
	)

	s.sendVerification(ctx, user)

	return user.ToResponse(), nil
}

// checkAdminCode decides who invited a new admin. The admin rows stay locked
// until the registration commits, so the first-admin decision cannot race.
func (s *AuthService) checkAdminCode(ctx context.Context, tx *repositories.Store, code string) (string, error) {
	admins, err := tx.Users.LockAdmins(ctx)
	if err != nil {
		return "", fmt.Errorf("lock admins: %w", err)
	}

	bootstrap := s.cfg.Admin.BootstrapCode
	if len(admins) == 0 {
		if code != bootstrap {
			return "", domain.ErrBootstrapRequired
		}
		return domain.SystemInviter, nil
	}

	// the bootstrap code is spent once any admin exists
	code = strings.ToUpper(code)
	if code == bootstrap || !invitecode.Valid(code) {
		return "", domain.ErrInvalidInviteCode
	}

	inviter, err := tx.Users.GetAdminByInviteCode(ctx, code)
	if err != nil {
		return "", notFound(err, domain.ErrInvalidInviteCode, "find inviter")
	}
	return inviter.Email, nil
}

// allocateInviteCode generates codes until one is unused. reserved (the
// bootstrap code) is never handed out.
func allocateInviteCode(ctx context.Context, users repositories.UserRepository, gen func() (string, error), reserved string) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		code, err := gen()
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		if code == reserved {
			continue
		}
		taken, err := users.ExistsByInviteCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check invite code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", domain.ErrInviteCodeExhausted
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) {
	token, err := jwt.GenerateVerificationToken(user.Email, s.cfg.JWT.VerifySecret, s.cfg.JWT.VerifyTokenTTL)
	if err != nil {
		s.log.Error("verification token not issued", zap.String("email", user.Email), zap.Error(err))
		return
	}

	link := s.cfg.Mail.VerifyURLBase + "/" + token
	if err := s.notifier.SendVerification(ctx, user.Email, user.FullName, link); err != nil {
		s.log.Warn("verification email not sent", zap.String("email", user.Email), zap.Error(err))
	}
}

// VerifyEmail marks the account in the token as verified. Verifying twice is not an error.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.UserResponse, error) {
	email, err := jwt.ValidateVerificationToken(token, s.cfg.JWT.VerifySecret)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "get user")
	}

	if !user.IsVerified {
		user.IsVerified = true
		if err := s.store.Users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("verify user: %w", err)
		}
		s.log.Info("email verified", zap.String("email", user.Email))
	}

	return user.ToResponse(), nil
}

// Login authenticates a verified user
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	user, err := s.store.Users.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, domain.ErrEmailNotVerified
	}

	tokens, err := s.generateTokens(user)
	if err != nil {
		return nil, err
	}

	if err := s.storeRefreshToken(ctx, s.store, user.ID, tokens.RefreshToken); err != nil {
		return nil, err
	}

	s.log.Info("user logged in", zap.Uint("user_id", user.ID))

	return &AuthResponse{
		User:         user.ToResponse(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

// RefreshToken rotates the refresh token and issues a new access token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := jwt.ValidateRefreshToken(refreshToken, s.cfg.JWT.RefreshSecret)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	var (
		user   *models.User
		tokens *TokenPair
	)
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		stored, err := tx.RefreshTokens.GetActiveByHash(ctx, password.HashToken(refreshToken))
		if err != nil {
			return notFound(err, domain.ErrTokenRevoked, "get refresh token")
		}
		if stored.IsRevoked() {
			return domain.ErrTokenRevoked
		}
		if stored.IsExpired() || stored.UserID != claims.UserID {
			return domain.ErrInvalidToken
		}

		u, err := tx.Users.GetByID(ctx, claims.UserID)
		if err != nil {
			return notFound(err, domain.ErrUserNotFound, "get user")
		}

		// token rotation
		if err := tx.RefreshTokens.Revoke(ctx, stored.ID); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}

		pair, err := s.generateTokens(u)
		if err != nil {
			return err
		}
		if err := s.storeRefreshToken(ctx, tx, u.ID, pair.RefreshToken); err != nil {
			return err
		}

		user, tokens = u, pair
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user.ToResponse(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

// Logout revokes the refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.store.RefreshTokens.RevokeByTokenHash(ctx, password.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// LogoutAll revokes all refresh tokens for a user
func (s *AuthService) LogoutAll(ctx context.Context, userID uint) error {
	if err := s.store.RefreshTokens.RevokeAllByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.log.Info("all sessions revoked", zap.Uint("user_id", userID))
	return nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	return jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
}

// Me returns the current user
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound, "get user")
	}
	return user.ToResponse(), nil
}

// generateTokens generates access and refresh tokens
func (s *AuthService) generateTokens(user *models.User) (*TokenPair, error) {
	accessToken, err := jwt.GenerateAccessToken(
		user.ID,
		user.Email,
		user.Role,
		s.cfg.JWT.Secret,
		s.cfg.JWT.AccessTokenMins,
	)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(
		user.ID,
		uuid.New().String(),
		s.cfg.JWT.RefreshSecret,
		s.cfg.JWT.RefreshTokenDays,
	)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// storeRefreshToken stores a refresh token hash
func (s *AuthService) storeRefreshToken(ctx context.Context, store *repositories.Store, userID uint, refreshToken string) error {
	token := &models.RefreshToken{
		UserID:    userID,
		TokenHash: password.HashToken(refreshToken),
		ExpiresAt: jwt.GetExpiryTime(s.cfg.JWT.RefreshTokenDays),
	}
	if err := store.RefreshTokens.Create(ctx, token); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
