package handlers

import (
	"time"

	"libristack/internal/config"
	"libristack/internal/core/services"
	"libristack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// RegisterRequest represents registration request body
type RegisterRequest struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	AdminCode string `json:"admin_code"`
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration
// @Summary Register new user
// @Description Register a user. Admin accounts need the bootstrap code (first admin) or an admin invite code.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Registration data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.FullName == "" {
		return response.BadRequest(c, "Full name is required")
	}
	if req.Email == "" {
		return response.BadRequest(c, "Email is required")
	}
	if len(req.Password) < 8 {
		return response.BadRequest(c, "Password must be at least 8 characters")
	}

	user, err := h.authService.Register(c.Context(), &services.RegisterInput{
		FullName:  req.FullName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		Role:      req.Role,
		AdminCode: req.AdminCode,
	})
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Created(c, "Registration successful, please check your email to verify your account", fiber.Map{
		"user": user,
	})
}

// VerifyEmail handles the email verification link
// @Summary Verify email
// @Description Mark the account in the verification token as verified
// @Tags Auth
// @Produce json
// @Param token path string true "Verification token"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/verify/{token} [post]
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	user, err := h.authService.VerifyEmail(c.Context(), c.Params("token"))
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Email verified successfully", fiber.Map{
		"user": user,
	})
}

// Login handles user login
// @Summary Login user
// @Description Authenticate a verified user and return tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" {
		return response.BadRequest(c, "Email is required")
	}
	if req.Password == "" {
		return response.BadRequest(c, "Password is required")
	}

	result, err := h.authService.Login(c.Context(), &services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return response.Domain(c, err)
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)

	return response.Success(c, "Login successful", fiber.Map{
		"access_token": result.AccessToken,
		"user":         result.User,
	})
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Description Refresh access token using the refresh token cookie
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		return response.Unauthorized(c, "Refresh token not found")
	}

	result, err := h.authService.RefreshToken(c.Context(), refreshToken)
	if err != nil {
		h.clearAuthCookies(c)
		return response.Domain(c, err)
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)

	return response.Success(c, "Token refreshed successfully", fiber.Map{
		"access_token": result.AccessToken,
		"user":         result.User,
	})
}

// Logout handles user logout
// @Summary Logout user
// @Description Logout user and revoke refresh token
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if refreshToken := c.Cookies("refresh_token"); refreshToken != "" {
		_ = h.authService.Logout(c.Context(), refreshToken)
	}

	h.clearAuthCookies(c)

	return response.Success(c, "Logged out successfully", nil)
}

// LogoutAll handles logout from all devices
// @Summary Logout from all devices
// @Description Revoke all refresh tokens for the user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	if err := h.authService.LogoutAll(c.Context(), actor.UserID); err != nil {
		return response.Domain(c, err)
	}

	h.clearAuthCookies(c)

	return response.Success(c, "Logged out from all devices", nil)
}

// Me returns the current user info
// @Summary Get current user
// @Description Get the currently authenticated user's information
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	user, err := h.authService.Me(c.Context(), actor.UserID)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "User retrieved successfully", fiber.Map{
		"user": user,
	})
}

// setAuthCookies sets access and refresh token cookies
func (h *AuthHandler) setAuthCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		MaxAge:   h.cfg.JWT.AccessTokenMins * 60,
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	})

	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   h.cfg.JWT.RefreshTokenDays * 24 * 60 * 60,
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	})
}

// clearAuthCookies clears auth cookies
func (h *AuthHandler) clearAuthCookies(c *fiber.Ctx) {
	for _, name := range []string{"access_token", "refresh_token"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Now().Add(-1 * time.Hour),
			Secure:   h.cfg.Cookie.Secure,
			HTTPOnly: true,
			SameSite: h.cfg.Cookie.SameSite,
			Domain:   h.cfg.Cookie.Domain,
		})
	}
}
