package middleware

import (
	"errors"
	"strings"

	"libristack/internal/config"
	"libristack/internal/core/domain"
	"libristack/internal/core/services"
	"libristack/internal/pkg/jwt"
	"libristack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const actorKey = "actor"

// AuthMiddleware creates authentication middleware
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := extractToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return response.Error(c, fiber.StatusUnauthorized, "token_expired", "Access token expired")
			}
			return response.Error(c, fiber.StatusUnauthorized, "invalid_token", "Invalid access token")
		}

		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			return response.Error(c, fiber.StatusUnauthorized, "invalid_token", "Invalid access token")
		}

		setActor(c, domain.Actor{UserID: claims.UserID, Email: claims.Email, Role: role})
		return c.Next()
	}
}

// AdminOnly allows only the admin role. Must run after AuthMiddleware.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		if err := services.RequireAdmin(actor); err != nil {
			return response.Domain(c, err)
		}
		return c.Next()
	}
}

// ActorFrom returns the authenticated actor set by AuthMiddleware
func ActorFrom(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

func setActor(c *fiber.Ctx, actor domain.Actor) {
	c.Locals(actorKey, actor)
	c.Locals("userID", actor.UserID)
	c.Locals("role", actor.Role.String())
}

// extractToken reads the access token from the cookie first, then the Authorization header
func extractToken(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
