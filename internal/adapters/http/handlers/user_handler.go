package handlers

import (
	"libristack/internal/core/services"
	"libristack/internal/pkg/pagination"
	"libristack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user administration endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles listing all users (Admin only)
// @Summary List all users
// @Description Get a paginated list of all users (Admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Email or name substring"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	params := pagination.GetParams(c)
	result, err := h.userService.ListUsers(c.Context(), actor, &services.ListUsersInput{
		Page:   params.Page,
		Limit:  params.Limit,
		Search: c.Query("search"),
	})
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Users retrieved successfully", pagination.NewResponse(result.Users, params, result.Total))
}

// PromoteUser makes a user an admin (Admin only)
// @Summary Promote user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/users/{id}/promote [patch]
func (h *UserHandler) PromoteUser(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid user ID")
	}

	user, err := h.userService.Promote(c.Context(), actor, id)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "User promoted to admin", fiber.Map{"user": user})
}

// DeleteUser handles deleting a user (Admin only)
// @Summary Delete user
// @Description Soft delete a user without active loans. Admins cannot delete themselves.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid user ID")
	}

	if err := h.userService.Delete(c.Context(), actor, id); err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "User deleted successfully", nil)
}
