package handlers

import (
	"libristack/internal/core/services"
	"libristack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	dashboardService *services.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GetAdminDashboard returns admin dashboard data
// @Summary Admin Dashboard
// @Description Library overview: users, copies, active and overdue loans, recent activity and most borrowed titles (Admin only)
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/dashboard [get]
func (h *DashboardHandler) GetAdminDashboard(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	data, err := h.dashboardService.GetAdminDashboard(c.Context(), actor)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Admin dashboard retrieved successfully", data)
}
