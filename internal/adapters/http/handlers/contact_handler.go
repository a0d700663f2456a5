package handlers

import (
	"libristack/internal/core/services"
	"libristack/internal/pkg/pagination"
	"libristack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ContactHandler handles the contact form, its inbox and bulk email
type ContactHandler struct {
	contactService  *services.ContactService
	bulkMailService *services.BulkMailService
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contactService *services.ContactService, bulkMailService *services.BulkMailService) *ContactHandler {
	return &ContactHandler{
		contactService:  contactService,
		bulkMailService: bulkMailService,
	}
}

// Submit stores a contact message
// @Summary Submit contact message
// @Tags Contact
// @Accept json
// @Produce json
// @Param body body services.ContactInput true "Message"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /contact [post]
func (h *ContactHandler) Submit(c *fiber.Ctx) error {
	var req services.ContactInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	msg, err := h.contactService.Submit(c.Context(), &req)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Created(c, "Message received", fiber.Map{"id": msg.ID})
}

// List returns the contact inbox (Admin only)
// @Summary Contact inbox
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /admin/contact-messages [get]
func (h *ContactHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	params := pagination.GetParams(c)
	messages, total, err := h.contactService.List(c.Context(), actor, params.Page, params.Limit)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Messages retrieved successfully", pagination.NewResponse(messages, params, total))
}

// BulkEmail queues an email to every user (Admin only)
// @Summary Bulk email
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.BulkMailInput true "Message"
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /admin/bulk-email [post]
func (h *ContactHandler) BulkEmail(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	if h.bulkMailService == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "queue_disabled", "Bulk email is disabled")
	}

	var req services.BulkMailInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.bulkMailService.Send(c.Context(), actor, &req)
	if err != nil {
		return response.Domain(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(response.Response{
		Success: true,
		Message: "Emails queued",
		Data:    result,
	})
}
