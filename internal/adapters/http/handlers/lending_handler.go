package handlers

import (
	"strconv"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/core/services"
	"libristack/internal/pkg/pagination"
	"libristack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LendingHandler handles borrow, return and renew endpoints
type LendingHandler struct {
	lendingService *services.LendingService
}

// NewLendingHandler creates a new lending handler
func NewLendingHandler(lendingService *services.LendingService) *LendingHandler {
	return &LendingHandler{lendingService: lendingService}
}

func (h *LendingHandler) toResponses(records []*models.BorrowRecord) []*models.BorrowRecordResponse {
	now := h.lendingService.Now()
	out := make([]*models.BorrowRecordResponse, len(records))
	for i, r := range records {
		out[i] = r.ToResponse(now)
	}
	return out
}

// Borrow handles borrowing a book
// @Summary Borrow book
// @Description Borrow one copy for 30 days. At most 5 active loans per user.
// @Tags Lending
// @Produce json
// @Security BearerAuth
// @Param bookId path int true "Book ID"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /borrow/{bookId} [post]
func (h *LendingHandler) Borrow(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	bookID, ok := paramID(c, "bookId")
	if !ok {
		return response.BadRequest(c, "Invalid book ID")
	}

	record, err := h.lendingService.Borrow(c.Context(), actor, bookID)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Created(c, "Book borrowed successfully", fiber.Map{
		"record": record.ToResponse(h.lendingService.Now()),
	})
}

// Return handles returning a borrowed book
// @Summary Return book
// @Tags Lending
// @Produce json
// @Security BearerAuth
// @Param recordId path int true "Borrow record ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /return/{recordId} [post]
func (h *LendingHandler) Return(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	recordID, ok := paramID(c, "recordId")
	if !ok {
		return response.BadRequest(c, "Invalid record ID")
	}

	record, err := h.lendingService.Return(c.Context(), actor, recordID)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Book returned successfully", fiber.Map{
		"record": record.ToResponse(h.lendingService.Now()),
	})
}

// Renew handles renewing a loan
// @Summary Renew loan
// @Description Extend the due date by 30 days. Each loan can be renewed once.
// @Tags Lending
// @Produce json
// @Security BearerAuth
// @Param recordId path int true "Borrow record ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /renew/{recordId} [post]
func (h *LendingHandler) Renew(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	recordID, ok := paramID(c, "recordId")
	if !ok {
		return response.BadRequest(c, "Invalid record ID")
	}

	record, err := h.lendingService.Renew(c.Context(), actor, recordID)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Loan renewed successfully", fiber.Map{
		"record": record.ToResponse(h.lendingService.Now()),
	})
}

// BorrowedBooks lists the caller's active loans
// @Summary Active loans
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /user/borrowed-books [get]
func (h *LendingHandler) BorrowedBooks(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	records, err := h.lendingService.ActiveLoans(c.Context(), actor.UserID)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Borrowed books retrieved successfully", fiber.Map{
		"records": h.toResponses(records),
	})
}

// History lists the caller's loan history
// @Summary Loan history
// @Description Returned loans, most recent first. all=true includes active loans.
// @Tags User
// @Produce json
// @Security BearerAuth
// @Param all query bool false "Include active loans"
// @Success 200 {object} response.Response
// @Router /user/history [get]
func (h *LendingHandler) History(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	all, _ := strconv.ParseBool(c.Query("all", "false"))
	records, err := h.lendingService.History(c.Context(), actor.UserID, !all)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "History retrieved successfully", fiber.Map{
		"records": h.toResponses(records),
	})
}

// Stats returns the caller's lending statistics
// @Summary Loan statistics
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /user/stats [get]
func (h *LendingHandler) Stats(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	stats, err := h.lendingService.Stats(c.Context(), actor.UserID)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Stats retrieved successfully", stats)
}

// AdminReturn forces a return (Admin only)
// @Summary Admin return
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param recordId path int true "Borrow record ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/return-book/{recordId} [patch]
func (h *LendingHandler) AdminReturn(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	recordID, ok := paramID(c, "recordId")
	if !ok {
		return response.BadRequest(c, "Invalid record ID")
	}

	record, err := h.lendingService.AdminReturn(c.Context(), actor, recordID)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Book returned successfully", fiber.Map{
		"record": record.ToResponse(h.lendingService.Now()),
	})
}

// BorrowRecords lists the whole ledger (Admin only)
// @Summary Ledger overview
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "borrowed or returned"
// @Param user_id query int false "Filter by user"
// @Param book_id query int false "Filter by book"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /admin/borrow-records [get]
func (h *LendingHandler) BorrowRecords(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	params := pagination.GetParams(c)
	userID, _ := strconv.ParseUint(c.Query("user_id", "0"), 10, 32)
	bookID, _ := strconv.ParseUint(c.Query("book_id", "0"), 10, 32)

	result, err := h.lendingService.Overview(c.Context(), actor, &services.OverviewInput{
		Status: c.Query("status"),
		UserID: uint(userID),
		BookID: uint(bookID),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Borrow records retrieved successfully",
		pagination.NewResponse(h.toResponses(result.Records), params, result.Total))
}
