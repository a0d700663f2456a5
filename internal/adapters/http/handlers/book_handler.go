package handlers

import (
	"libristack/internal/core/services"
	"libristack/internal/pkg/pagination"
	"libristack/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles catalog endpoints
type BookHandler struct {
	catalogService *services.CatalogService
}

// NewBookHandler creates a new book handler
func NewBookHandler(catalogService *services.CatalogService) *BookHandler {
	return &BookHandler{catalogService: catalogService}
}

// ListBooks handles catalog search
// @Summary List books
// @Description Search books by title or author, filter by language
// @Tags Books
// @Produce json
// @Param search query string false "Title or author substring"
// @Param language query string false "Language, 'All' for every language"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /books [get]
func (h *BookHandler) ListBooks(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	result, err := h.catalogService.List(c.Context(), &services.ListBooksInput{
		Search:   c.Query("search"),
		Language: c.Query("language"),
		Page:     params.Page,
		Limit:    params.Limit,
	})
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Books retrieved successfully", pagination.NewResponse(result.Books, params, result.Total))
}

// GetBook handles getting a book by ID
// @Summary Get book
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [get]
func (h *BookHandler) GetBook(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid book ID")
	}

	book, err := h.catalogService.Get(c.Context(), id)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Book retrieved successfully", fiber.Map{"book": book})
}

// Languages lists catalog languages
// @Summary List languages
// @Tags Books
// @Produce json
// @Success 200 {object} response.Response
// @Router /books/languages [get]
func (h *BookHandler) Languages(c *fiber.Ctx) error {
	languages, err := h.catalogService.Languages(c.Context())
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Languages retrieved successfully", fiber.Map{"languages": languages})
}

// CreateBook handles book creation (Admin only)
// @Summary Create book
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateBookInput true "Book data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /books [post]
func (h *BookHandler) CreateBook(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	var req services.CreateBookInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	book, err := h.catalogService.Create(c.Context(), actor, &req)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Created(c, "Book created successfully", fiber.Map{"book": book})
}

// UpdateBook handles a partial book update (Admin only)
// @Summary Update book
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body services.UpdateBookInput true "Fields to change"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [put]
func (h *BookHandler) UpdateBook(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid book ID")
	}

	var req services.UpdateBookInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	book, err := h.catalogService.Update(c.Context(), actor, id, &req)
	if err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Book updated successfully", fiber.Map{"book": book})
}

// DeleteBook handles book deletion (Admin only)
// @Summary Delete book
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /books/{id} [delete]
func (h *BookHandler) DeleteBook(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.Domain(c, err)
	}

	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid book ID")
	}

	if err := h.catalogService.Delete(c.Context(), actor, id); err != nil {
		return response.Domain(c, err)
	}

	return response.Success(c, "Book deleted successfully", fiber.Map{"id": id})
}
