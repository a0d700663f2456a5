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

// AllLanguages disables the language filter
const AllLanguages = "All"

// CatalogService manages books and their copy counters
type CatalogService struct {
	store *repositories.Store
	log   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *repositories.Store, log *zap.Logger) *CatalogService {
	return &CatalogService{store: store, log: log}
}

// ListBooksInput represents list books input
type ListBooksInput struct {
	Search   string
	Language string
	Page     int
	Limit    int
}

// ListBooksOutput represents one page of books
type ListBooksOutput struct {
	Books []*models.Book
	Total int64
}

// CreateBookInput represents create book input
type CreateBookInput struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	Language        string `json:"language"`
	ISBN            string `json:"isbn"`
	Description     string `json:"description"`
	CoverImage      string `json:"cover_image"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies *int   `json:"available_copies"`
}

// UpdateBookInput represents a partial book update
type UpdateBookInput struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	Language        *string `json:"language"`
	ISBN            *string `json:"isbn"`
	Description     *string `json:"description"`
	CoverImage      *string `json:"cover_image"`
	TotalCopies     *int    `json:"total_copies"`
	AvailableCopies *int    `json:"available_copies"`
}

// List lists books by title/author substring and language
func (s *CatalogService) List(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	if input.Page < 1 {
		input.Page = 1
	}
	if input.Limit < 1 || input.Limit > 100 {
		input.Limit = 20
	}

	filter := repositories.BookFilter{Search: strings.TrimSpace(input.Search)}
	if lang := strings.TrimSpace(input.Language); lang != "" && lang != AllLanguages {
		filter.Language = lang
	}

	books, total, err := s.store.Books.List(ctx, filter, (input.Page-1)*input.Limit, input.Limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return &ListBooksOutput{Books: books, Total: total}, nil
}

// Get gets a book by ID
func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Book, error) {
	book, err := s.store.Books.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, domain.ErrBookNotFound, "get book")
	}
	return book, nil
}

// Languages lists the languages present in the catalog
func (s *CatalogService) Languages(ctx context.Context) ([]string, error) {
	languages, err := s.store.Books.Languages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	return languages, nil
}

// Create adds a book; available copies default to the total
func (s *CatalogService) Create(ctx context.Context, actor domain.Actor, input *CreateBookInput) (*models.Book, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	book, err := newBook(input)
	if err != nil {
		return nil, err
	}

	if err := s.store.Books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.log.Info("book created", zap.Uint("book_id", book.ID), zap.String("title", book.Title))
	return book, nil
}

// Import inserts many books at once. Used by the bulk import command.
func (s *CatalogService) Import(ctx context.Context, inputs []*CreateBookInput) (int, error) {
	books := make([]*models.Book, 0, len(inputs))
	for i, input := range inputs {
		book, err := newBook(input)
		if err != nil {
			return 0, fmt.Errorf("book #%d (%q): %w", i+1, input.Title, err)
		}
		books = append(books, book)
	}
	if len(books) == 0 {
		return 0, nil
	}

	if err := s.store.Books.CreateBatch(ctx, books); err != nil {
		return 0, fmt.Errorf("import books: %w", err)
	}
	return len(books), nil
}

func newBook(input *CreateBookInput) (*models.Book, error) {
	title := strings.TrimSpace(input.Title)
	author := strings.TrimSpace(input.Author)
	if title == "" || author == "" {
		return nil, domain.ErrInvalidInput
	}

	available := input.TotalCopies
	if input.AvailableCopies != nil {
		available = *input.AvailableCopies
	}

	language := strings.TrimSpace(input.Language)
	if language == "" {
		language = "English"
	}

	book := &models.Book{
		Title:           title,
		Author:          author,
		Language:        language,
		ISBN:            strings.TrimSpace(input.ISBN),
		Description:     input.Description,
		CoverImage:      input.CoverImage,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: available,
	}
	if !book.CopiesValid() {
		return nil, domain.ErrInvalidCopyCounts
	}
	return book, nil
}

// Update applies a partial update under the book row lock.
// Changing only the total shifts the available count by the same delta.
func (s *CatalogService) Update(ctx context.Context, actor domain.Actor, id uint, input *UpdateBookInput) (*models.Book, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	var book *models.Book
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		b, err := tx.Books.GetByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, domain.ErrBookNotFound, "lock book")
		}

		if input.Title != nil {
			if strings.TrimSpace(*input.Title) == "" {
				return domain.ErrInvalidInput
			}
			b.Title = strings.TrimSpace(*input.Title)
		}
		if input.Author != nil {
			if strings.TrimSpace(*input.Author) == "" {
				return domain.ErrInvalidInput
			}
			b.Author = strings.TrimSpace(*input.Author)
		}
		if input.Language != nil && strings.TrimSpace(*input.Language) != "" {
			b.Language = strings.TrimSpace(*input.Language)
		}
		if input.ISBN != nil {
			b.ISBN = strings.TrimSpace(*input.ISBN)
		}
		if input.Description != nil {
			b.Description = *input.Description
		}
		if input.CoverImage != nil {
			b.CoverImage = *input.CoverImage
		}

		switch {
		case input.TotalCopies != nil && input.AvailableCopies != nil:
			b.TotalCopies = *input.TotalCopies
			b.AvailableCopies = *input.AvailableCopies
		case input.TotalCopies != nil:
			b.AvailableCopies += *input.TotalCopies - b.TotalCopies
			b.TotalCopies = *input.TotalCopies
		case input.AvailableCopies != nil:
			b.AvailableCopies = *input.AvailableCopies
		}
		if !b.CopiesValid() {
			return domain.ErrInvalidCopyCounts
		}

		// copies out on loan can never exceed what the book now owns
		if input.TotalCopies != nil || input.AvailableCopies != nil {
			onLoan, err := tx.Borrows.CountActiveByBook(ctx, b.ID)
			if err != nil {
				return fmt.Errorf("count active loans: %w", err)
			}
			if int64(b.TotalCopies-b.AvailableCopies) < onLoan {
				return domain.ErrInvalidCopyCounts
			}
		}

		if err := tx.Books.Update(ctx, b); err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		book = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("book updated", zap.Uint("book_id", book.ID))
	return book, nil
}

// Delete soft deletes a book that nobody currently borrows
func (s *CatalogService) Delete(ctx context.Context, actor domain.Actor, id uint) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if _, err := tx.Books.GetByIDForUpdate(ctx, id); err != nil {
			return notFound(err, domain.ErrBookNotFound, "lock book")
		}

		active, err := tx.Borrows.CountActiveByBook(ctx, id)
		if err != nil {
			return fmt.Errorf("count active loans: %w", err)
		}
		if active > 0 {
			return domain.ErrBookHasActiveLoans
		}

		if err := tx.Books.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("book deleted", zap.Uint("book_id", id))
	return nil
}
