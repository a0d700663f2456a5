package services

import (
	"context"
	"testing"

	"libristack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestCatalogService_Create(t *testing.T) {
	fx := newFixture(t)
	svc := NewCatalogService(fx.store, zap.NewNop())
	ctx := context.Background()
	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))
	reader := actorOf(fx.user("reader@example.com", domain.RoleUser))

	_, err := svc.Create(ctx, reader, &CreateBookInput{Title: "Dune", Author: "Herbert", TotalCopies: 1})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	book, err := svc.Create(ctx, admin, &CreateBookInput{Title: " Dune ", Author: "Herbert", TotalCopies: 3})
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "English", book.Language)
	assert.Equal(t, 3, book.AvailableCopies)

	zero, err := svc.Create(ctx, admin, &CreateBookInput{Title: "Reference", Author: "Staff", TotalCopies: 2, AvailableCopies: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 0, fx.reloadBook(zero.ID).AvailableCopies)

	_, err = svc.Create(ctx, admin, &CreateBookInput{Title: "Broken", Author: "Nobody", TotalCopies: 1, AvailableCopies: intPtr(2)})
	assert.ErrorIs(t, err, domain.ErrInvalidCopyCounts)

	_, err = svc.Create(ctx, admin, &CreateBookInput{Title: "", Author: "Nobody", TotalCopies: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCatalogService_ListAndLanguages(t *testing.T) {
	fx := newFixture(t)
	svc := NewCatalogService(fx.store, zap.NewNop())
	ctx := context.Background()
	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))

	for _, in := range []*CreateBookInput{
		{Title: "Dune", Author: "Frank Herbert", TotalCopies: 1},
		{Title: "Le Petit Prince", Author: "Saint-Exupery", Language: "French", TotalCopies: 1},
		{Title: "Children of Dune", Author: "Frank Herbert", TotalCopies: 1},
	} {
		_, err := svc.Create(ctx, admin, in)
		require.NoError(t, err)
	}

	out, err := svc.List(ctx, &ListBooksInput{Search: "dune"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)

	out, err = svc.List(ctx, &ListBooksInput{Language: "French"})
	require.NoError(t, err)
	require.Len(t, out.Books, 1)
	assert.Equal(t, "Le Petit Prince", out.Books[0].Title)

	out, err = svc.List(ctx, &ListBooksInput{Language: AllLanguages})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Total)

	languages, err := svc.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"English", "French"}, languages)
}

func TestCatalogService_Update(t *testing.T) {
	fx := newFixture(t)
	lending := NewLendingService(fx.store, zap.NewNop())
	svc := NewCatalogService(fx.store, zap.NewNop())
	ctx := context.Background()

	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))
	reader := actorOf(fx.user("reader@example.com", domain.RoleUser))
	book := fx.book("Dune", 3)

	_, err := lending.Borrow(ctx, reader, book.ID)
	require.NoError(t, err)

	t.Run("total change shifts available", func(t *testing.T) {
		updated, err := svc.Update(ctx, admin, book.ID, &UpdateBookInput{TotalCopies: intPtr(5)})
		require.NoError(t, err)
		assert.Equal(t, 5, updated.TotalCopies)
		assert.Equal(t, 4, updated.AvailableCopies)
	})

	t.Run("cannot shrink below copies on loan", func(t *testing.T) {
		_, err := svc.Update(ctx, admin, book.ID, &UpdateBookInput{TotalCopies: intPtr(2), AvailableCopies: intPtr(2)})
		assert.ErrorIs(t, err, domain.ErrInvalidCopyCounts)
	})

	t.Run("available above total", func(t *testing.T) {
		_, err := svc.Update(ctx, admin, book.ID, &UpdateBookInput{AvailableCopies: intPtr(6)})
		assert.ErrorIs(t, err, domain.ErrInvalidCopyCounts)
	})

	t.Run("metadata only", func(t *testing.T) {
		updated, err := svc.Update(ctx, admin, book.ID, &UpdateBookInput{Title: strPtr("Dune Messiah")})
		require.NoError(t, err)
		assert.Equal(t, "Dune Messiah", updated.Title)
		assert.Equal(t, 4, updated.AvailableCopies)
	})

	t.Run("non admin", func(t *testing.T) {
		_, err := svc.Update(ctx, reader, book.ID, &UpdateBookInput{Title: strPtr("Mine")})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := svc.Update(ctx, admin, 9999, &UpdateBookInput{Title: strPtr("Ghost")})
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})
}

func TestCatalogService_Delete(t *testing.T) {
	fx := newFixture(t)
	lending := NewLendingService(fx.store, zap.NewNop())
	svc := NewCatalogService(fx.store, zap.NewNop())
	ctx := context.Background()

	admin := actorOf(fx.user("admin@example.com", domain.RoleAdmin))
	reader := actorOf(fx.user("reader@example.com", domain.RoleUser))
	book := fx.book("Dune", 1)

	record, err := lending.Borrow(ctx, reader, book.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, book.ID)
	assert.ErrorIs(t, err, domain.ErrBookHasActiveLoans)

	_, err = lending.Return(ctx, reader, record.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, book.ID))

	_, err = svc.Get(ctx, book.ID)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)

	// history still resolves the deleted book
	history, err := lending.History(ctx, reader.UserID, true)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Book)
	assert.Equal(t, "Dune", history[0].Book.Title)

	err = svc.Delete(ctx, admin, book.ID)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}

func TestCatalogService_Import(t *testing.T) {
	fx := newFixture(t)
	svc := NewCatalogService(fx.store, zap.NewNop())
	ctx := context.Background()

	n, err := svc.Import(ctx, []*CreateBookInput{
		{Title: "A", Author: "X", TotalCopies: 2},
		{Title: "B", Author: "Y", TotalCopies: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.Import(ctx, []*CreateBookInput{
		{Title: "C", Author: "Z", TotalCopies: 1},
		{Title: "D", Author: "", TotalCopies: 1},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	out, err := svc.List(ctx, &ListBooksInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)
}
