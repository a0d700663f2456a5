package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/adapters/persistence/repositories"
	"libristack/internal/core/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LendingService owns the borrow/return/renew state machine.
// Every mutation runs in one transaction that locks the user row before the
// book row, so the limit, duplicate and copy checks hold at commit time.
type LendingService struct {
	store *repositories.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewLendingService creates a new lending service
func NewLendingService(store *repositories.Store, log *zap.Logger) *LendingService {
	return &LendingService{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// SetClock replaces the time source
func (s *LendingService) SetClock(now func() time.Time) {
	s.now = now
}

// Borrow lends one copy of a book to the actor
func (s *LendingService) Borrow(ctx context.Context, actor domain.Actor, bookID uint) (*models.BorrowRecord, error) {
	var record *models.BorrowRecord

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		user, err := tx.Users.GetByIDForUpdate(ctx, actor.UserID)
		if err != nil {
			return notFound(err, domain.ErrUserNotFound, "lock user")
		}

		active, err := tx.Borrows.CountActiveByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("count active loans: %w", err)
		}
		if active >= domain.MaxActiveLoans {
			return domain.ErrBorrowLimitReached
		}

		existing, err := tx.Borrows.FindActive(ctx, user.ID, bookID)
		if err != nil {
			return fmt.Errorf("find active loan: %w", err)
		}
		if existing != nil {
			return domain.ErrAlreadyBorrowed
		}

		book, err := tx.Books.GetByIDForUpdate(ctx, bookID)
		if err != nil {
			return notFound(err, domain.ErrBookNotFound, "lock book")
		}
		if book.AvailableCopies <= 0 {
			return domain.ErrNoCopiesAvailable
		}

		now := s.now()
		rec := &models.BorrowRecord{
			UserID:     user.ID,
			BookID:     book.ID,
			BorrowDate: now,
			DueDate:    now.Add(domain.LoanPeriod),
			Status:     models.StatusBorrowed,
		}
		if err := tx.Borrows.Create(ctx, rec); err != nil {
			return fmt.Errorf("create borrow record: %w", err)
		}

		ok, err := tx.Books.AdjustAvailable(ctx, book.ID, -1)
		if err != nil {
			return fmt.Errorf("decrement copies: %w", err)
		}
		if !ok {
			return domain.ErrNoCopiesAvailable
		}

		book.AvailableCopies--
		rec.User = user
		rec.Book = book
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("book borrowed",
		zap.Uint("record_id", record.ID),
		zap.Uint("user_id", record.UserID),
		zap.Uint("book_id", record.BookID),
	)
	return record, nil
}

// Return closes the actor's loan. Admins may return any loan.
func (s *LendingService) Return(ctx context.Context, actor domain.Actor, recordID uint) (*models.BorrowRecord, error) {
	return s.closeLoan(ctx, actor, recordID)
}

// AdminReturn is the forced return used by administrators
func (s *LendingService) AdminReturn(ctx context.Context, actor domain.Actor, recordID uint) (*models.BorrowRecord, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.closeLoan(ctx, actor, recordID)
}

func (s *LendingService) closeLoan(ctx context.Context, actor domain.Actor, recordID uint) (*models.BorrowRecord, error) {
	var record *models.BorrowRecord

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		rec, err := tx.Borrows.GetByIDForUpdate(ctx, recordID)
		if err != nil {
			return notFound(err, domain.ErrRecordNotFound, "lock borrow record")
		}
		if err := RequireOwnerOrAdmin(actor, rec.UserID); err != nil {
			return err
		}
		if rec.Status != models.StatusBorrowed {
			return domain.ErrAlreadyReturned
		}

		now := s.now()
		rec.Status = models.StatusReturned
		rec.ReturnDate = &now
		if err := tx.Borrows.Update(ctx, rec); err != nil {
			return fmt.Errorf("update borrow record: %w", err)
		}

		ok, err := tx.Books.AdjustAvailable(ctx, rec.BookID, 1)
		if err != nil {
			return fmt.Errorf("increment copies: %w", err)
		}
		if !ok {
			return domain.ErrInventoryInconsistent
		}

		record = rec
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInventoryInconsistent) {
			s.log.Error("return rejected: copy count would exceed total",
				zap.Uint("record_id", recordID),
			)
		}
		return nil, err
	}

	s.log.Info("book returned",
		zap.Uint("record_id", record.ID),
		zap.Uint("book_id", record.BookID),
		zap.Uint("by_user", actor.UserID),
	)
	return s.reload(ctx, record)
}

// Renew extends an active loan once by the renewal period
func (s *LendingService) Renew(ctx context.Context, actor domain.Actor, recordID uint) (*models.BorrowRecord, error) {
	var record *models.BorrowRecord

	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		rec, err := tx.Borrows.GetByIDForUpdate(ctx, recordID)
		if err != nil {
			return notFound(err, domain.ErrRecordNotFound, "lock borrow record")
		}
		if err := RequireOwner(actor, rec.UserID); err != nil {
			return err
		}
		if rec.Status != models.StatusBorrowed {
			return domain.ErrLoanNotActive
		}
		if rec.Renewed {
			return domain.ErrAlreadyRenewed
		}

		rec.DueDate = rec.DueDate.Add(domain.RenewalPeriod)
		rec.Renewed = true
		if err := tx.Borrows.Update(ctx, rec); err != nil {
			return fmt.Errorf("update borrow record: %w", err)
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan renewed",
		zap.Uint("record_id", record.ID),
		zap.Time("due_date", record.DueDate),
	)
	return s.reload(ctx, record)
}

// reload fetches the committed record with user and book attached
func (s *LendingService) reload(ctx context.Context, record *models.BorrowRecord) (*models.BorrowRecord, error) {
	full, err := s.store.Borrows.GetByID(ctx, record.ID)
	if err != nil {
		// the mutation is committed; fall back to the bare row
		s.log.Warn("reload borrow record failed", zap.Uint("record_id", record.ID), zap.Error(err))
		return record, nil
	}
	return full, nil
}

// ActiveLoans lists the user's borrowed records
func (s *LendingService) ActiveLoans(ctx context.Context, userID uint) ([]*models.BorrowRecord, error) {
	records, err := s.store.Borrows.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	return records, nil
}

// History lists the user's records, most recently returned first
func (s *LendingService) History(ctx context.Context, userID uint, returnedOnly bool) ([]*models.BorrowRecord, error) {
	records, err := s.store.Borrows.ListHistoryByUser(ctx, userID, returnedOnly)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// Stats computes the user's lending statistics
func (s *LendingService) Stats(ctx context.Context, userID uint) (*domain.LoanStats, error) {
	active, err := s.store.Borrows.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count active loans: %w", err)
	}
	returned, err := s.store.Borrows.CountReturnedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count returned loans: %w", err)
	}
	overdue, err := s.store.Borrows.CountOverdueByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("count overdue loans: %w", err)
	}

	remaining := int64(domain.MaxActiveLoans) - active
	if remaining < 0 {
		remaining = 0
	}

	return &domain.LoanStats{
		ActiveCount:    active,
		TotalReturned:  returned,
		OverdueCount:   overdue,
		RemainingSlots: remaining,
	}, nil
}

// OverviewInput filters the administrative ledger overview
type OverviewInput struct {
	Status string
	UserID uint
	BookID uint
	Page   int
	Limit  int
}

// OverviewOutput is one page of the ledger
type OverviewOutput struct {
	Records []*models.BorrowRecord
	Total   int64
}

// Overview lists all loan records with user and book identity, newest first
func (s *LendingService) Overview(ctx context.Context, actor domain.Actor, input *OverviewInput) (*OverviewOutput, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if input.Status != "" && !domain.LoanStatus(input.Status).Valid() {
		return nil, domain.ErrInvalidInput
	}
	if input.Page < 1 {
		input.Page = 1
	}
	if input.Limit < 1 || input.Limit > 100 {
		input.Limit = 20
	}

	filter := repositories.BorrowFilter{
		Status: input.Status,
		UserID: input.UserID,
		BookID: input.BookID,
	}
	records, total, err := s.store.Borrows.List(ctx, filter, (input.Page-1)*input.Limit, input.Limit)
	if err != nil {
		return nil, fmt.Errorf("list borrow records: %w", err)
	}

	return &OverviewOutput{Records: records, Total: total}, nil
}

// Now exposes the service clock so transport can compute overdue flags consistently
func (s *LendingService) Now() time.Time {
	return s.now()
}

// notFound maps gorm's not-found to a domain error and wraps everything else
func notFound(err error, domainErr *domain.Error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return fmt.Errorf("%s: %w", op, err)
}
