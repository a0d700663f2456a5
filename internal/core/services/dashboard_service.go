package services

import (
	"context"
	"fmt"
	"time"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/adapters/persistence/repositories"
	"libristack/internal/core/domain"

	"gorm.io/gorm"
)

// DashboardService aggregates library-wide figures for administrators
type DashboardService struct {
	store *repositories.Store
	now   func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(store *repositories.Store) *DashboardService {
	return &DashboardService{store: store, now: time.Now}
}

// SetClock replaces the time source
func (s *DashboardService) SetClock(now func() time.Time) {
	s.now = now
}

// ============================================================
// Admin Dashboard
// ============================================================

// AdminDashboardData represents admin dashboard data
type AdminDashboardData struct {
	// Users
	TotalUsers  int64 `json:"total_users"`
	TotalAdmins int64 `json:"total_admins"`
	Unverified  int64 `json:"unverified_users"`

	// Catalog
	TotalTitles     int64 `json:"total_titles"`
	TotalCopies     int64 `json:"total_copies"`
	AvailableCopies int64 `json:"available_copies"`

	// Ledger
	ActiveLoans      int64 `json:"active_loans"`
	OverdueLoans     int64 `json:"overdue_loans"`
	LoansThisMonth   int64 `json:"loans_this_month"`
	ReturnsThisMonth int64 `json:"returns_this_month"`

	RecentLoans []LoanSummary `json:"recent_loans"`
	TopBooks    []BookStats   `json:"top_books"`
}

// LoanSummary is one line of recent lending activity
type LoanSummary struct {
	ID         uint      `json:"id"`
	UserEmail  string    `json:"user_email"`
	BookTitle  string    `json:"book_title"`
	Status     string    `json:"status"`
	BorrowDate time.Time `json:"borrow_date"`
	DueDate    time.Time `json:"due_date"`
}

// BookStats counts how often a title was borrowed
type BookStats struct {
	BookID    uint   `json:"book_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	TimesLent int64  `json:"times_lent"`
	OnLoanNow int64  `json:"on_loan_now"`
}

// GetAdminDashboard returns admin dashboard data
func (s *DashboardService) GetAdminDashboard(ctx context.Context, actor domain.Actor) (*AdminDashboardData, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	db := s.store.DB().WithContext(ctx)
	now := s.now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	data := &AdminDashboardData{}

	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"users", db.Model(&models.User{}), &data.TotalUsers},
		{"admins", db.Model(&models.User{}).Where("role = ?", domain.RoleAdmin.String()), &data.TotalAdmins},
		{"unverified", db.Model(&models.User{}).Where("is_verified = ?", false), &data.Unverified},
		{"titles", db.Model(&models.Book{}), &data.TotalTitles},
		{"active loans", db.Model(&models.BorrowRecord{}).Where("status = ?", models.StatusBorrowed), &data.ActiveLoans},
		{"overdue loans", db.Model(&models.BorrowRecord{}).Where("status = ? AND due_date < ?", models.StatusBorrowed, now), &data.OverdueLoans},
		{"loans this month", db.Model(&models.BorrowRecord{}).Where("borrow_date >= ?", startOfMonth), &data.LoansThisMonth},
		{"returns this month", db.Model(&models.BorrowRecord{}).Where("return_date >= ?", startOfMonth), &data.ReturnsThisMonth},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", c.name, err)
		}
	}

	var copies struct {
		Total     int64
		Available int64
	}
	err := db.Model(&models.Book{}).
		Select("COALESCE(SUM(total_copies), 0) AS total, COALESCE(SUM(available_copies), 0) AS available").
		Scan(&copies).Error
	if err != nil {
		return nil, fmt.Errorf("sum copies: %w", err)
	}
	data.TotalCopies = copies.Total
	data.AvailableCopies = copies.Available

	// Recent loans
	var recent []LoanSummary
	err = db.Table("borrow_records").
		Select("borrow_records.id, users.email AS user_email, books.title AS book_title, borrow_records.status, borrow_records.borrow_date, borrow_records.due_date").
		Joins("LEFT JOIN users ON borrow_records.user_id = users.id").
		Joins("LEFT JOIN books ON borrow_records.book_id = books.id").
		Order("borrow_records.borrow_date DESC, borrow_records.id DESC").
		Limit(10).
		Scan(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("recent loans: %w", err)
	}
	data.RecentLoans = recent

	// Most borrowed titles
	var top []BookStats
	err = db.Table("borrow_records").
		Select(`
			borrow_records.book_id,
			books.title,
			books.author,
			COUNT(*) AS times_lent,
			SUM(CASE WHEN borrow_records.status = ? THEN 1 ELSE 0 END) AS on_loan_now
		`, models.StatusBorrowed).
		Joins("LEFT JOIN books ON borrow_records.book_id = books.id").
		Group("borrow_records.book_id, books.title, books.author").
		Order("times_lent DESC, borrow_records.book_id ASC").
		Limit(5).
		Scan(&top).Error
	if err != nil {
		return nil, fmt.Errorf("top books: %w", err)
	}
	data.TopBooks = top

	if data.RecentLoans == nil {
		data.RecentLoans = []LoanSummary{}
	}
	if data.TopBooks == nil {
		data.TopBooks = []BookStats{}
	}
	return data, nil
}
