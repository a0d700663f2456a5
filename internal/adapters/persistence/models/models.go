package models

import (
	"time"

	"libristack/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Identity
// ============================================================

// User represents users table
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	FullName      string         `gorm:"size:100" json:"full_name"`
	Email         string         `gorm:"uniqueIndex;size:120;not null" json:"email"`
	Password      string         `gorm:"size:255;not null" json:"-"`
	Phone         string         `gorm:"size:20" json:"phone"`
	Role          string         `gorm:"size:10;index;not null;default:'user'" json:"role"`
	IsVerified    bool           `gorm:"not null;default:false" json:"is_verified"`
	InvitedBy     *string        `gorm:"size:120" json:"invited_by"`
	OwnInviteCode *string        `gorm:"size:5;uniqueIndex" json:"own_invite_code"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID            uint      `json:"id"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Role          string    `json:"role"`
	IsVerified    bool      `json:"is_verified"`
	InvitedBy     string    `json:"invited_by,omitempty"`
	OwnInviteCode string    `json:"own_invite_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	resp := &UserResponse{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		Phone:      u.Phone,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
	if u.InvitedBy != nil {
		resp.InvitedBy = *u.InvitedBy
	}
	if u.OwnInviteCode != nil {
		resp.OwnInviteCode = *u.OwnInviteCode
	}
	return resp
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Catalog
// ============================================================

// Book represents books table
type Book struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:512;not null;index" json:"title"`
	Author          string         `gorm:"size:512;not null;index" json:"author"`
	Language        string         `gorm:"size:50;not null;default:'English';index" json:"language"`
	ISBN            string         `gorm:"column:isbn;size:20" json:"isbn"`
	Description     string         `gorm:"type:text" json:"description"`
	CoverImage      string         `gorm:"size:512" json:"cover_image"`
	TotalCopies     int            `gorm:"not null" json:"total_copies"`
	AvailableCopies int            `gorm:"not null" json:"available_copies"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// CopiesValid reports whether the copy counters satisfy 0 <= available <= total
func (b *Book) CopiesValid() bool {
	return b.TotalCopies >= 0 && b.AvailableCopies >= 0 && b.AvailableCopies <= b.TotalCopies
}

// ============================================================
// Lending Ledger
// ============================================================

// BorrowRecord represents borrow_records table.
// Rows are never deleted; they form the lending history.
type BorrowRecord struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_borrow_user_status,priority:1" json:"user_id"`
	BookID     uint       `gorm:"not null;index:idx_borrow_book_status,priority:1" json:"book_id"`
	BorrowDate time.Time  `gorm:"not null" json:"borrow_date"`
	DueDate    time.Time  `gorm:"not null;index" json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	Status     string     `gorm:"size:20;not null;default:'borrowed';index:idx_borrow_user_status,priority:2;index:idx_borrow_book_status,priority:2" json:"status"`
	Renewed    bool       `gorm:"not null;default:false" json:"renewed"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (BorrowRecord) TableName() string {
	return "borrow_records"
}

// BorrowRecordResponse DTO
type BorrowRecordResponse struct {
	ID         uint       `json:"id"`
	UserID     uint       `json:"user_id"`
	UserEmail  string     `json:"user_email,omitempty"`
	UserName   string     `json:"user_name,omitempty"`
	BookID     uint       `json:"book_id"`
	BookTitle  string     `json:"book_title,omitempty"`
	BookAuthor string     `json:"book_author,omitempty"`
	CoverImage string     `json:"cover_image,omitempty"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	Status     string     `json:"status"`
	Renewed    bool       `json:"renewed"`
	IsOverdue  bool       `json:"is_overdue"`
}

// ToResponse flattens the record and its preloaded relations.
// now decides the overdue flag.
func (r *BorrowRecord) ToResponse(now time.Time) *BorrowRecordResponse {
	resp := &BorrowRecordResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		BookID:     r.BookID,
		BorrowDate: r.BorrowDate,
		DueDate:    r.DueDate,
		ReturnDate: r.ReturnDate,
		Status:     r.Status,
		Renewed:    r.Renewed,
		IsOverdue:  r.Status == StatusBorrowed && now.After(r.DueDate),
	}
	if r.User != nil {
		resp.UserEmail = r.User.Email
		resp.UserName = r.User.FullName
	}
	if r.Book != nil {
		resp.BookTitle = r.Book.Title
		resp.BookAuthor = r.Book.Author
		resp.CoverImage = r.Book.CoverImage
	}
	return resp
}

// Borrow record statuses
const (
	StatusBorrowed = string(domain.LoanBorrowed)
	StatusReturned = string(domain.LoanReturned)
)

// ============================================================
// Contact
// ============================================================

// ContactMessage represents contact_messages table (append-only)
type ContactMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:120;not null" json:"email"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ContactMessage) TableName() string {
	return "contact_messages"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate creates or updates all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Book{},
		&BorrowRecord{},
		&ContactMessage{},
	)
}
