package domain

import "time"

// Lending rules shared by the ledger and the overdue scanner
const (
	MaxActiveLoans = 5
	LoanPeriod     = 30 * 24 * time.Hour
	RenewalPeriod  = 30 * 24 * time.Hour
)

// SystemInviter marks the first admin, who was created with the bootstrap code
const SystemInviter = "SYSTEM_ROOT"

// LoanStatus is the state of a borrow record
type LoanStatus string

const (
	LoanBorrowed LoanStatus = "borrowed"
	LoanReturned LoanStatus = "returned"
)

// Valid reports whether s is a known loan status
func (s LoanStatus) Valid() bool {
	return s == LoanBorrowed || s == LoanReturned
}

// Actor is the authenticated identity performing an operation
type Actor struct {
	UserID uint
	Email  string
	Role   Role
}

// IsAdmin returns true if the actor carries the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// LoanStats summarises a user's lending activity
type LoanStats struct {
	ActiveCount    int64 `json:"active_count"`
	TotalReturned  int64 `json:"total_returned"`
	OverdueCount   int64 `json:"overdue_count"`
	RemainingSlots int64 `json:"remaining_slots"`
}

// ReminderKind distinguishes reminders for loans due soon from overdue ones
type ReminderKind string

const (
	ReminderDueSoon ReminderKind = "due_soon"
	ReminderOverdue ReminderKind = "overdue"
)

// DueReminder is the payload handed to the notification gateway by the scanner
type DueReminder struct {
	RecordID  uint
	UserName  string
	UserEmail string
	BookTitle string
	DueDate   time.Time
	Kind      ReminderKind
}
