package domain

import "errors"

// Kind classifies a domain error for transport mapping
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is a domain failure with a stable machine-readable code
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// AsError extracts a domain error from err, if any
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Common domain errors
var (
	ErrInvalidInput = newError(KindValidation, "validation_failed", "invalid input")
	ErrInvalidRole  = newError(KindValidation, "invalid_role", "role must be 'user' or 'admin'")
	ErrUnauthorized = newError(KindUnauthorized, "unauthorized", "authentication required")
	ErrForbidden    = newError(KindForbidden, "forbidden", "you don't have permission to perform this action")
)

// Identity errors
var (
	ErrUserNotFound        = newError(KindNotFound, "user_not_found", "user not found")
	ErrEmailTaken          = newError(KindConflict, "email_taken", "email already registered")
	ErrInvalidCredentials  = newError(KindUnauthorized, "invalid_credentials", "invalid email or password")
	ErrEmailNotVerified    = newError(KindUnauthorized, "email_not_verified", "please verify your email first")
	ErrBootstrapRequired   = newError(KindForbidden, "bootstrap_code_required", "system setup required, enter the master code")
	ErrInvalidInviteCode   = newError(KindForbidden, "invalid_invite_code", "invalid or expired invite code")
	ErrInviteCodeExhausted = newError(KindConflict, "invite_code_exhausted", "could not allocate a unique invite code")
	ErrAlreadyAdmin        = newError(KindConflict, "already_admin", "user is already an admin")
	ErrCannotDeleteSelf    = newError(KindForbidden, "cannot_delete_self", "cannot delete your own account")
	ErrUserHasActiveLoans  = newError(KindConflict, "user_has_active_loans", "user still has borrowed books")
	ErrInvalidToken        = newError(KindUnauthorized, "invalid_token", "the link is invalid or has expired")
	ErrTokenRevoked        = newError(KindUnauthorized, "token_revoked", "token revoked, please login again")
)

// Catalog errors
var (
	ErrBookNotFound          = newError(KindNotFound, "book_not_found", "book not found")
	ErrInvalidCopyCounts     = newError(KindValidation, "invalid_copy_counts", "copies must satisfy 0 <= available_copies <= total_copies")
	ErrBookHasActiveLoans    = newError(KindConflict, "book_has_active_loans", "book is currently borrowed and cannot be deleted")
	ErrInventoryInconsistent = newError(KindConflict, "inventory_inconsistent", "available copies would exceed total copies")
)

// Lending errors
var (
	ErrBorrowLimitReached = newError(KindConflict, "limit_reached", "borrowing limit reached")
	ErrAlreadyBorrowed    = newError(KindConflict, "already_borrowed", "you already have this book borrowed")
	ErrNoCopiesAvailable  = newError(KindConflict, "no_copies_available", "no copies available")
	ErrRecordNotFound     = newError(KindNotFound, "record_not_found", "borrow record not found")
	ErrNotRecordOwner     = newError(KindForbidden, "not_record_owner", "borrow record belongs to another user")
	ErrAlreadyReturned    = newError(KindConflict, "already_returned", "book already returned")
	ErrAlreadyRenewed     = newError(KindConflict, "already_renewed", "loan has already been renewed")
	ErrLoanNotActive      = newError(KindConflict, "loan_not_active", "loan is not active")
)
