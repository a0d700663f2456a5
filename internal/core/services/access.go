package services

import "libristack/internal/core/domain"

// RequireAdmin rejects actors without the admin role
func RequireAdmin(actor domain.Actor) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

// RequireOwner rejects actors that do not own the resource, admins included
func RequireOwner(actor domain.Actor, ownerID uint) error {
	if actor.UserID != ownerID {
		return domain.ErrNotRecordOwner
	}
	return nil
}

// RequireOwnerOrAdmin lets admins act on behalf of any owner
func RequireOwnerOrAdmin(actor domain.Actor, ownerID uint) error {
	if actor.IsAdmin() {
		return nil
	}
	return RequireOwner(actor, ownerID)
}
