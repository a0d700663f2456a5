package repositories

import (
	"context"

	"libristack/internal/adapters/persistence/models"
	"libristack/internal/core/domain"

	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID gets a user by ID
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate gets a user by ID and locks the row until the transaction ends
func (r *userRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail gets a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAdminByInviteCode finds the current admin owning an invite code
func (r *userRepository) GetAdminByInviteCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("own_invite_code = ?", code).
		Where("role = ?", domain.RoleAdmin).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LockAdmins returns all admins, locking their index range so a concurrent
// registration cannot insert the first admin twice
func (r *userRepository) LockAdmins(ctx context.Context) ([]*models.User, error) {
	var admins []*models.User
	err := forUpdate(r.db.WithContext(ctx)).
		Where("role = ?", domain.RoleAdmin).
		Order("id ASC").
		Find(&admins).Error
	return admins, err
}

// Update updates a user
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// Delete soft deletes a user
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, id).Error
}

// List lists users with pagination
func (r *userRepository) List(ctx context.Context, search string, offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if search != "" {
			like := "%" + search + "%"
			db = db.Where("email LIKE ? OR full_name LIKE ?", like, like)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&models.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).Scopes(scope).Order("id ASC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// ListRecipients lists users that can receive bulk mail
func (r *userRepository) ListRecipients(ctx context.Context, verifiedOnly bool) ([]*models.User, error) {
	var users []*models.User
	query := r.db.WithContext(ctx).Model(&models.User{})
	if verifiedOnly {
		query = query.Where("is_verified = ?", true)
	}
	err := query.Order("id ASC").Find(&users).Error
	return users, err
}

// ExistsByEmail checks if email exists, including soft-deleted accounts
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// ExistsByInviteCode checks if an invite code was ever issued
func (r *userRepository) ExistsByInviteCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("own_invite_code = ?", code).Count(&count).Error
	return count > 0, err
}
