package bindings

import (
	"context"
	"errors"
	"time"

	"github.com/violet-hub/keygate/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository wraps every database operation on key bindings. Correctness
// under concurrent issuance and registration rests on the unique indexes and
// the conditional updates here, not on application-level locking.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a binding repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetByIdentity returns the binding owned by identity, or nil when none exists.
func (r *Repository) GetByIdentity(ctx context.Context, identity string) (*models.KeyBinding, error) {
	var binding models.KeyBinding
	err := r.db.WithContext(ctx).Where("identity = ?", identity).First(&binding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &binding, nil
}

// GetByKey returns the binding holding key, or nil when none exists.
func (r *Repository) GetByKey(ctx context.Context, key string) (*models.KeyBinding, error) {
	var binding models.KeyBinding
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&binding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &binding, nil
}

// KeyExists checks whether a key is already taken.
func (r *Repository) KeyExists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.KeyBinding{}).Where("key = ?", key).Count(&count).Error
	return count > 0, err
}

// CreateIgnoreConflict inserts a new binding, doing nothing when a row for the
// same identity (or the same key) already exists. Returns whether the insert
// actually happened; on false the caller must re-read to find the winner.
func (r *Repository) CreateIgnoreConflict(ctx context.Context, binding *models.KeyBinding) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(binding)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Reactivate starts a fresh activation window for a binding: ActivatedAt moves
// to now and the notified flag re-arms. Key and hardware binding are untouched.
func (r *Repository) Reactivate(ctx context.Context, id uint, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.KeyBinding{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"activated_at": now,
			"notified":     false,
		}).Error
}

// BindHardware sets the hardware fingerprint on a still-unbound binding as a
// single conditional update. First writer wins: returns false when the row is
// missing or some fingerprint is already set, without touching the stored value.
func (r *Repository) BindHardware(ctx context.Context, key, hardwareID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.KeyBinding{}).
		Where("key = ? AND (hardware_id IS NULL OR hardware_id = '')", key).
		Update("hardware_id", hardwareID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindExpiredUnnotified returns bindings whose window lapsed at or before
// cutoff and that have not yet been sent an expiry notice, oldest first.
func (r *Repository) FindExpiredUnnotified(ctx context.Context, cutoff time.Time, limit int) ([]models.KeyBinding, error) {
	var rows []models.KeyBinding
	err := r.db.WithContext(ctx).
		Where("activated_at <= ? AND notified = ?", cutoff, false).
		Order("activated_at asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkNotified claims the expiry notice for one binding. The condition keeps
// this at-most-once: a concurrent sweep or a reactivation that already moved
// activated_at past cutoff makes the update a no-op.
func (r *Repository) MarkNotified(ctx context.Context, id uint, cutoff time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.KeyBinding{}).
		Where("id = ? AND notified = ? AND activated_at <= ?", id, false, cutoff).
		Update("notified", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearStaleNotified re-arms the notified flag on live bindings that are past
// the re-arm threshold but not yet expired. Rows between rearmCutoff and
// windowCutoff keep their flag so the notify pass is not re-triggered for a
// window that was already handled.
func (r *Repository) ClearStaleNotified(ctx context.Context, windowCutoff, rearmCutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.KeyBinding{}).
		Where("notified = ? AND activated_at > ? AND activated_at <= ?", true, windowCutoff, rearmCutoff).
		Update("notified", false)
	return result.RowsAffected, result.Error
}

// Count returns the total number of bindings.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.KeyBinding{}).Count(&count).Error
	return count, err
}
