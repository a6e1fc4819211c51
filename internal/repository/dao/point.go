package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// PointTransaction logs every change to a user's point balance. EARN rows
// carry an expiry date; the scalar users.points column must always equal the
// sum of non-expired rows.
type PointTransaction struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"not null;index"`

	Amount int    `gorm:"not null"`
	Type   string `gorm:"not null"` // "EARN", "SPEND" or "REFUND"

	ExpiresAt *time.Time `gorm:"index"`
	IsExpired bool       `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
}

type PointDAO struct {
	db *gorm.DB
}

func NewPointDAO(db *gorm.DB) *PointDAO {
	return &PointDAO{
		db: db,
	}
}

func (d *PointDAO) FindByUser(ctx context.Context, userID uint) ([]PointTransaction, error) {
	var entries []PointTransaction
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// CreditEarned grants points to a user: balance credit plus an EARN log row,
// in one unit of work.
func (d *PointDAO) CreditEarned(ctx context.Context, userID uint, amount int, expiresAt time.Time) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := creditPoints(tx, userID, amount); err != nil {
			return err
		}

		entry := PointTransaction{
			UserID:    userID,
			Amount:    amount,
			Type:      "EARN",
			ExpiresAt: &expiresAt,
		}

		return tx.Create(&entry).Error
	})
}

// FindStaleGrants returns EARN rows whose expiry has passed and that are not
// yet flagged expired.
func (d *PointDAO) FindStaleGrants(ctx context.Context, now time.Time) ([]PointTransaction, error) {
	var entries []PointTransaction
	err := d.db.WithContext(ctx).
		Where("type = ? AND is_expired = ? AND expires_at IS NOT NULL AND expires_at <= ?", "EARN", false, now).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// ExpireGrant flags one EARN row expired and removes its amount from the
// user's balance. The flag is checked-and-set in the same unit of work, so
// running the sweep twice cannot double-decrement. The balance decrement is
// clamped at zero because the user may already have spent the granted points.
func (d *PointDAO) ExpireGrant(ctx context.Context, grantID uint) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grant PointTransaction
		if err := tx.First(&grant, grantID).Error; err != nil {
			return err
		}

		result := tx.Model(&PointTransaction{}).
			Where("id = ? AND is_expired = ?", grantID, false).
			UpdateColumn("is_expired", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Already expired by an earlier sweep.
			return nil
		}

		return tx.Model(&User{}).
			Where("id = ?", grant.UserID).
			UpdateColumn("points", gorm.Expr("GREATEST(points - ?, 0)", grant.Amount)).Error
	})
}
