package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrPromoNotFound   = errors.New("promotion not found")
	ErrPromoExhausted  = errors.New("promotion usage cap reached")
	ErrPromoCodeExists = errors.New("promotion code already exists for event")
)

type Promotion struct {
	ID      uint   `gorm:"primaryKey"`
	EventID uint   `gorm:"not null;uniqueIndex:idx_promotions_event_code"`
	Code    string `gorm:"not null;uniqueIndex:idx_promotions_event_code"`

	Kind     string `gorm:"not null"` // "PERCENT" or "FLAT"
	Value    int    `gorm:"not null"`
	MinSpend int    `gorm:"not null;default:0"`

	StartsAt time.Time `gorm:"not null"`
	EndsAt   time.Time `gorm:"not null"`

	MaxUses   *int
	UsedCount int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type PromotionDAO struct {
	db *gorm.DB
}

func NewPromotionDAO(db *gorm.DB) *PromotionDAO {
	return &PromotionDAO{
		db: db,
	}
}

func (d *PromotionDAO) Insert(ctx context.Context, promo Promotion) (Promotion, error) {
	result := d.db.WithContext(ctx).Create(&promo)
	if result.Error != nil {
		var err *pgconn.PgError
		if errors.As(result.Error, &err) && err.Code == pgerrcode.UniqueViolation {
			return Promotion{}, ErrPromoCodeExists
		}

		return Promotion{}, result.Error
	}

	return promo, nil
}

func (d *PromotionDAO) FindByEventAndCode(ctx context.Context, eventID uint, code string) (Promotion, error) {
	var promo Promotion
	err := d.db.WithContext(ctx).
		Where("event_id = ? AND code = ?", eventID, code).
		First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Promotion{}, ErrPromoNotFound
		}

		return Promotion{}, err
	}

	return promo, nil
}

func (d *PromotionDAO) FindByEvent(ctx context.Context, eventID uint) ([]Promotion, error) {
	var promos []Promotion
	err := d.db.WithContext(ctx).Where("event_id = ?", eventID).Find(&promos).Error
	if err != nil {
		return nil, err
	}

	return promos, nil
}

// reservePromoUse increments used_count guarded by the usage cap, so the cap
// holds under concurrent purchases.
func reservePromoUse(tx *gorm.DB, promoID uint) error {
	result := tx.Model(&Promotion{}).
		Where("id = ? AND (max_uses IS NULL OR used_count < max_uses)", promoID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPromoExhausted
	}

	return nil
}

// releasePromoUse gives one use back when a transaction with a promo is
// rejected, canceled or expired. Guarded so it can never go negative.
func releasePromoUse(tx *gorm.DB, promoID uint) error {
	result := tx.Model(&Promotion{}).
		Where("id = ? AND used_count > 0", promoID).
		UpdateColumn("used_count", gorm.Expr("used_count - 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPromoNotFound
	}

	return nil
}
