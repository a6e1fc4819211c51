package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionFinalized means the guarded status flip matched no row
	// because the transaction already left the expected status.
	ErrTransactionFinalized = errors.New("transaction already finalized")
)

type Transaction struct {
	ID      uint `gorm:"primaryKey"`
	UserID  uint `gorm:"not null;index"`
	EventID uint `gorm:"not null;index"`

	Status string `gorm:"not null;index"`

	TotalBefore   int `gorm:"not null"`
	PointsUsed    int `gorm:"not null;default:0"`
	PromoID       *uint
	PromoCode     string
	PromoDiscount int `gorm:"not null;default:0"`
	TotalPayable  int `gorm:"not null"`

	PaymentProofURL string
	PaymentProofAt  *time.Time
	ExpiresAt       *time.Time `gorm:"index"`
	DecisionDueAt   *time.Time `gorm:"index"`

	Items []TransactionItem `gorm:"foreignKey:TransactionID"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type TransactionItem struct {
	ID            uint `gorm:"primaryKey"`
	TransactionID uint `gorm:"not null;index"`
	TicketTypeID  uint `gorm:"not null"`
	Quantity      int  `gorm:"not null"`
	UnitPrice     int  `gorm:"not null"`
	Subtotal      int  `gorm:"not null"`
}

// Reservation names the shared resources a purchase takes while it is
// created. Compensation on rejection/expiry restores exactly this.
type Reservation struct {
	EventID    uint
	Quantity   int
	UserID     uint
	PointsUsed int
	PromoID    *uint
}

type TransactionDAO struct {
	db *gorm.DB
}

func NewTransactionDAO(db *gorm.DB) *TransactionDAO {
	return &TransactionDAO{
		db: db,
	}
}

// CreatePurchase persists a transaction and its items together with every
// resource reservation it depends on: the seat decrement, the promo use and
// the point debit. All of it is one database transaction, so a failure at any
// step (promo exhausted after seats were taken, say) leaves nothing behind.
func (d *TransactionDAO) CreatePurchase(ctx context.Context, txn Transaction, items []TransactionItem, res Reservation) (Transaction, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reserveSeats(tx, res.EventID, res.Quantity); err != nil {
			return err
		}

		if res.PromoID != nil {
			if err := reservePromoUse(tx, *res.PromoID); err != nil {
				return err
			}
		}

		if res.PointsUsed > 0 {
			if err := debitPoints(tx, res.UserID, res.PointsUsed); err != nil {
				return err
			}

			entry := PointTransaction{
				UserID: res.UserID,
				Amount: -res.PointsUsed,
				Type:   "SPEND",
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].TransactionID = txn.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		txn.Items = items

		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	return txn, nil
}

func (d *TransactionDAO) FindByID(ctx context.Context, id uint) (Transaction, error) {
	var txn Transaction
	err := d.db.WithContext(ctx).Preload("Items").First(&txn, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Transaction{}, ErrTransactionNotFound
		}

		return Transaction{}, err
	}

	return txn, nil
}

func (d *TransactionDAO) FindByUser(ctx context.Context, userID uint) ([]Transaction, error) {
	var txns []Transaction
	err := d.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}

	return txns, nil
}

// FindByOrganizer lists transactions against any event the organizer owns,
// optionally filtered by status.
func (d *TransactionDAO) FindByOrganizer(ctx context.Context, organizerID uint, status string) ([]Transaction, error) {
	query := d.db.WithContext(ctx).
		Preload("Items").
		Joins("JOIN events ON events.id = transactions.event_id").
		Where("events.organizer_id = ?", organizerID)
	if status != "" {
		query = query.Where("transactions.status = ?", status)
	}

	var txns []Transaction
	err := query.Order("transactions.created_at DESC").Find(&txns).Error
	if err != nil {
		return nil, err
	}

	return txns, nil
}

// MarkProofUploaded moves a transaction from WAITING_PAYMENT to
// WAITING_CONFIRMATION with the stored proof reference. The status guard is
// part of the update, so a proof that races the sweeper's expiry loses
// cleanly.
func (d *TransactionDAO) MarkProofUploaded(ctx context.Context, id uint, proofURL string, proofAt, decisionDueAt time.Time) (Transaction, error) {
	var txn Transaction
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Transaction{}).
			Where("id = ? AND status = ?", id, "WAITING_PAYMENT").
			Updates(map[string]any{
				"status":            "WAITING_CONFIRMATION",
				"payment_proof_url": proofURL,
				"payment_proof_at":  proofAt,
				"decision_due_at":   decisionDueAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTransactionFinalized
		}

		return tx.Preload("Items").First(&txn, id).Error
	})
	if err != nil {
		return Transaction{}, err
	}

	return txn, nil
}

// Finalize flips a transaction from one status to another and, when a
// compensation is given, restores seats, points and promo use in the same
// database transaction. The guarded status update makes the compensation run
// exactly once: a second caller matches no row and gets
// ErrTransactionFinalized.
func (d *TransactionDAO) Finalize(ctx context.Context, id uint, from, to string, comp *Reservation) (Transaction, error) {
	var txn Transaction
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Transaction{}).
			Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTransactionFinalized
		}

		if comp != nil {
			if err := releaseSeats(tx, comp.EventID, comp.Quantity); err != nil {
				return err
			}

			if comp.PointsUsed > 0 {
				if err := creditPoints(tx, comp.UserID, comp.PointsUsed); err != nil {
					return err
				}

				entry := PointTransaction{
					UserID: comp.UserID,
					Amount: comp.PointsUsed,
					Type:   "REFUND",
				}
				if err := tx.Create(&entry).Error; err != nil {
					return err
				}
			}

			if comp.PromoID != nil {
				if err := releasePromoUse(tx, *comp.PromoID); err != nil {
					return err
				}
			}
		}

		return tx.Preload("Items").First(&txn, id).Error
	})
	if err != nil {
		return Transaction{}, err
	}

	return txn, nil
}

// FindPaymentOverdue returns WAITING_PAYMENT transactions whose payment
// deadline has passed. Rows already moved off WAITING_PAYMENT no longer
// match, which is what makes an interrupted sweep safe to rerun.
func (d *TransactionDAO) FindPaymentOverdue(ctx context.Context, now time.Time) ([]Transaction, error) {
	var txns []Transaction
	err := d.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", "WAITING_PAYMENT", now).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}

	return txns, nil
}

// FindDecisionOverdue returns WAITING_CONFIRMATION transactions whose
// decision deadline has passed.
func (d *TransactionDAO) FindDecisionOverdue(ctx context.Context, now time.Time) ([]Transaction, error) {
	var txns []Transaction
	err := d.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND decision_due_at IS NOT NULL AND decision_due_at < ?", "WAITING_CONFIRMATION", now).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}

	return txns, nil
}

// StatusCount is one row of an event summary.
type StatusCount struct {
	Status  string
	Count   int64
	Revenue int64
}

// SummarizeByEvent aggregates transaction counts and payable totals per
// status for one event.
func (d *TransactionDAO) SummarizeByEvent(ctx context.Context, eventID uint) ([]StatusCount, error) {
	var rows []StatusCount
	err := d.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_payable), 0) AS revenue").
		Where("event_id = ?", eventID).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}
