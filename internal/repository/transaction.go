package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository/dao"
)

var (
	ErrTransactionNotFound  = dao.ErrTransactionNotFound
	ErrTransactionFinalized = dao.ErrTransactionFinalized
)

type TransactionDAO interface {
	CreatePurchase(ctx context.Context, txn dao.Transaction, items []dao.TransactionItem, res dao.Reservation) (dao.Transaction, error)
	FindByID(ctx context.Context, id uint) (dao.Transaction, error)
	FindByUser(ctx context.Context, userID uint) ([]dao.Transaction, error)
	FindByOrganizer(ctx context.Context, organizerID uint, status string) ([]dao.Transaction, error)
	MarkProofUploaded(ctx context.Context, id uint, proofURL string, proofAt, decisionDueAt time.Time) (dao.Transaction, error)
	Finalize(ctx context.Context, id uint, from, to string, comp *dao.Reservation) (dao.Transaction, error)
	FindPaymentOverdue(ctx context.Context, now time.Time) ([]dao.Transaction, error)
	FindDecisionOverdue(ctx context.Context, now time.Time) ([]dao.Transaction, error)
	SummarizeByEvent(ctx context.Context, eventID uint) ([]dao.StatusCount, error)
}

type TransactionRepository struct {
	dao TransactionDAO
}

func NewTransactionRepository(dao TransactionDAO) *TransactionRepository {
	return &TransactionRepository{
		dao: dao,
	}
}

func (r *TransactionRepository) domainToDao(t domain.Transaction) dao.Transaction {
	return dao.Transaction{
		ID:              t.ID,
		UserID:          t.UserID,
		EventID:         t.EventID,
		Status:          string(t.Status),
		TotalBefore:     t.TotalBefore,
		PointsUsed:      t.PointsUsed,
		PromoID:         t.PromoID,
		PromoCode:       t.PromoCode,
		PromoDiscount:   t.PromoDiscount,
		TotalPayable:    t.TotalPayable,
		PaymentProofURL: t.PaymentProofURL,
		PaymentProofAt:  t.PaymentProofAt,
		ExpiresAt:       t.ExpiresAt,
		DecisionDueAt:   t.DecisionDueAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func (r *TransactionRepository) daoToDomain(t dao.Transaction) domain.Transaction {
	items := make([]domain.TransactionItem, len(t.Items))
	for i, item := range t.Items {
		items[i] = domain.TransactionItem{
			ID:            item.ID,
			TransactionID: item.TransactionID,
			TicketTypeID:  item.TicketTypeID,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			Subtotal:      item.Subtotal,
		}
	}

	return domain.Transaction{
		ID:              t.ID,
		UserID:          t.UserID,
		EventID:         t.EventID,
		Status:          domain.TransactionStatus(t.Status),
		TotalBefore:     t.TotalBefore,
		PointsUsed:      t.PointsUsed,
		PromoID:         t.PromoID,
		PromoCode:       t.PromoCode,
		PromoDiscount:   t.PromoDiscount,
		TotalPayable:    t.TotalPayable,
		PaymentProofURL: t.PaymentProofURL,
		PaymentProofAt:  t.PaymentProofAt,
		ExpiresAt:       t.ExpiresAt,
		DecisionDueAt:   t.DecisionDueAt,
		Items:           items,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func (r *TransactionRepository) daosToDomain(txns []dao.Transaction) []domain.Transaction {
	result := make([]domain.Transaction, len(txns))
	for i, t := range txns {
		result[i] = r.daoToDomain(t)
	}
	return result
}

func compensationToDao(c *domain.Compensation) *dao.Reservation {
	if c == nil {
		return nil
	}
	return &dao.Reservation{
		EventID:    c.EventID,
		Quantity:   c.Quantity,
		UserID:     c.UserID,
		PointsUsed: c.PointsUsed,
		PromoID:    c.PromoID,
	}
}

// CreatePurchase persists the transaction plus items and reserves seats,
// promo use and points in one atomic unit of work.
func (r *TransactionRepository) CreatePurchase(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	items := make([]dao.TransactionItem, len(txn.Items))
	for i, item := range txn.Items {
		items[i] = dao.TransactionItem{
			TicketTypeID: item.TicketTypeID,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Subtotal:     item.Subtotal,
		}
	}

	res := dao.Reservation{
		EventID:    txn.EventID,
		Quantity:   txn.Quantity(),
		UserID:     txn.UserID,
		PointsUsed: txn.PointsUsed,
		PromoID:    txn.PromoID,
	}

	created, err := r.dao.CreatePurchase(ctx, r.domainToDao(txn), items, res)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.CreatePurchase -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uint) (domain.Transaction, error) {
	txn, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(txn), nil
}

func (r *TransactionRepository) GetByUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	txns, err := r.dao.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByUser -> %w", err)
	}

	return r.daosToDomain(txns), nil
}

func (r *TransactionRepository) GetByOrganizer(ctx context.Context, organizerID uint, status domain.TransactionStatus) ([]domain.Transaction, error) {
	txns, err := r.dao.FindByOrganizer(ctx, organizerID, string(status))
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByOrganizer -> %w", err)
	}

	return r.daosToDomain(txns), nil
}

func (r *TransactionRepository) MarkProofUploaded(ctx context.Context, id uint, proofURL string, proofAt, decisionDueAt time.Time) (domain.Transaction, error) {
	txn, err := r.dao.MarkProofUploaded(ctx, id, proofURL, proofAt, decisionDueAt)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.MarkProofUploaded -> %w", err)
	}

	return r.daoToDomain(txn), nil
}

// Finalize flips status from -> to and applies the compensation (when given)
// atomically with the flip.
func (r *TransactionRepository) Finalize(ctx context.Context, id uint, from, to domain.TransactionStatus, comp *domain.Compensation) (domain.Transaction, error) {
	txn, err := r.dao.Finalize(ctx, id, string(from), string(to), compensationToDao(comp))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("r.dao.Finalize -> %w", err)
	}

	return r.daoToDomain(txn), nil
}

func (r *TransactionRepository) GetPaymentOverdue(ctx context.Context, now time.Time) ([]domain.Transaction, error) {
	txns, err := r.dao.FindPaymentOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindPaymentOverdue -> %w", err)
	}

	return r.daosToDomain(txns), nil
}

func (r *TransactionRepository) GetDecisionOverdue(ctx context.Context, now time.Time) ([]domain.Transaction, error) {
	txns, err := r.dao.FindDecisionOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindDecisionOverdue -> %w", err)
	}

	return r.daosToDomain(txns), nil
}

// EventSummary aggregates an event's transactions per status.
type EventSummary struct {
	Status  domain.TransactionStatus `json:"status"`
	Count   int64                    `json:"count"`
	Revenue int64                    `json:"revenue"`
}

func (r *TransactionRepository) SummarizeByEvent(ctx context.Context, eventID uint) ([]EventSummary, error) {
	rows, err := r.dao.SummarizeByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.SummarizeByEvent -> %w", err)
	}

	summary := make([]EventSummary, len(rows))
	for i, row := range rows {
		summary[i] = EventSummary{
			Status:  domain.TransactionStatus(row.Status),
			Count:   row.Count,
			Revenue: row.Revenue,
		}
	}

	return summary, nil
}
