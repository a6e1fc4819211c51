package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository/dao"
)

type PointDAO interface {
	FindByUser(ctx context.Context, userID uint) ([]dao.PointTransaction, error)
	CreditEarned(ctx context.Context, userID uint, amount int, expiresAt time.Time) error
	FindStaleGrants(ctx context.Context, now time.Time) ([]dao.PointTransaction, error)
	ExpireGrant(ctx context.Context, grantID uint) error
}

type PointRepository struct {
	dao PointDAO
}

func NewPointRepository(dao PointDAO) *PointRepository {
	return &PointRepository{
		dao: dao,
	}
}

func (r *PointRepository) daoToDomain(p dao.PointTransaction) domain.PointTransaction {
	return domain.PointTransaction{
		ID:        p.ID,
		UserID:    p.UserID,
		Amount:    p.Amount,
		Type:      domain.PointTransactionType(p.Type),
		ExpiresAt: p.ExpiresAt,
		IsExpired: p.IsExpired,
		CreatedAt: p.CreatedAt,
	}
}

func (r *PointRepository) GetByUser(ctx context.Context, userID uint) ([]domain.PointTransaction, error) {
	entries, err := r.dao.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByUser -> %w", err)
	}

	result := make([]domain.PointTransaction, len(entries))
	for i, e := range entries {
		result[i] = r.daoToDomain(e)
	}

	return result, nil
}

func (r *PointRepository) CreditEarned(ctx context.Context, userID uint, amount int, expiresAt time.Time) error {
	if err := r.dao.CreditEarned(ctx, userID, amount, expiresAt); err != nil {
		return fmt.Errorf("r.dao.CreditEarned -> %w", err)
	}

	return nil
}

func (r *PointRepository) GetStaleGrants(ctx context.Context, now time.Time) ([]domain.PointTransaction, error) {
	entries, err := r.dao.FindStaleGrants(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindStaleGrants -> %w", err)
	}

	result := make([]domain.PointTransaction, len(entries))
	for i, e := range entries {
		result[i] = r.daoToDomain(e)
	}

	return result, nil
}

func (r *PointRepository) ExpireGrant(ctx context.Context, grantID uint) error {
	if err := r.dao.ExpireGrant(ctx, grantID); err != nil {
		return fmt.Errorf("r.dao.ExpireGrant -> %w", err)
	}

	return nil
}
