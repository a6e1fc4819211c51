package repository

import (
	"context"
	"fmt"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository/dao"
)

var (
	ErrPromoNotFound   = dao.ErrPromoNotFound
	ErrPromoExhausted  = dao.ErrPromoExhausted
	ErrPromoCodeExists = dao.ErrPromoCodeExists
)

type PromotionDAO interface {
	Insert(ctx context.Context, promo dao.Promotion) (dao.Promotion, error)
	FindByEventAndCode(ctx context.Context, eventID uint, code string) (dao.Promotion, error)
	FindByEvent(ctx context.Context, eventID uint) ([]dao.Promotion, error)
}

type PromotionRepository struct {
	dao PromotionDAO
}

func NewPromotionRepository(dao PromotionDAO) *PromotionRepository {
	return &PromotionRepository{
		dao: dao,
	}
}

func (r *PromotionRepository) domainToDao(p domain.Promotion) dao.Promotion {
	return dao.Promotion{
		ID:        p.ID,
		EventID:   p.EventID,
		Code:      p.Code,
		Kind:      string(p.Kind),
		Value:     p.Value,
		MinSpend:  p.MinSpend,
		StartsAt:  p.StartsAt,
		EndsAt:    p.EndsAt,
		MaxUses:   p.MaxUses,
		UsedCount: p.UsedCount,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (r *PromotionRepository) daoToDomain(p dao.Promotion) domain.Promotion {
	return domain.Promotion{
		ID:        p.ID,
		EventID:   p.EventID,
		Code:      p.Code,
		Kind:      domain.PromotionKind(p.Kind),
		Value:     p.Value,
		MinSpend:  p.MinSpend,
		StartsAt:  p.StartsAt,
		EndsAt:    p.EndsAt,
		MaxUses:   p.MaxUses,
		UsedCount: p.UsedCount,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (r *PromotionRepository) Create(ctx context.Context, promo domain.Promotion) (domain.Promotion, error) {
	created, err := r.dao.Insert(ctx, r.domainToDao(promo))
	if err != nil {
		return domain.Promotion{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *PromotionRepository) GetByEventAndCode(ctx context.Context, eventID uint, code string) (domain.Promotion, error) {
	promo, err := r.dao.FindByEventAndCode(ctx, eventID, code)
	if err != nil {
		return domain.Promotion{}, fmt.Errorf("r.dao.FindByEventAndCode -> %w", err)
	}

	return r.daoToDomain(promo), nil
}

func (r *PromotionRepository) GetByEvent(ctx context.Context, eventID uint) ([]domain.Promotion, error) {
	promos, err := r.dao.FindByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByEvent -> %w", err)
	}

	result := make([]domain.Promotion, len(promos))
	for i, p := range promos {
		result[i] = r.daoToDomain(p)
	}

	return result, nil
}
