package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository"
)

var (
	ErrPromoNotFound       = repository.ErrPromoNotFound
	ErrPromoCodeExists     = repository.ErrPromoCodeExists
	ErrPromoExpired        = errors.New("promotion is outside its validity window")
	ErrPromoMinSpendNotMet = errors.New("subtotal below promotion minimum spend")
)

type PromotionRepository interface {
	Create(ctx context.Context, promo domain.Promotion) (domain.Promotion, error)
	GetByEventAndCode(ctx context.Context, eventID uint, code string) (domain.Promotion, error)
	GetByEvent(ctx context.Context, eventID uint) ([]domain.Promotion, error)
}

type PromotionService struct {
	repo PromotionRepository
}

func NewPromotionService(repo PromotionRepository) *PromotionService {
	return &PromotionService{
		repo: repo,
	}
}

// Validate checks a promo code's applicability for a purchase: event scope,
// validity window, usage cap and minimum spend. The actual use reservation is
// a guarded increment inside the purchase unit of work; the exhaustion check
// here only rejects early.
func (s *PromotionService) Validate(ctx context.Context, eventID uint, code string, now time.Time, subtotal int) (domain.Promotion, error) {
	promo, err := s.repo.GetByEventAndCode(ctx, eventID, code)
	if err != nil {
		if errors.Is(err, repository.ErrPromoNotFound) {
			return domain.Promotion{}, ErrPromoNotFound
		}
		return domain.Promotion{}, fmt.Errorf("s.repo.GetByEventAndCode -> %w", err)
	}

	if !promo.IsActive(now) {
		return domain.Promotion{}, ErrPromoExpired
	}
	if promo.IsExhausted() {
		return domain.Promotion{}, ErrPromoExhausted
	}
	if subtotal < promo.MinSpend {
		return domain.Promotion{}, ErrPromoMinSpendNotMet
	}

	return promo, nil
}

func (s *PromotionService) Create(ctx context.Context, promo domain.Promotion) (domain.Promotion, error) {
	created, err := s.repo.Create(ctx, promo)
	if err != nil {
		if errors.Is(err, repository.ErrPromoCodeExists) {
			return domain.Promotion{}, ErrPromoCodeExists
		}
		return domain.Promotion{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *PromotionService) ListByEvent(ctx context.Context, eventID uint) ([]domain.Promotion, error) {
	promos, err := s.repo.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.GetByEvent -> %w", err)
	}

	return promos, nil
}
