package domain

import "time"

type PromotionKind string

const (
	PromoPercent PromotionKind = "PERCENT"
	PromoFlat    PromotionKind = "FLAT"
)

type Promotion struct {
	ID        uint          `json:"id"`
	EventID   uint          `json:"event_id"`
	Code      string        `json:"code"`
	Kind      PromotionKind `json:"kind"`
	Value     int           `json:"value"`
	MinSpend  int           `json:"min_spend"`
	StartsAt  time.Time     `json:"starts_at"`
	EndsAt    time.Time     `json:"ends_at"`
	MaxUses   *int          `json:"max_uses,omitempty"` // nil = unlimited
	UsedCount int           `json:"used_count"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsActive reports whether now falls inside the promotion's validity window.
func (p *Promotion) IsActive(now time.Time) bool {
	return !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

// IsExhausted reports whether the usage cap has been reached.
func (p *Promotion) IsExhausted() bool {
	return p.MaxUses != nil && p.UsedCount >= *p.MaxUses
}

// Terms returns the pricing-relevant view of the promotion.
func (p *Promotion) Terms() PromoTerms {
	return PromoTerms{
		Kind:     p.Kind,
		Value:    p.Value,
		MinSpend: p.MinSpend,
	}
}
