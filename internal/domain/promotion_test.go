package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPromotion_IsActive(t *testing.T) {
	now := time.Now()
	promo := Promotion{
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	}

	assert.True(t, promo.IsActive(now))
	assert.True(t, promo.IsActive(promo.StartsAt))
	assert.True(t, promo.IsActive(promo.EndsAt))
	assert.False(t, promo.IsActive(now.Add(-2*time.Hour)))
	assert.False(t, promo.IsActive(now.Add(2*time.Hour)))
}

func TestPromotion_IsExhausted(t *testing.T) {
	maxUses := 3

	unlimited := Promotion{UsedCount: 1000}
	assert.False(t, unlimited.IsExhausted())

	capped := Promotion{MaxUses: &maxUses, UsedCount: 2}
	assert.False(t, capped.IsExhausted())

	capped.UsedCount = 3
	assert.True(t, capped.IsExhausted())
}
