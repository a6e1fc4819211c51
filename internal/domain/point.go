package domain

import "time"

type PointTransactionType string

const (
	PointEarn   PointTransactionType = "EARN"
	PointSpend  PointTransactionType = "SPEND"
	PointRefund PointTransactionType = "REFUND"
)

// PointTransaction is one entry in a user's point log. EARN entries carry an
// expiry; SPEND and REFUND entries do not.
type PointTransaction struct {
	ID        uint                 `json:"id"`
	UserID    uint                 `json:"user_id"`
	Amount    int                  `json:"amount"`
	Type      PointTransactionType `json:"type"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
	IsExpired bool                 `json:"is_expired"`
	CreatedAt time.Time            `json:"created_at"`
}
