package domain

import "time"

type TransactionStatus string

const (
	StatusWaitingPayment      TransactionStatus = "WAITING_PAYMENT"
	StatusWaitingConfirmation TransactionStatus = "WAITING_CONFIRMATION"
	StatusDone                TransactionStatus = "DONE"
	StatusRejected            TransactionStatus = "REJECTED"
	StatusCanceled            TransactionStatus = "CANCELED"
	StatusExpired             TransactionStatus = "EXPIRED"
)

// IsFinal reports whether no further status change is allowed.
func (s TransactionStatus) IsFinal() bool {
	switch s {
	case StatusDone, StatusRejected, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// NeedsCompensation reports whether reaching this status must restore the
// resources reserved at creation (seats, points, promo use).
func (s TransactionStatus) NeedsCompensation() bool {
	switch s {
	case StatusRejected, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

type Transaction struct {
	ID              uint              `json:"id"`
	UserID          uint              `json:"user_id"`
	EventID         uint              `json:"event_id"`
	Status          TransactionStatus `json:"status"`
	TotalBefore     int               `json:"total_before"`
	PointsUsed      int               `json:"points_used"`
	PromoID         *uint             `json:"promo_id,omitempty"`
	PromoCode       string            `json:"promo_code,omitempty"`
	PromoDiscount   int               `json:"promo_discount"`
	TotalPayable    int               `json:"total_payable"`
	PaymentProofURL string            `json:"payment_proof_url,omitempty"`
	PaymentProofAt  *time.Time        `json:"payment_proof_at,omitempty"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	DecisionDueAt   *time.Time        `json:"decision_due_at,omitempty"`
	Items           []TransactionItem `json:"items,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type TransactionItem struct {
	ID            uint `json:"id"`
	TransactionID uint `json:"transaction_id"`
	TicketTypeID  uint `json:"ticket_type_id"`
	Quantity      int  `json:"quantity"`
	// UnitPrice and Subtotal are snapshots taken at purchase time and do not
	// follow later price changes.
	UnitPrice int `json:"unit_price"`
	Subtotal  int `json:"subtotal"`
}

// Quantity returns the total number of seats this transaction reserved.
func (t *Transaction) Quantity() int {
	qty := 0
	for _, item := range t.Items {
		qty += item.Quantity
	}
	return qty
}

// Compensation describes the resources to restore when a transaction is
// rejected, canceled or expired. It mirrors exactly what creation reserved.
type Compensation struct {
	EventID    uint
	Quantity   int
	UserID     uint
	PointsUsed int
	PromoID    *uint
}

// CompensationFor builds the compensation matching this transaction's
// reservation.
func (t *Transaction) CompensationFor() Compensation {
	return Compensation{
		EventID:    t.EventID,
		Quantity:   t.Quantity(),
		UserID:     t.UserID,
		PointsUsed: t.PointsUsed,
		PromoID:    t.PromoID,
	}
}
