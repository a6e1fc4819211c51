package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type CreateTransactionRequest struct {
	EventID      uint   `json:"event_id"`
	TicketTypeID uint   `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
	PromoCode    string `json:"promo_code,omitempty"`
	UsePoints    bool   `json:"use_points"`
}

func (req *CreateTransactionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.EventID, validation.Required),
		validation.Field(&req.TicketTypeID, validation.Required),
		validation.Field(&req.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&req.PromoCode, validation.Length(0, 50)),
	)
}

type UpdateTransactionStatusRequest struct {
	Status string `json:"status"`
}

func (req *UpdateTransactionStatusRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Status, validation.Required, validation.In("DONE", "REJECTED", "CANCELED")),
	)
}
