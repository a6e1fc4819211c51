package request

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

type CreateEventRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Location    string                  `json:"location"`
	StartsAt    time.Time               `json:"starts_at"`
	EndsAt      time.Time               `json:"ends_at"`
	Capacity    int                     `json:"capacity"`
	TicketTypes []CreateTicketTypeInput `json:"ticket_types"`
}

type CreateTicketTypeInput struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
	Quota *int   `json:"quota,omitempty"`
}

func (req *CreateEventRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required, validation.Length(2, 200)),
		validation.Field(&req.Location, validation.Required),
		validation.Field(&req.StartsAt, validation.Required),
		validation.Field(&req.EndsAt, validation.Required),
		validation.Field(&req.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&req.TicketTypes, validation.Required, validation.Length(1, 20)),
	)
	if err != nil {
		return err
	}

	for _, tt := range req.TicketTypes {
		err = validation.ValidateStruct(
			&tt,
			validation.Field(&tt.Name, validation.Required, validation.Length(1, 100)),
			validation.Field(&tt.Price, validation.Min(0)),
			validation.Field(&tt.Quota, validation.Min(1)),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

type CreatePromotionRequest struct {
	Code     string    `json:"code"`
	Kind     string    `json:"kind"`
	Value    int       `json:"value"`
	MinSpend int       `json:"min_spend"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	MaxUses  *int      `json:"max_uses,omitempty"`
}

func (req *CreatePromotionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Code, validation.Required, validation.Length(2, 50)),
		validation.Field(&req.Kind, validation.Required, validation.In("PERCENT", "FLAT")),
		validation.Field(&req.Value, validation.Required, validation.Min(1)),
		validation.Field(&req.MinSpend, validation.Min(0)),
		validation.Field(&req.StartsAt, validation.Required),
		validation.Field(&req.EndsAt, validation.Required),
		validation.Field(&req.MaxUses, validation.Min(1)),
	)
}
