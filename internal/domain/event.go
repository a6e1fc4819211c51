package domain

import "time"

type Event struct {
	ID             uint         `json:"id"`
	OrganizerID    uint         `json:"organizer_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Location       string       `json:"location"`
	StartsAt       time.Time    `json:"starts_at"`
	EndsAt         time.Time    `json:"ends_at"`
	Capacity       int          `json:"capacity"`
	SeatsAvailable int          `json:"seats_available"`
	TicketTypes    []TicketType `json:"ticket_types,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type TicketType struct {
	ID      uint   `json:"id"`
	EventID uint   `json:"event_id"`
	Name    string `json:"name"`
	// Price is in the minor currency unit.
	Price int  `json:"price"`
	Quota *int `json:"quota,omitempty"` // nil = unlimited
}

// TicketTypeByID returns the ticket type with the given id, or false when it
// does not belong to this event.
func (e *Event) TicketTypeByID(id uint) (TicketType, bool) {
	for _, tt := range e.TicketTypes {
		if tt.ID == id {
			return tt, true
		}
	}
	return TicketType{}, false
}
