package repository

import (
	"context"
	"fmt"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository/dao"
)

var (
	ErrEventNotFound     = dao.ErrEventNotFound
	ErrInsufficientSeats = dao.ErrInsufficientSeats
	ErrCapacityExceeded  = dao.ErrCapacityExceeded
)

type EventDAO interface {
	Insert(ctx context.Context, event dao.Event) (dao.Event, error)
	FindByID(ctx context.Context, id uint) (dao.Event, error)
	FindAll(ctx context.Context) ([]dao.Event, error)
	FindByOrganizer(ctx context.Context, organizerID uint) ([]dao.Event, error)
}

type EventRepository struct {
	dao EventDAO
}

func NewEventRepository(dao EventDAO) *EventRepository {
	return &EventRepository{
		dao: dao,
	}
}

func (r *EventRepository) domainToDao(e domain.Event) dao.Event {
	ticketTypes := make([]dao.TicketType, len(e.TicketTypes))
	for i, tt := range e.TicketTypes {
		ticketTypes[i] = dao.TicketType{
			ID:      tt.ID,
			EventID: tt.EventID,
			Name:    tt.Name,
			Price:   tt.Price,
			Quota:   tt.Quota,
		}
	}

	return dao.Event{
		ID:             e.ID,
		OrganizerID:    e.OrganizerID,
		Title:          e.Title,
		Description:    e.Description,
		Location:       e.Location,
		StartsAt:       e.StartsAt,
		EndsAt:         e.EndsAt,
		Capacity:       e.Capacity,
		SeatsAvailable: e.SeatsAvailable,
		TicketTypes:    ticketTypes,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (r *EventRepository) daoToDomain(e dao.Event) domain.Event {
	ticketTypes := make([]domain.TicketType, len(e.TicketTypes))
	for i, tt := range e.TicketTypes {
		ticketTypes[i] = domain.TicketType{
			ID:      tt.ID,
			EventID: tt.EventID,
			Name:    tt.Name,
			Price:   tt.Price,
			Quota:   tt.Quota,
		}
	}

	return domain.Event{
		ID:             e.ID,
		OrganizerID:    e.OrganizerID,
		Title:          e.Title,
		Description:    e.Description,
		Location:       e.Location,
		StartsAt:       e.StartsAt,
		EndsAt:         e.EndsAt,
		Capacity:       e.Capacity,
		SeatsAvailable: e.SeatsAvailable,
		TicketTypes:    ticketTypes,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (r *EventRepository) daosToDomain(events []dao.Event) []domain.Event {
	result := make([]domain.Event, len(events))
	for i, e := range events {
		result[i] = r.daoToDomain(e)
	}
	return result
}

func (r *EventRepository) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	created, err := r.dao.Insert(ctx, r.domainToDao(event))
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uint) (domain.Event, error) {
	event, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(event), nil
}

func (r *EventRepository) GetAll(ctx context.Context) ([]domain.Event, error) {
	events, err := r.dao.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindAll -> %w", err)
	}

	return r.daosToDomain(events), nil
}

func (r *EventRepository) GetByOrganizer(ctx context.Context, organizerID uint) ([]domain.Event, error) {
	events, err := r.dao.FindByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByOrganizer -> %w", err)
	}

	return r.daosToDomain(events), nil
}
