package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository"
)

type EventRepository interface {
	Create(ctx context.Context, event domain.Event) (domain.Event, error)
	GetByID(ctx context.Context, id uint) (domain.Event, error)
	GetAll(ctx context.Context) ([]domain.Event, error)
	GetByOrganizer(ctx context.Context, organizerID uint) ([]domain.Event, error)
}

type EventService struct {
	repo   EventRepository
	promos *PromotionService
}

func NewEventService(repo EventRepository, promos *PromotionService) *EventService {
	return &EventService{
		repo:   repo,
		promos: promos,
	}
}

// CreateEvent persists a new event. Capacity is fixed at creation and all
// seats start available.
func (s *EventService) CreateEvent(ctx context.Context, event domain.Event, organizerID uint) (domain.Event, error) {
	event.OrganizerID = organizerID
	event.SeatsAvailable = event.Capacity

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return domain.Event{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func (s *EventService) GetEvent(ctx context.Context, id uint) (domain.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return domain.Event{}, ErrEventNotFound
		}

		return domain.Event{}, fmt.Errorf("s.repo.GetByID -> %w", err)
	}

	return event, nil
}

func (s *EventService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	events, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.GetAll -> %w", err)
	}

	return events, nil
}

func (s *EventService) ListForOrganizer(ctx context.Context, organizerID uint) ([]domain.Event, error) {
	events, err := s.repo.GetByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.GetByOrganizer -> %w", err)
	}

	return events, nil
}

// CreatePromotion adds a promo code to one of the organizer's events.
func (s *EventService) CreatePromotion(ctx context.Context, promo domain.Promotion, organizerID uint) (domain.Promotion, error) {
	event, err := s.GetEvent(ctx, promo.EventID)
	if err != nil {
		return domain.Promotion{}, err
	}
	if event.OrganizerID != organizerID {
		return domain.Promotion{}, ErrNotEventOrganizer
	}

	created, err := s.promos.Create(ctx, promo)
	if err != nil {
		return domain.Promotion{}, err
	}

	return created, nil
}

// ListPromotions returns the promo codes of one of the organizer's events.
func (s *EventService) ListPromotions(ctx context.Context, eventID, organizerID uint) ([]domain.Promotion, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != organizerID {
		return nil, ErrNotEventOrganizer
	}

	promos, err := s.promos.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return promos, nil
}
