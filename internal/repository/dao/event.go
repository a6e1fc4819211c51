package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrInsufficientSeats = errors.New("insufficient seats")
	// ErrCapacityExceeded means a seat release would push seats_available past
	// capacity. That is a data-integrity bug, not a user error.
	ErrCapacityExceeded = errors.New("seat release exceeds capacity")
)

type Event struct {
	ID          uint `gorm:"primaryKey"`
	OrganizerID uint `gorm:"not null;index"`

	Title       string `gorm:"not null"`
	Description string
	Location    string    `gorm:"not null"`
	StartsAt    time.Time `gorm:"not null"`
	EndsAt      time.Time `gorm:"not null"`

	Capacity       int `gorm:"not null"`
	SeatsAvailable int `gorm:"not null"`

	TicketTypes []TicketType `gorm:"foreignKey:EventID"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type TicketType struct {
	ID      uint   `gorm:"primaryKey"`
	EventID uint   `gorm:"not null;index"`
	Name    string `gorm:"not null"`
	Price   int    `gorm:"not null"`
	Quota   *int
}

type EventDAO struct {
	db *gorm.DB
}

func NewEventDAO(db *gorm.DB) *EventDAO {
	return &EventDAO{
		db: db,
	}
}

func (d *EventDAO) Insert(ctx context.Context, event Event) (Event, error) {
	err := d.db.WithContext(ctx).Create(&event).Error
	if err != nil {
		return Event{}, err
	}

	return event, nil
}

func (d *EventDAO) FindByID(ctx context.Context, id uint) (Event, error) {
	var event Event
	err := d.db.WithContext(ctx).Preload("TicketTypes").First(&event, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}

		return Event{}, err
	}

	return event, nil
}

func (d *EventDAO) FindAll(ctx context.Context) ([]Event, error) {
	var events []Event
	err := d.db.WithContext(ctx).Preload("TicketTypes").Order("starts_at").Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (d *EventDAO) FindByOrganizer(ctx context.Context, organizerID uint) ([]Event, error) {
	var events []Event
	err := d.db.WithContext(ctx).
		Preload("TicketTypes").
		Where("organizer_id = ?", organizerID).
		Order("starts_at").
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}

// reserveSeats decrements seats_available only when enough seats remain. The
// check and the decrement are one statement so two concurrent purchases can
// never both take the last seats.
func reserveSeats(tx *gorm.DB, eventID uint, qty int) error {
	result := tx.Model(&Event{}).
		Where("id = ? AND seats_available >= ?", eventID, qty).
		UpdateColumn("seats_available", gorm.Expr("seats_available - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientSeats
	}

	return nil
}

// releaseSeats restores seats on rejection, cancellation or expiry. It is
// guarded so a double release can never push seats_available past capacity.
func releaseSeats(tx *gorm.DB, eventID uint, qty int) error {
	result := tx.Model(&Event{}).
		Where("id = ? AND seats_available + ? <= capacity", eventID, qty).
		UpdateColumn("seats_available", gorm.Expr("seats_available + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCapacityExceeded
	}

	return nil
}
