package domain

import "time"

const (
	RoleCustomer  = "customer"
	RoleOrganizer = "organizer"
)

type User struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Points       int       `json:"points"`
	ReferralCode string    `json:"referral_code"`
	ReferredBy   *uint     `json:"referred_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsOrganizer() bool {
	return u.Role == RoleOrganizer
}
