package dao

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserEmailExists    = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInsufficientPoints = errors.New("insufficient points")
)

type User struct {
	ID uint `gorm:"primaryKey"`

	Email    string `gorm:"unique;not null"`
	Password string `gorm:"not null"`

	Role string `gorm:"not null"` // "customer" or "organizer"
	Name string `gorm:"not null"`

	Points       int    `gorm:"not null;default:0"`
	ReferralCode string `gorm:"unique;not null"`
	ReferredBy   *uint

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type UserDAO struct {
	db *gorm.DB
}

func NewUserDAO(db *gorm.DB) *UserDAO {
	return &UserDAO{
		db: db,
	}
}

func (d *UserDAO) Insert(ctx context.Context, user User) (User, error) {
	result := d.db.WithContext(ctx).Create(&user)
	if result.Error != nil {
		var err *pgconn.PgError
		if errors.As(result.Error, &err) &&
			err.Code == pgerrcode.UniqueViolation &&
			strings.Contains(err.Message, `unique constraint "uni_users_email"`) {
			return User{}, ErrUserEmailExists
		}

		return User{}, result.Error
	}

	return user, nil
}

func (d *UserDAO) FindByID(ctx context.Context, id uint) (User, error) {
	var user User
	err := d.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		return User{}, err
	}

	return user, nil
}

func (d *UserDAO) FindByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		return User{}, err
	}

	return user, nil
}

func (d *UserDAO) FindByReferralCode(ctx context.Context, code string) (User, error) {
	var user User
	err := d.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		return User{}, err
	}

	return user, nil
}

// debitPoints is the single atomic primitive for spending points. The balance
// check and the decrement happen in one guarded statement.
func debitPoints(tx *gorm.DB, userID uint, amount int) error {
	result := tx.Model(&User{}).
		Where("id = ? AND points >= ?", userID, amount).
		UpdateColumn("points", gorm.Expr("points - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientPoints
	}

	return nil
}

// creditPoints is the single atomic primitive for restoring or granting
// points.
func creditPoints(tx *gorm.DB, userID uint, amount int) error {
	result := tx.Model(&User{}).
		Where("id = ?", userID).
		UpdateColumn("points", gorm.Expr("points + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}
