package repository

import (
	"context"
	"fmt"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository/dao"
)

var (
	ErrUserEmailExists    = dao.ErrUserEmailExists
	ErrUserNotFound       = dao.ErrUserNotFound
	ErrInsufficientPoints = dao.ErrInsufficientPoints
)

type UserDAO interface {
	Insert(ctx context.Context, user dao.User) (dao.User, error)
	FindByID(ctx context.Context, id uint) (dao.User, error)
	FindByEmail(ctx context.Context, email string) (dao.User, error)
	FindByReferralCode(ctx context.Context, code string) (dao.User, error)
}

type UserRepository struct {
	dao UserDAO
}

func NewUserRepository(dao UserDAO) *UserRepository {
	return &UserRepository{
		dao: dao,
	}
}

func (r *UserRepository) domainToDao(u domain.User) dao.User {
	return dao.User{
		ID:           u.ID,
		Email:        u.Email,
		Password:     u.Password,
		Role:         u.Role,
		Name:         u.Name,
		Points:       u.Points,
		ReferralCode: u.ReferralCode,
		ReferredBy:   u.ReferredBy,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r *UserRepository) daoToDomain(u dao.User) domain.User {
	return domain.User{
		ID:           u.ID,
		Email:        u.Email,
		Password:     u.Password,
		Role:         u.Role,
		Name:         u.Name,
		Points:       u.Points,
		ReferralCode: u.ReferralCode,
		ReferredBy:   u.ReferredBy,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	created, err := r.dao.Insert(ctx, r.domainToDao(user))
	if err != nil {
		return domain.User{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (domain.User, error) {
	user, err := r.dao.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(user), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := r.dao.FindByEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("r.dao.FindByEmail -> %w", err)
	}

	return r.daoToDomain(user), nil
}

func (r *UserRepository) FindByReferralCode(ctx context.Context, code string) (domain.User, error) {
	user, err := r.dao.FindByReferralCode(ctx, code)
	if err != nil {
		return domain.User{}, fmt.Errorf("r.dao.FindByReferralCode -> %w", err)
	}

	return r.daoToDomain(user), nil
}
