package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository"
)

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (domain.User, error)
}

type UserPointRepository interface {
	GetByUser(ctx context.Context, userID uint) ([]domain.PointTransaction, error)
}

type UserService struct {
	repo      UserRepository
	pointRepo UserPointRepository
}

func NewUserService(repo UserRepository, pointRepo UserPointRepository) *UserService {
	return &UserService{
		repo:      repo,
		pointRepo: pointRepo,
	}
}

func (s *UserService) GetUser(ctx context.Context, id uint) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.User{}, ErrUserNotFound
		}

		return domain.User{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return user, nil
}

// GetPointHistory returns the user's point log, newest first.
func (s *UserService) GetPointHistory(ctx context.Context, userID uint) ([]domain.PointTransaction, error) {
	entries, err := s.pointRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("s.pointRepo.GetByUser -> %w", err)
	}

	return entries, nil
}
