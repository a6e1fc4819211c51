package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository"
)

var (
	ErrUserEmailExists = repository.ErrUserEmailExists
	ErrUserNotFound    = repository.ErrUserNotFound
	ErrWrongPassword   = errors.New("wrong password")
	ErrReferralInvalid = errors.New("referral code not found")
)

// Referral reward: the referrer earns points that expire after 90 days.
const (
	referralRewardPoints = 10000
	referralRewardTTL    = 90 * 24 * time.Hour
)

type AuthUserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByReferralCode(ctx context.Context, code string) (domain.User, error)
}

type AuthPointRepository interface {
	CreditEarned(ctx context.Context, userID uint, amount int, expiresAt time.Time) error
}

type AuthService struct {
	repo      AuthUserRepository
	pointRepo AuthPointRepository
}

func NewAuthService(repo AuthUserRepository, pointRepo AuthPointRepository) *AuthService {
	return &AuthService{
		repo:      repo,
		pointRepo: pointRepo,
	}
}

// Signup registers a user. When a referral code is given, the referrer is
// credited reward points after the new account exists; a failed credit is
// logged but does not undo the signup.
func (s *AuthService) Signup(ctx context.Context, user domain.User, referralCode string) (domain.User, error) {
	var referrer domain.User
	if referralCode != "" {
		var err error
		referrer, err = s.repo.FindByReferralCode(ctx, referralCode)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domain.User{}, ErrReferralInvalid
			}
			return domain.User{}, fmt.Errorf("s.repo.FindByReferralCode -> %w", err)
		}
		user.ReferredBy = &referrer.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	user.Password = string(hash)
	user.ReferralCode = newReferralCode()

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	if referralCode != "" {
		expiresAt := time.Now().Add(referralRewardTTL)
		if err := s.pointRepo.CreditEarned(ctx, referrer.ID, referralRewardPoints, expiresAt); err != nil {
			zap.L().Error("failed to credit referral reward",
				zap.Uint("referrer_id", referrer.ID),
				zap.Uint("user_id", created.ID),
				zap.Error(err))
		}
	}

	return created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.User{}, ErrUserNotFound
		}

		return domain.User{}, fmt.Errorf("s.repo.FindByEmail -> %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return domain.User{}, ErrWrongPassword
	}

	return user, nil
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
