package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/monitoring"
	"github.com/tixera/tixera-api/internal/repository"
)

var (
	ErrEventNotFound        = repository.ErrEventNotFound
	ErrInsufficientSeats    = repository.ErrInsufficientSeats
	ErrInsufficientPoints   = repository.ErrInsufficientPoints
	ErrPromoExhausted       = repository.ErrPromoExhausted
	ErrTransactionNotFound  = repository.ErrTransactionNotFound
	ErrAlreadyFinalized     = repository.ErrTransactionFinalized
	ErrTicketTypeInvalid    = errors.New("ticket type does not belong to event")
	ErrTicketQuotaExceeded  = errors.New("quantity exceeds ticket type quota")
	ErrNotOwner             = errors.New("caller does not own this transaction")
	ErrNotEventOrganizer    = errors.New("caller does not organize this event")
	ErrWrongState           = errors.New("transaction is not in the required status")
	ErrInvalidTargetStatus  = errors.New("invalid target status")
	ErrStorageUnavailable   = errors.New("proof storage unavailable")
)

// Payment must arrive within two hours of creation; organizers get three days
// to decide once payment proof is in.
const (
	paymentWindow  = 2 * time.Hour
	decisionWindow = 72 * time.Hour
)

type TransactionRepository interface {
	CreatePurchase(ctx context.Context, txn domain.Transaction) (domain.Transaction, error)
	GetByID(ctx context.Context, id uint) (domain.Transaction, error)
	GetByUser(ctx context.Context, userID uint) ([]domain.Transaction, error)
	GetByOrganizer(ctx context.Context, organizerID uint, status domain.TransactionStatus) ([]domain.Transaction, error)
	MarkProofUploaded(ctx context.Context, id uint, proofURL string, proofAt, decisionDueAt time.Time) (domain.Transaction, error)
	Finalize(ctx context.Context, id uint, from, to domain.TransactionStatus, comp *domain.Compensation) (domain.Transaction, error)
	GetPaymentOverdue(ctx context.Context, now time.Time) ([]domain.Transaction, error)
	GetDecisionOverdue(ctx context.Context, now time.Time) ([]domain.Transaction, error)
	SummarizeByEvent(ctx context.Context, eventID uint) ([]repository.EventSummary, error)
}

type TransactionEventRepository interface {
	GetByID(ctx context.Context, id uint) (domain.Event, error)
}

type TransactionUserRepository interface {
	FindByID(ctx context.Context, id uint) (domain.User, error)
}

// ProofStorage persists an uploaded payment proof and returns a reference
// URL. Remove takes that URL back when the proof turns out to be unusable.
type ProofStorage interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, url string) error
}

// Notifier delivers user-facing notifications. Calls are best-effort: they
// run after the state change has committed and failures are only logged.
type Notifier interface {
	TransactionApproved(user domain.User, txn domain.Transaction) error
	TransactionRejected(user domain.User, txn domain.Transaction) error
}

type TransactionService struct {
	repo      TransactionRepository
	eventRepo TransactionEventRepository
	userRepo  TransactionUserRepository
	promos    *PromotionService
	storage   ProofStorage
	notifier  Notifier
}

func NewTransactionService(
	repo TransactionRepository,
	eventRepo TransactionEventRepository,
	userRepo TransactionUserRepository,
	promos *PromotionService,
	storage ProofStorage,
	notifier Notifier,
) *TransactionService {
	return &TransactionService{
		repo:      repo,
		eventRepo: eventRepo,
		userRepo:  userRepo,
		promos:    promos,
		storage:   storage,
		notifier:  notifier,
	}
}

// PurchaseInput is a validated purchase request.
type PurchaseInput struct {
	EventID      uint
	TicketTypeID uint
	Quantity     int
	PromoCode    string
	UsePoints    bool
}

// CreatePurchase prices the request and persists the transaction together
// with its seat, promo and point reservations in one atomic unit of work.
// A failure at any step leaves nothing behind.
func (s *TransactionService) CreatePurchase(ctx context.Context, userID uint, input PurchaseInput) (domain.Transaction, error) {
	event, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return domain.Transaction{}, ErrEventNotFound
		}
		return domain.Transaction{}, fmt.Errorf("s.eventRepo.GetByID -> %w", err)
	}

	ticketType, ok := event.TicketTypeByID(input.TicketTypeID)
	if !ok {
		return domain.Transaction{}, ErrTicketTypeInvalid
	}
	if ticketType.Quota != nil && input.Quantity > *ticketType.Quota {
		return domain.Transaction{}, ErrTicketQuotaExceeded
	}

	now := time.Now()
	subtotal := ticketType.Price * input.Quantity

	var promoTerms *domain.PromoTerms
	var promoID *uint
	promoCode := ""
	if input.PromoCode != "" {
		promo, err := s.promos.Validate(ctx, input.EventID, input.PromoCode, now, subtotal)
		if err != nil {
			return domain.Transaction{}, err
		}
		terms := promo.Terms()
		promoTerms = &terms
		promoID = &promo.ID
		promoCode = promo.Code
	}

	pointBalance := 0
	if input.UsePoints {
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("s.userRepo.FindByID -> %w", err)
		}
		pointBalance = user.Points
	}

	quote := domain.CalculateQuote(ticketType.Price, input.Quantity, promoTerms, pointBalance, input.UsePoints)

	txn := domain.Transaction{
		UserID:        userID,
		EventID:       input.EventID,
		TotalBefore:   quote.Subtotal,
		PointsUsed:    quote.PointsUsed,
		PromoID:       promoID,
		PromoCode:     promoCode,
		PromoDiscount: quote.PromoDiscount,
		TotalPayable:  quote.TotalPayable,
		Items: []domain.TransactionItem{
			{
				TicketTypeID: ticketType.ID,
				Quantity:     input.Quantity,
				UnitPrice:    ticketType.Price,
				Subtotal:     quote.Subtotal,
			},
		},
	}

	// A fully covered purchase needs no payment and goes straight to the
	// organizer's queue.
	if quote.TotalPayable <= 0 {
		txn.Status = domain.StatusWaitingConfirmation
		decisionDueAt := now.Add(decisionWindow)
		txn.DecisionDueAt = &decisionDueAt
	} else {
		txn.Status = domain.StatusWaitingPayment
		expiresAt := now.Add(paymentWindow)
		txn.ExpiresAt = &expiresAt
	}

	created, err := s.repo.CreatePurchase(ctx, txn)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientSeats):
			return domain.Transaction{}, ErrInsufficientSeats
		case errors.Is(err, repository.ErrPromoExhausted):
			return domain.Transaction{}, ErrPromoExhausted
		case errors.Is(err, repository.ErrInsufficientPoints):
			return domain.Transaction{}, ErrInsufficientPoints
		}
		return domain.Transaction{}, fmt.Errorf("s.repo.CreatePurchase -> %w", err)
	}

	monitoring.PurchaseCreated(string(created.Status))

	return created, nil
}

// SubmitPaymentProof stores the uploaded proof and moves the transaction to
// WAITING_CONFIRMATION. Storage failure aborts before any state change.
func (s *TransactionService) SubmitPaymentProof(ctx context.Context, id, callerID uint, data []byte, contentType string) (domain.Transaction, error) {
	txn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return domain.Transaction{}, ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("s.repo.GetByID -> %w", err)
	}

	if txn.UserID != callerID {
		return domain.Transaction{}, ErrNotOwner
	}
	if txn.Status != domain.StatusWaitingPayment {
		return domain.Transaction{}, ErrWrongState
	}

	proofURL, err := s.storage.Store(ctx, data, contentType)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	now := time.Now()
	updated, err := s.repo.MarkProofUploaded(ctx, id, proofURL, now, now.Add(decisionWindow))
	if err != nil {
		// The guarded update lost a race with the sweeper. The proof was
		// already written, so take it back out of storage.
		if errors.Is(err, repository.ErrTransactionFinalized) {
			if rmErr := s.storage.Remove(ctx, proofURL); rmErr != nil {
				zap.L().Warn("failed to remove orphaned payment proof",
					zap.Uint("transaction_id", id),
					zap.String("proof_url", proofURL),
					zap.Error(rmErr))
			}
			return domain.Transaction{}, ErrWrongState
		}
		return domain.Transaction{}, fmt.Errorf("s.repo.MarkProofUploaded -> %w", err)
	}

	return updated, nil
}

// Decide applies an organizer's approval or rejection. Compensation on
// rejection or cancellation is atomic with the status flip and therefore runs
// exactly once.
func (s *TransactionService) Decide(ctx context.Context, id, organizerID uint, target domain.TransactionStatus) (domain.Transaction, error) {
	switch target {
	case domain.StatusDone, domain.StatusRejected, domain.StatusCanceled:
	default:
		return domain.Transaction{}, ErrInvalidTargetStatus
	}

	txn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return domain.Transaction{}, ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("s.repo.GetByID -> %w", err)
	}

	event, err := s.eventRepo.GetByID(ctx, txn.EventID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("s.eventRepo.GetByID -> %w", err)
	}
	if event.OrganizerID != organizerID {
		return domain.Transaction{}, ErrNotEventOrganizer
	}

	if txn.Status.IsFinal() {
		return domain.Transaction{}, ErrAlreadyFinalized
	}
	if txn.Status != domain.StatusWaitingConfirmation {
		return domain.Transaction{}, ErrWrongState
	}

	var comp *domain.Compensation
	if target.NeedsCompensation() {
		c := txn.CompensationFor()
		comp = &c
	}

	updated, err := s.repo.Finalize(ctx, id, domain.StatusWaitingConfirmation, target, comp)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionFinalized) {
			return domain.Transaction{}, ErrAlreadyFinalized
		}
		return domain.Transaction{}, fmt.Errorf("s.repo.Finalize -> %w", err)
	}

	monitoring.TransactionFinalized(string(target))
	s.notifyDecision(ctx, updated)

	return updated, nil
}

// notifyDecision runs strictly after the commit; failures never surface.
func (s *TransactionService) notifyDecision(ctx context.Context, txn domain.Transaction) {
	user, err := s.userRepo.FindByID(ctx, txn.UserID)
	if err != nil {
		zap.L().Error("failed to load user for notification",
			zap.Uint("transaction_id", txn.ID),
			zap.Uint("user_id", txn.UserID),
			zap.Error(err))
		return
	}

	switch txn.Status {
	case domain.StatusDone:
		err = s.notifier.TransactionApproved(user, txn)
	case domain.StatusRejected:
		err = s.notifier.TransactionRejected(user, txn)
	default:
		return
	}
	if err != nil {
		zap.L().Error("failed to send transaction notification",
			zap.Uint("transaction_id", txn.ID),
			zap.String("status", string(txn.Status)),
			zap.Error(err))
	}
}

// ExpireOverduePayments drives the EXPIRED transition for every
// WAITING_PAYMENT transaction past its payment deadline. Each row is its own
// unit of work; one failure does not stop the rest.
func (s *TransactionService) ExpireOverduePayments(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.repo.GetPaymentOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("s.repo.GetPaymentOverdue -> %w", err)
	}

	expired := 0
	for _, txn := range overdue {
		comp := txn.CompensationFor()
		if _, err := s.repo.Finalize(ctx, txn.ID, domain.StatusWaitingPayment, domain.StatusExpired, &comp); err != nil {
			if errors.Is(err, repository.ErrTransactionFinalized) {
				// Raced a proof upload or an earlier sweep; nothing to do.
				continue
			}
			zap.L().Error("failed to expire transaction",
				zap.Uint("transaction_id", txn.ID),
				zap.Error(err))
			continue
		}
		expired++
		monitoring.TransactionFinalized(string(domain.StatusExpired))
	}

	return expired, nil
}

// CancelOverdueDecisions drives the CANCELED transition for every
// WAITING_CONFIRMATION transaction whose decision deadline has passed, with
// the same compensation a manual rejection applies.
func (s *TransactionService) CancelOverdueDecisions(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.repo.GetDecisionOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("s.repo.GetDecisionOverdue -> %w", err)
	}

	canceled := 0
	for _, txn := range overdue {
		comp := txn.CompensationFor()
		if _, err := s.repo.Finalize(ctx, txn.ID, domain.StatusWaitingConfirmation, domain.StatusCanceled, &comp); err != nil {
			if errors.Is(err, repository.ErrTransactionFinalized) {
				continue
			}
			zap.L().Error("failed to cancel transaction",
				zap.Uint("transaction_id", txn.ID),
				zap.Error(err))
			continue
		}
		canceled++
		monitoring.TransactionFinalized(string(domain.StatusCanceled))
	}

	return canceled, nil
}

func (s *TransactionService) GetForUser(ctx context.Context, id, callerID uint) (domain.Transaction, error) {
	txn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return domain.Transaction{}, ErrTransactionNotFound
		}
		return domain.Transaction{}, fmt.Errorf("s.repo.GetByID -> %w", err)
	}
	if txn.UserID != callerID {
		return domain.Transaction{}, ErrNotOwner
	}

	return txn, nil
}

func (s *TransactionService) ListForUser(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	txns, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.GetByUser -> %w", err)
	}

	return txns, nil
}

func (s *TransactionService) ListForOrganizer(ctx context.Context, organizerID uint, status domain.TransactionStatus) ([]domain.Transaction, error) {
	txns, err := s.repo.GetByOrganizer(ctx, organizerID, status)
	if err != nil {
		return nil, fmt.Errorf("s.repo.GetByOrganizer -> %w", err)
	}

	return txns, nil
}

// SummarizeEvent returns per-status counts and revenue for one of the
// organizer's events.
func (s *TransactionService) SummarizeEvent(ctx context.Context, eventID, organizerID uint) ([]repository.EventSummary, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("s.eventRepo.GetByID -> %w", err)
	}
	if event.OrganizerID != organizerID {
		return nil, ErrNotEventOrganizer
	}

	summary, err := s.repo.SummarizeByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.SummarizeByEvent -> %w", err)
	}

	return summary, nil
}
