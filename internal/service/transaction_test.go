package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository"
)

type fakeTransactionRepo struct {
	txns      map[uint]*domain.Transaction
	nextID    uint
	createErr error

	// beforeMarkProof runs at the top of MarkProofUploaded, standing in for
	// a sweeper that finalizes the row between the read and the update.
	beforeMarkProof func()

	finalizeComps []domain.Compensation
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{
		txns:   make(map[uint]*domain.Transaction),
		nextID: 1,
	}
}

func (f *fakeTransactionRepo) CreatePurchase(_ context.Context, txn domain.Transaction) (domain.Transaction, error) {
	if f.createErr != nil {
		return domain.Transaction{}, f.createErr
	}

	txn.ID = f.nextID
	f.nextID++
	stored := txn
	f.txns[txn.ID] = &stored

	return txn, nil
}

func (f *fakeTransactionRepo) GetByID(_ context.Context, id uint) (domain.Transaction, error) {
	txn, ok := f.txns[id]
	if !ok {
		return domain.Transaction{}, repository.ErrTransactionNotFound
	}

	return *txn, nil
}

func (f *fakeTransactionRepo) GetByUser(_ context.Context, userID uint) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, txn := range f.txns {
		if txn.UserID == userID {
			out = append(out, *txn)
		}
	}

	return out, nil
}

func (f *fakeTransactionRepo) GetByOrganizer(_ context.Context, _ uint, status domain.TransactionStatus) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, txn := range f.txns {
		if status == "" || txn.Status == status {
			out = append(out, *txn)
		}
	}

	return out, nil
}

func (f *fakeTransactionRepo) MarkProofUploaded(_ context.Context, id uint, proofURL string, proofAt, decisionDueAt time.Time) (domain.Transaction, error) {
	if f.beforeMarkProof != nil {
		f.beforeMarkProof()
	}

	txn, ok := f.txns[id]
	if !ok {
		return domain.Transaction{}, repository.ErrTransactionNotFound
	}
	if txn.Status != domain.StatusWaitingPayment {
		return domain.Transaction{}, repository.ErrTransactionFinalized
	}

	txn.Status = domain.StatusWaitingConfirmation
	txn.PaymentProofURL = proofURL
	txn.PaymentProofAt = &proofAt
	txn.DecisionDueAt = &decisionDueAt

	return *txn, nil
}

func (f *fakeTransactionRepo) Finalize(_ context.Context, id uint, from, to domain.TransactionStatus, comp *domain.Compensation) (domain.Transaction, error) {
	txn, ok := f.txns[id]
	if !ok {
		return domain.Transaction{}, repository.ErrTransactionNotFound
	}
	if txn.Status != from {
		return domain.Transaction{}, repository.ErrTransactionFinalized
	}

	txn.Status = to
	if comp != nil {
		f.finalizeComps = append(f.finalizeComps, *comp)
	}

	return *txn, nil
}

func (f *fakeTransactionRepo) GetPaymentOverdue(_ context.Context, now time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, txn := range f.txns {
		if txn.Status == domain.StatusWaitingPayment && txn.ExpiresAt != nil && !txn.ExpiresAt.After(now) {
			out = append(out, *txn)
		}
	}

	return out, nil
}

func (f *fakeTransactionRepo) GetDecisionOverdue(_ context.Context, now time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, txn := range f.txns {
		if txn.Status == domain.StatusWaitingConfirmation && txn.DecisionDueAt != nil && !txn.DecisionDueAt.After(now) {
			out = append(out, *txn)
		}
	}

	return out, nil
}

func (f *fakeTransactionRepo) SummarizeByEvent(_ context.Context, eventID uint) ([]repository.EventSummary, error) {
	byStatus := make(map[domain.TransactionStatus]*repository.EventSummary)
	for _, txn := range f.txns {
		if txn.EventID != eventID {
			continue
		}
		row, ok := byStatus[txn.Status]
		if !ok {
			row = &repository.EventSummary{Status: txn.Status}
			byStatus[txn.Status] = row
		}
		row.Count++
		row.Revenue += int64(txn.TotalPayable)
	}

	var out []repository.EventSummary
	for _, row := range byStatus {
		out = append(out, *row)
	}

	return out, nil
}

type fakeEventRepo struct {
	events map[uint]domain.Event
}

func (f *fakeEventRepo) GetByID(_ context.Context, id uint) (domain.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return domain.Event{}, repository.ErrEventNotFound
	}

	return event, nil
}

func (f *fakeEventRepo) Create(_ context.Context, event domain.Event) (domain.Event, error) {
	event.ID = uint(len(f.events) + 1)
	f.events[event.ID] = event

	return event, nil
}

func (f *fakeEventRepo) GetAll(_ context.Context) ([]domain.Event, error) {
	var out []domain.Event
	for _, event := range f.events {
		out = append(out, event)
	}

	return out, nil
}

func (f *fakeEventRepo) GetByOrganizer(_ context.Context, organizerID uint) ([]domain.Event, error) {
	var out []domain.Event
	for _, event := range f.events {
		if event.OrganizerID == organizerID {
			out = append(out, event)
		}
	}

	return out, nil
}

type fakeUserRepo struct {
	users map[uint]domain.User
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uint) (domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}

	return user, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	user.ID = uint(len(f.users) + 1)
	f.users[user.ID] = user

	return user, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}

	return domain.User{}, repository.ErrUserNotFound
}

func (f *fakeUserRepo) FindByReferralCode(_ context.Context, code string) (domain.User, error) {
	for _, user := range f.users {
		if user.ReferralCode == code {
			return user, nil
		}
	}

	return domain.User{}, repository.ErrUserNotFound
}

type fakePromotionRepo struct {
	promos map[string]domain.Promotion // keyed by code
}

func (f *fakePromotionRepo) Create(_ context.Context, promo domain.Promotion) (domain.Promotion, error) {
	if _, ok := f.promos[promo.Code]; ok {
		return domain.Promotion{}, repository.ErrPromoCodeExists
	}

	promo.ID = uint(len(f.promos) + 1)
	f.promos[promo.Code] = promo

	return promo, nil
}

func (f *fakePromotionRepo) GetByEventAndCode(_ context.Context, eventID uint, code string) (domain.Promotion, error) {
	promo, ok := f.promos[code]
	if !ok || promo.EventID != eventID {
		return domain.Promotion{}, repository.ErrPromoNotFound
	}

	return promo, nil
}

func (f *fakePromotionRepo) GetByEvent(_ context.Context, eventID uint) ([]domain.Promotion, error) {
	var out []domain.Promotion
	for _, promo := range f.promos {
		if promo.EventID == eventID {
			out = append(out, promo)
		}
	}

	return out, nil
}

type fakeStorage struct {
	url string
	err error

	stored  int
	removed []string
}

func (f *fakeStorage) Store(_ context.Context, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	f.stored++

	return f.url, nil
}

func (f *fakeStorage) Remove(_ context.Context, url string) error {
	f.removed = append(f.removed, url)
	return nil
}

type fakeNotifier struct {
	approved []uint
	rejected []uint
}

func (f *fakeNotifier) TransactionApproved(_ domain.User, txn domain.Transaction) error {
	f.approved = append(f.approved, txn.ID)
	return nil
}

func (f *fakeNotifier) TransactionRejected(_ domain.User, txn domain.Transaction) error {
	f.rejected = append(f.rejected, txn.ID)
	return nil
}

type txnFixture struct {
	svc      *TransactionService
	repo     *fakeTransactionRepo
	events   *fakeEventRepo
	users    *fakeUserRepo
	promos   *fakePromotionRepo
	storage  *fakeStorage
	notifier *fakeNotifier
}

func newTxnFixture() *txnFixture {
	quota := 5
	events := &fakeEventRepo{
		events: map[uint]domain.Event{
			1: {
				ID:             1,
				OrganizerID:    100,
				Capacity:       50,
				SeatsAvailable: 50,
				TicketTypes: []domain.TicketType{
					{ID: 10, EventID: 1, Name: "Standard", Price: 100000},
					{ID: 11, EventID: 1, Name: "VIP", Price: 250000, Quota: &quota},
					{ID: 12, EventID: 1, Name: "Free", Price: 0},
				},
			},
		},
	}
	users := &fakeUserRepo{
		users: map[uint]domain.User{
			42:  {ID: 42, Email: "buyer@example.com", Points: 30000},
			100: {ID: 100, Email: "organizer@example.com", Role: domain.RoleOrganizer},
		},
	}
	promos := &fakePromotionRepo{
		promos: map[string]domain.Promotion{
			"LAUNCH": {
				ID:       7,
				EventID:  1,
				Code:     "LAUNCH",
				Kind:     domain.PromoFlat,
				Value:    20000,
				MinSpend: 50000,
				StartsAt: time.Now().Add(-time.Hour),
				EndsAt:   time.Now().Add(time.Hour),
			},
		},
	}
	repo := newFakeTransactionRepo()
	storage := &fakeStorage{url: "http://localhost/uploads/proof.jpg"}
	notifier := &fakeNotifier{}

	svc := NewTransactionService(repo, events, users, NewPromotionService(promos), storage, notifier)

	return &txnFixture{
		svc:      svc,
		repo:     repo,
		events:   events,
		users:    users,
		promos:   promos,
		storage:  storage,
		notifier: notifier,
	}
}

func TestTransactionService_CreatePurchase(t *testing.T) {
	t.Run("happy path with promo", func(t *testing.T) {
		f := newTxnFixture()

		txn, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 10,
			Quantity:     1,
			PromoCode:    "LAUNCH",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingPayment, txn.Status)
		assert.Equal(t, 100000, txn.TotalBefore)
		assert.Equal(t, 20000, txn.PromoDiscount)
		assert.Equal(t, 80000, txn.TotalPayable)
		assert.Equal(t, "LAUNCH", txn.PromoCode)
		require.NotNil(t, txn.ExpiresAt)
		assert.WithinDuration(t, time.Now().Add(paymentWindow), *txn.ExpiresAt, time.Minute)
		assert.Nil(t, txn.DecisionDueAt)
		require.Len(t, txn.Items, 1)
		assert.Equal(t, 100000, txn.Items[0].UnitPrice)
	})

	t.Run("points on top of promo can zero out the payable", func(t *testing.T) {
		f := newTxnFixture()
		f.users.users[42] = domain.User{ID: 42, Points: 999999}

		txn, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 10,
			Quantity:     1,
			PromoCode:    "LAUNCH",
			UsePoints:    true,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingConfirmation, txn.Status)
		assert.Equal(t, 80000, txn.PointsUsed)
		assert.Equal(t, 0, txn.TotalPayable)
		assert.Nil(t, txn.ExpiresAt)
		require.NotNil(t, txn.DecisionDueAt)
		assert.WithinDuration(t, time.Now().Add(decisionWindow), *txn.DecisionDueAt, time.Minute)
	})

	t.Run("free ticket skips payment", func(t *testing.T) {
		f := newTxnFixture()

		txn, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 12,
			Quantity:     2,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingConfirmation, txn.Status)
		assert.Equal(t, 0, txn.TotalPayable)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newTxnFixture()

		_, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      99,
			TicketTypeID: 10,
			Quantity:     1,
		})

		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("ticket type from another event", func(t *testing.T) {
		f := newTxnFixture()

		_, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 999,
			Quantity:     1,
		})

		assert.ErrorIs(t, err, ErrTicketTypeInvalid)
	})

	t.Run("quota exceeded", func(t *testing.T) {
		f := newTxnFixture()

		_, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 11,
			Quantity:     6,
		})

		assert.ErrorIs(t, err, ErrTicketQuotaExceeded)
	})

	t.Run("insufficient seats leaves nothing behind", func(t *testing.T) {
		f := newTxnFixture()
		f.repo.createErr = repository.ErrInsufficientSeats

		_, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 10,
			Quantity:     1,
		})

		assert.ErrorIs(t, err, ErrInsufficientSeats)
		assert.Empty(t, f.repo.txns)
	})

	t.Run("expired promo", func(t *testing.T) {
		f := newTxnFixture()
		promo := f.promos.promos["LAUNCH"]
		promo.EndsAt = time.Now().Add(-time.Minute)
		f.promos.promos["LAUNCH"] = promo

		_, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 10,
			Quantity:     1,
			PromoCode:    "LAUNCH",
		})

		assert.ErrorIs(t, err, ErrPromoExpired)
		assert.Empty(t, f.repo.txns)
	})
}

func TestTransactionService_SubmitPaymentProof(t *testing.T) {
	newPendingTxn := func(f *txnFixture) domain.Transaction {
		txn, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 10,
			Quantity:     1,
		})
		require.NoError(t, err)
		require.Equal(t, domain.StatusWaitingPayment, txn.Status)

		return txn
	}

	t.Run("happy path", func(t *testing.T) {
		f := newTxnFixture()
		txn := newPendingTxn(f)

		updated, err := f.svc.SubmitPaymentProof(context.Background(), txn.ID, 42, []byte("proof"), "image/jpeg")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitingConfirmation, updated.Status)
		assert.Equal(t, "http://localhost/uploads/proof.jpg", updated.PaymentProofURL)
		require.NotNil(t, updated.DecisionDueAt)
		assert.WithinDuration(t, time.Now().Add(decisionWindow), *updated.DecisionDueAt, time.Minute)
	})

	t.Run("not the owner", func(t *testing.T) {
		f := newTxnFixture()
		txn := newPendingTxn(f)

		_, err := f.svc.SubmitPaymentProof(context.Background(), txn.ID, 43, []byte("proof"), "image/jpeg")

		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("wrong state", func(t *testing.T) {
		f := newTxnFixture()
		txn := newPendingTxn(f)
		f.repo.txns[txn.ID].Status = domain.StatusExpired

		_, err := f.svc.SubmitPaymentProof(context.Background(), txn.ID, 42, []byte("proof"), "image/jpeg")

		assert.ErrorIs(t, err, ErrWrongState)
	})

	t.Run("losing the sweeper race removes the stored proof", func(t *testing.T) {
		f := newTxnFixture()
		txn := newPendingTxn(f)
		f.repo.beforeMarkProof = func() {
			f.repo.txns[txn.ID].Status = domain.StatusExpired
		}

		_, err := f.svc.SubmitPaymentProof(context.Background(), txn.ID, 42, []byte("proof"), "image/jpeg")

		assert.ErrorIs(t, err, ErrWrongState)
		assert.Equal(t, 1, f.storage.stored)
		assert.Equal(t, []string{"http://localhost/uploads/proof.jpg"}, f.storage.removed)
	})

	t.Run("storage failure aborts before any state change", func(t *testing.T) {
		f := newTxnFixture()
		txn := newPendingTxn(f)
		f.storage.err = errors.New("disk full")

		_, err := f.svc.SubmitPaymentProof(context.Background(), txn.ID, 42, []byte("proof"), "image/jpeg")

		assert.ErrorIs(t, err, ErrStorageUnavailable)
		assert.Equal(t, domain.StatusWaitingPayment, f.repo.txns[txn.ID].Status)
	})
}

func TestTransactionService_Decide(t *testing.T) {
	newConfirmableTxn := func(f *txnFixture) domain.Transaction {
		txn, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 10,
			Quantity:     2,
		})
		require.NoError(t, err)
		f.repo.txns[txn.ID].Status = domain.StatusWaitingConfirmation

		return txn
	}

	t.Run("approval needs no compensation and notifies", func(t *testing.T) {
		f := newTxnFixture()
		txn := newConfirmableTxn(f)

		updated, err := f.svc.Decide(context.Background(), txn.ID, 100, domain.StatusDone)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, updated.Status)
		assert.Empty(t, f.repo.finalizeComps)
		assert.Equal(t, []uint{txn.ID}, f.notifier.approved)
	})

	t.Run("rejection compensates exactly once", func(t *testing.T) {
		f := newTxnFixture()
		txn := newConfirmableTxn(f)

		_, err := f.svc.Decide(context.Background(), txn.ID, 100, domain.StatusRejected)

		require.NoError(t, err)
		require.Len(t, f.repo.finalizeComps, 1)
		comp := f.repo.finalizeComps[0]
		assert.Equal(t, uint(1), comp.EventID)
		assert.Equal(t, 2, comp.Quantity)
		assert.Equal(t, uint(42), comp.UserID)
		assert.Equal(t, []uint{txn.ID}, f.notifier.rejected)

		// A second decision must fail without compensating again.
		_, err = f.svc.Decide(context.Background(), txn.ID, 100, domain.StatusRejected)
		assert.ErrorIs(t, err, ErrAlreadyFinalized)
		assert.Len(t, f.repo.finalizeComps, 1)
	})

	t.Run("invalid target status", func(t *testing.T) {
		f := newTxnFixture()
		txn := newConfirmableTxn(f)

		_, err := f.svc.Decide(context.Background(), txn.ID, 100, domain.StatusWaitingPayment)

		assert.ErrorIs(t, err, ErrInvalidTargetStatus)
	})

	t.Run("not the event organizer", func(t *testing.T) {
		f := newTxnFixture()
		txn := newConfirmableTxn(f)

		_, err := f.svc.Decide(context.Background(), txn.ID, 101, domain.StatusDone)

		assert.ErrorIs(t, err, ErrNotEventOrganizer)
	})

	t.Run("still waiting for payment", func(t *testing.T) {
		f := newTxnFixture()
		txn, err := f.svc.CreatePurchase(context.Background(), 42, PurchaseInput{
			EventID:      1,
			TicketTypeID: 10,
			Quantity:     1,
		})
		require.NoError(t, err)

		_, err = f.svc.Decide(context.Background(), txn.ID, 100, domain.StatusDone)

		assert.ErrorIs(t, err, ErrWrongState)
	})
}

func TestTransactionService_ExpireOverduePayments(t *testing.T) {
	f := newTxnFixture()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	f.repo.txns[1] = &domain.Transaction{ID: 1, UserID: 42, EventID: 1, Status: domain.StatusWaitingPayment, ExpiresAt: &past}
	f.repo.txns[2] = &domain.Transaction{ID: 2, UserID: 42, EventID: 1, Status: domain.StatusWaitingPayment, ExpiresAt: &future}

	expired, err := f.svc.ExpireOverduePayments(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, domain.StatusExpired, f.repo.txns[1].Status)
	assert.Equal(t, domain.StatusWaitingPayment, f.repo.txns[2].Status)
	assert.Len(t, f.repo.finalizeComps, 1)

	// A second sweep finds nothing left to do.
	expired, err = f.svc.ExpireOverduePayments(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
	assert.Len(t, f.repo.finalizeComps, 1)
}

func TestTransactionService_CancelOverdueDecisions(t *testing.T) {
	f := newTxnFixture()

	past := time.Now().Add(-time.Minute)
	f.repo.txns[1] = &domain.Transaction{ID: 1, UserID: 42, EventID: 1, Status: domain.StatusWaitingConfirmation, DecisionDueAt: &past, PointsUsed: 5000}

	canceled, err := f.svc.CancelOverdueDecisions(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 1, canceled)
	assert.Equal(t, domain.StatusCanceled, f.repo.txns[1].Status)
	require.Len(t, f.repo.finalizeComps, 1)
	assert.Equal(t, 5000, f.repo.finalizeComps[0].PointsUsed)
}

func TestTransactionService_SummarizeEvent(t *testing.T) {
	f := newTxnFixture()
	f.repo.txns[1] = &domain.Transaction{ID: 1, EventID: 1, Status: domain.StatusDone, TotalPayable: 80000}
	f.repo.txns[2] = &domain.Transaction{ID: 2, EventID: 1, Status: domain.StatusDone, TotalPayable: 100000}

	summary, err := f.svc.SummarizeEvent(context.Background(), 1, 100)

	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, domain.StatusDone, summary[0].Status)
	assert.Equal(t, int64(2), summary[0].Count)
	assert.Equal(t, int64(180000), summary[0].Revenue)

	_, err = f.svc.SummarizeEvent(context.Background(), 1, 999)
	assert.ErrorIs(t, err, ErrNotEventOrganizer)
}
