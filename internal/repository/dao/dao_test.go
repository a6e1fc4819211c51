package dao

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("dockertest.NewPool -> %v", err)
	}

	resource, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_USER=test",
		"POSTGRES_PASSWORD=test",
		"POSTGRES_DB=test",
	})
	if err != nil {
		log.Fatalf("pool.Run -> %v", err)
	}

	dsn := fmt.Sprintf(
		"host=localhost port=%s user=test password=test dbname=test sslmode=disable",
		resource.GetPort("5432/tcp"),
	)
	if err := pool.Retry(func() error {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}

		testDB = db

		return nil
	}); err != nil {
		log.Fatalf("could not connect to postgres: %v", err)
	}

	if err := InitTables(testDB); err != nil {
		log.Fatalf("dao.InitTables -> %v", err)
	}

	code := m.Run()

	if err := pool.Purge(resource); err != nil {
		log.Printf("pool.Purge -> %v", err)
	}

	os.Exit(code)
}

func createTestEvent(t *testing.T, capacity, seatsAvailable int) Event {
	t.Helper()

	event := Event{
		OrganizerID:    1,
		Title:          "Launch Night",
		Location:       "Main Hall",
		StartsAt:       time.Now().Add(24 * time.Hour),
		EndsAt:         time.Now().Add(27 * time.Hour),
		Capacity:       capacity,
		SeatsAvailable: seatsAvailable,
	}
	require.NoError(t, testDB.Create(&event).Error)

	return event
}

func createTestUser(t *testing.T, points int) User {
	t.Helper()

	user := User{
		Email:        uuid.NewString() + "@example.com",
		Password:     "hashed",
		Role:         "customer",
		Name:         "Test User",
		Points:       points,
		ReferralCode: uuid.NewString()[:8],
	}
	require.NoError(t, testDB.Create(&user).Error)

	return user
}

func createTestPromo(t *testing.T, eventID uint, maxUses *int) Promotion {
	t.Helper()

	promo := Promotion{
		EventID:  eventID,
		Code:     "CODE-" + uuid.NewString()[:8],
		Kind:     "FLAT",
		Value:    1000,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
		MaxUses:  maxUses,
	}
	require.NoError(t, testDB.Create(&promo).Error)

	return promo
}

func TestReserveSeats_ConcurrentLastSeat(t *testing.T) {
	event := createTestEvent(t, 10, 1)

	const contenders = 8
	errs := make(chan error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- reserveSeats(testDB, event.ID, 1)
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrInsufficientSeats)
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, contenders-1, lost)

	var got Event
	require.NoError(t, testDB.First(&got, event.ID).Error)
	assert.Equal(t, 0, got.SeatsAvailable)
}

func TestReserveSeats_TakesEveryLastSeat(t *testing.T) {
	event := createTestEvent(t, 5, 5)

	require.NoError(t, reserveSeats(testDB, event.ID, 5))

	var got Event
	require.NoError(t, testDB.First(&got, event.ID).Error)
	assert.Equal(t, 0, got.SeatsAvailable)

	assert.ErrorIs(t, reserveSeats(testDB, event.ID, 1), ErrInsufficientSeats)
}

func TestReleaseSeats_CappedByCapacity(t *testing.T) {
	event := createTestEvent(t, 10, 7)

	require.NoError(t, releaseSeats(testDB, event.ID, 3))
	assert.ErrorIs(t, releaseSeats(testDB, event.ID, 1), ErrCapacityExceeded)

	var got Event
	require.NoError(t, testDB.First(&got, event.ID).Error)
	assert.Equal(t, 10, got.SeatsAvailable)
}

func TestReservePromoUse_ConcurrentCap(t *testing.T) {
	event := createTestEvent(t, 10, 10)
	maxUses := 1
	promo := createTestPromo(t, event.ID, &maxUses)

	const contenders = 6
	errs := make(chan error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- reservePromoUse(testDB, promo.ID)
		}()
	}
	wg.Wait()
	close(errs)

	var won int
	for err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrPromoExhausted)
		}
	}
	assert.Equal(t, 1, won)

	var got Promotion
	require.NoError(t, testDB.First(&got, promo.ID).Error)
	assert.Equal(t, 1, got.UsedCount)
}

func TestDebitPoints_GuardedByBalance(t *testing.T) {
	user := createTestUser(t, 1000)

	assert.ErrorIs(t, debitPoints(testDB, user.ID, 2000), ErrInsufficientPoints)
	require.NoError(t, debitPoints(testDB, user.ID, 1000))
	assert.ErrorIs(t, debitPoints(testDB, user.ID, 1), ErrInsufficientPoints)

	var got User
	require.NoError(t, testDB.First(&got, user.ID).Error)
	assert.Equal(t, 0, got.Points)
}

func TestTransactionDAO_CreatePurchase_RollsBackOnExhaustedPromo(t *testing.T) {
	ctx := context.Background()
	event := createTestEvent(t, 10, 10)
	user := createTestUser(t, 0)
	maxUses := 0
	promo := createTestPromo(t, event.ID, &maxUses)
	d := NewTransactionDAO(testDB)

	_, err := d.CreatePurchase(ctx, Transaction{
		UserID:       user.ID,
		EventID:      event.ID,
		Status:       "WAITING_PAYMENT",
		TotalBefore:  100000,
		TotalPayable: 100000,
	}, []TransactionItem{
		{TicketTypeID: 1, Quantity: 1, UnitPrice: 100000, Subtotal: 100000},
	}, Reservation{
		EventID:  event.ID,
		Quantity: 1,
		UserID:   user.ID,
		PromoID:  &promo.ID,
	})
	assert.ErrorIs(t, err, ErrPromoExhausted)

	// The seat decrement that ran before the promo check was rolled back.
	var got Event
	require.NoError(t, testDB.First(&got, event.ID).Error)
	assert.Equal(t, 10, got.SeatsAvailable)
}

func TestTransactionDAO_Finalize_CompensatesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	event := createTestEvent(t, 20, 20)
	user := createTestUser(t, 5000)
	maxUses := 5
	promo := createTestPromo(t, event.ID, &maxUses)
	d := NewTransactionDAO(testDB)

	txn, err := d.CreatePurchase(ctx, Transaction{
		UserID:        user.ID,
		EventID:       event.ID,
		Status:        "WAITING_CONFIRMATION",
		TotalBefore:   200000,
		PointsUsed:    5000,
		PromoID:       &promo.ID,
		PromoCode:     promo.Code,
		PromoDiscount: 1000,
		TotalPayable:  194000,
	}, []TransactionItem{
		{TicketTypeID: 1, Quantity: 2, UnitPrice: 100000, Subtotal: 200000},
	}, Reservation{
		EventID:    event.ID,
		Quantity:   2,
		UserID:     user.ID,
		PointsUsed: 5000,
		PromoID:    &promo.ID,
	})
	require.NoError(t, err)

	var reserved Event
	require.NoError(t, testDB.First(&reserved, event.ID).Error)
	require.Equal(t, 18, reserved.SeatsAvailable)

	comp := &Reservation{
		EventID:    event.ID,
		Quantity:   2,
		UserID:     user.ID,
		PointsUsed: 5000,
		PromoID:    &promo.ID,
	}

	_, err = d.Finalize(ctx, txn.ID, "WAITING_CONFIRMATION", "REJECTED", comp)
	require.NoError(t, err)

	// A second finalize matches no row, so the compensation cannot run again.
	_, err = d.Finalize(ctx, txn.ID, "WAITING_CONFIRMATION", "REJECTED", comp)
	assert.ErrorIs(t, err, ErrTransactionFinalized)

	var gotEvent Event
	require.NoError(t, testDB.First(&gotEvent, event.ID).Error)
	assert.Equal(t, 20, gotEvent.SeatsAvailable)

	var gotUser User
	require.NoError(t, testDB.First(&gotUser, user.ID).Error)
	assert.Equal(t, 5000, gotUser.Points)

	var gotPromo Promotion
	require.NoError(t, testDB.First(&gotPromo, promo.ID).Error)
	assert.Equal(t, 0, gotPromo.UsedCount)
}

func TestPointDAO_ExpireGrant_RunTwiceDecrementsOnce(t *testing.T) {
	ctx := context.Background()
	user := createTestUser(t, 0)
	d := NewPointDAO(testDB)

	require.NoError(t, d.CreditEarned(ctx, user.ID, 8000, time.Now().Add(-time.Minute)))

	grants, err := d.FindStaleGrants(ctx, time.Now())
	require.NoError(t, err)

	var grant PointTransaction
	for _, g := range grants {
		if g.UserID == user.ID {
			grant = g
		}
	}
	require.NotZero(t, grant.ID)

	require.NoError(t, d.ExpireGrant(ctx, grant.ID))
	require.NoError(t, d.ExpireGrant(ctx, grant.ID))

	var got User
	require.NoError(t, testDB.First(&got, user.ID).Error)
	assert.Equal(t, 0, got.Points)

	// The flagged grant no longer matches the sweep scan.
	grants, err = d.FindStaleGrants(ctx, time.Now())
	require.NoError(t, err)
	for _, g := range grants {
		assert.NotEqual(t, grant.ID, g.ID)
	}
}

func TestPointDAO_ExpireGrant_ClampsSpentBalanceAtZero(t *testing.T) {
	ctx := context.Background()
	user := createTestUser(t, 0)
	d := NewPointDAO(testDB)

	require.NoError(t, d.CreditEarned(ctx, user.ID, 8000, time.Now().Add(-time.Minute)))
	require.NoError(t, debitPoints(testDB, user.ID, 6000))

	grants, err := d.FindStaleGrants(ctx, time.Now())
	require.NoError(t, err)
	var grant PointTransaction
	for _, g := range grants {
		if g.UserID == user.ID {
			grant = g
		}
	}
	require.NotZero(t, grant.ID)

	require.NoError(t, d.ExpireGrant(ctx, grant.ID))

	// 2000 remaining minus an 8000 grant clamps at zero, never negative.
	var got User
	require.NoError(t, testDB.First(&got, user.ID).Error)
	assert.Equal(t, 0, got.Points)
}
