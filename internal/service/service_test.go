package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fuelsync/backend/internal/cache"
	"fuelsync/backend/internal/domain"
	"fuelsync/backend/internal/store"
	"fuelsync/backend/internal/store/memory"
)

const testTenant = "tenant-a"

type fixture struct {
	svc        *Service
	ctx        context.Context
	stationID  string
	pumpID     string
	nozzleID   string
	dieselID   string
	creditorID string
}

// newFixture builds a tenant with one station, one pump, a petrol and a
// diesel nozzle, a petrol price of 100.00 and a creditor with a 10000 limit.
// The diesel nozzle deliberately has no price.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	svc := New(memory.New(), cache.NoopPriceCache{}, 5*time.Second)
	ctx := WithActor(context.Background(), domain.Actor{
		UserID:   "user-owner",
		TenantID: testTenant,
		Username: "owner",
		Role:     domain.RoleOwner,
	})

	station, err := svc.CreateStation(ctx, testTenant, domain.StationCreateRequest{Name: "Main Station"})
	require.NoError(t, err)
	pump, err := svc.CreatePump(ctx, testTenant, domain.PumpCreateRequest{StationID: station.ID, Name: "Pump 1"})
	require.NoError(t, err)
	petrol, err := svc.CreateNozzle(ctx, testTenant, domain.NozzleCreateRequest{PumpID: pump.ID, NozzleNumber: 1, FuelType: "petrol"})
	require.NoError(t, err)
	diesel, err := svc.CreateNozzle(ctx, testTenant, domain.NozzleCreateRequest{PumpID: pump.ID, NozzleNumber: 2, FuelType: "diesel"})
	require.NoError(t, err)

	validFrom := time.Now().UTC().Add(-24 * time.Hour)
	_, err = svc.CreateFuelPrice(ctx, testTenant, domain.FuelPriceCreateRequest{
		StationID: station.ID,
		FuelType:  "petrol",
		Price:     100.00,
		ValidFrom: &validFrom,
	})
	require.NoError(t, err)

	creditor, err := svc.CreateCreditor(ctx, testTenant, domain.CreditorCreateRequest{
		PartyName:   "Roadways Ltd",
		CreditLimit: 10000,
	})
	require.NoError(t, err)

	return &fixture{
		svc:        svc,
		ctx:        ctx,
		stationID:  station.ID,
		pumpID:     pump.ID,
		nozzleID:   petrol.ID,
		dieselID:   diesel.ID,
		creditorID: creditor.ID,
	}
}

func (f *fixture) submit(t *testing.T, value float64, opts ...func(*domain.ReadingInput)) string {
	t.Helper()
	input := domain.ReadingInput{
		NozzleID:   f.nozzleID,
		Reading:    value,
		RecordedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&input)
	}
	id, err := f.svc.SubmitReading(f.ctx, testTenant, input, "user-owner")
	require.NoError(t, err)
	return id
}

func TestSubmitReadingComputesVolumeAndAmount(t *testing.T) {
	f := newFixture(t)

	f.submit(t, 100)
	f.submit(t, 150.50)

	sales, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{NozzleID: f.nozzleID})
	require.NoError(t, err)
	require.Len(t, sales, 2)

	// Newest first.
	require.InDelta(t, 50.50, sales[0].Volume, 1e-9)
	require.InDelta(t, 5050.00, sales[0].Amount, 1e-9)
	require.InDelta(t, 100.00, sales[0].FuelPrice, 1e-9)
	require.Equal(t, domain.PaymentMethodCash, sales[0].PaymentMethod)
	require.Equal(t, "user-owner", sales[0].CreatedBy)
}

func TestSubmitReadingFirstReadingUsesZeroBaseline(t *testing.T) {
	f := newFixture(t)

	f.submit(t, 100)

	sales, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{NozzleID: f.nozzleID})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.InDelta(t, 100.00, sales[0].Volume, 1e-9)
	require.InDelta(t, 10000.00, sales[0].Amount, 1e-9)
}

func TestSubmitReadingRejectsRegression(t *testing.T) {
	f := newFixture(t)

	f.submit(t, 100)

	_, err := f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   f.nozzleID,
		Reading:    99.99,
		RecordedAt: time.Now().UTC(),
	}, "user-owner")
	require.ErrorIs(t, err, ErrReadingOutOfOrder)

	readings, err := f.svc.ListReadings(f.ctx, testTenant, domain.ReadingFilter{NozzleID: f.nozzleID})
	require.NoError(t, err)
	require.Len(t, readings, 1)
}

func TestSubmitReadingEqualValueIsAccepted(t *testing.T) {
	f := newFixture(t)

	f.submit(t, 100)
	f.submit(t, 100)

	sales, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{NozzleID: f.nozzleID})
	require.NoError(t, err)
	require.Len(t, sales, 2)
	require.InDelta(t, 0, sales[0].Volume, 1e-9)
	require.InDelta(t, 0, sales[0].Amount, 1e-9)
}

func TestSubmitReadingUnknownNozzle(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   "nozzle-missing",
		Reading:    10,
		RecordedAt: time.Now().UTC(),
	}, "user-owner")
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestSubmitReadingRejectsInactiveNozzle(t *testing.T) {
	f := newFixture(t)

	status := domain.NozzleStatusMaintenance
	_, err := f.svc.UpdateNozzle(f.ctx, testTenant, f.nozzleID, domain.NozzleUpdateRequest{Status: &status})
	require.NoError(t, err)

	_, err = f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   f.nozzleID,
		Reading:    10,
		RecordedAt: time.Now().UTC(),
	}, "user-owner")
	require.ErrorIs(t, err, ErrNozzleInactive)
}

func TestSubmitReadingPriceMissingRollsBackReading(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   f.dieselID,
		Reading:    50,
		RecordedAt: time.Now().UTC(),
	}, "user-owner")
	require.ErrorIs(t, err, ErrPriceMissing)

	// The reading insert preceded the price lookup inside the transaction;
	// nothing may remain visible.
	readings, err := f.svc.ListReadings(f.ctx, testTenant, domain.ReadingFilter{NozzleID: f.dieselID})
	require.NoError(t, err)
	require.Empty(t, readings)
}

func TestSubmitReadingStalePrice(t *testing.T) {
	f := newFixture(t)
	recordedAt := time.Now().UTC()

	stale := recordedAt.Add(-8 * 24 * time.Hour)
	_, err := f.svc.CreateFuelPrice(f.ctx, testTenant, domain.FuelPriceCreateRequest{
		StationID: f.stationID,
		FuelType:  "diesel",
		Price:     90,
		ValidFrom: &stale,
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   f.dieselID,
		Reading:    50,
		RecordedAt: recordedAt,
	}, "user-owner")
	require.ErrorIs(t, err, ErrPriceStale)
}

func TestSubmitReadingSixDayOldPriceIsAccepted(t *testing.T) {
	f := newFixture(t)
	recordedAt := time.Now().UTC()

	validFrom := recordedAt.Add(-6 * 24 * time.Hour)
	_, err := f.svc.CreateFuelPrice(f.ctx, testTenant, domain.FuelPriceCreateRequest{
		StationID: f.stationID,
		FuelType:  "diesel",
		Price:     90,
		ValidFrom: &validFrom,
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   f.dieselID,
		Reading:    50,
		RecordedAt: recordedAt,
	}, "user-owner")
	require.NoError(t, err)
}

func TestSubmitReadingRejectsFinalizedDay(t *testing.T) {
	f := newFixture(t)
	recordedAt := time.Now().UTC()

	_, err := f.svc.FinalizeDay(f.ctx, testTenant, domain.FinalizeDayRequest{
		StationID: f.stationID,
		Date:      recordedAt.Format("2006-01-02"),
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   f.nozzleID,
		Reading:    10,
		RecordedAt: recordedAt,
	}, "user-owner")
	require.ErrorIs(t, err, ErrPeriodClosed)
}

func TestSubmitReadingCreditLimitExceeded(t *testing.T) {
	f := newFixture(t)

	// 90 litres at 100.00 brings the balance to 9000.
	f.submit(t, 90, func(in *domain.ReadingInput) { in.CreditorID = f.creditorID })

	// Another 15 litres would push the balance to 10500, over the limit.
	_, err := f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   f.nozzleID,
		Reading:    105,
		RecordedAt: time.Now().UTC(),
		CreditorID: f.creditorID,
	}, "user-owner")
	require.ErrorIs(t, err, ErrCreditLimitExceeded)

	creditor, err := f.svc.GetCreditor(f.ctx, testTenant, f.creditorID)
	require.NoError(t, err)
	require.InDelta(t, 9000, creditor.Balance, 1e-9)

	readings, err := f.svc.ListReadings(f.ctx, testTenant, domain.ReadingFilter{NozzleID: f.nozzleID})
	require.NoError(t, err)
	require.Len(t, readings, 1)
}

func TestSubmitReadingNearLimitEmitsOneAlert(t *testing.T) {
	f := newFixture(t)

	// 85 litres -> balance 8500, below the 90% threshold: no alert.
	f.submit(t, 85, func(in *domain.ReadingInput) { in.CreditorID = f.creditorID })
	alerts, err := f.svc.ListAlerts(f.ctx, testTenant, 10)
	require.NoError(t, err)
	require.Empty(t, alerts)

	// 6 more litres -> balance 9100, at or above 90% of 10000: one alert.
	f.submit(t, 91, func(in *domain.ReadingInput) { in.CreditorID = f.creditorID })
	alerts, err = f.svc.ListAlerts(f.ctx, testTenant, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, domain.AlertTypeCreditNearLimit, alerts[0].Type)
	require.Equal(t, domain.AlertSeverityWarning, alerts[0].Severity)
	require.Equal(t, f.stationID, alerts[0].StationID)
}

func TestSubmitReadingUnknownCreditorRollsBackEverything(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
		NozzleID:   f.nozzleID,
		Reading:    50,
		RecordedAt: time.Now().UTC(),
		CreditorID: "creditor-missing",
	}, "user-owner")
	require.ErrorIs(t, err, ErrInvalidReference)

	readings, err := f.svc.ListReadings(f.ctx, testTenant, domain.ReadingFilter{NozzleID: f.nozzleID})
	require.NoError(t, err)
	require.Empty(t, readings)

	sales, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{})
	require.NoError(t, err)
	require.Empty(t, sales)
}

func TestSubmitReadingPaymentMethodDefaults(t *testing.T) {
	f := newFixture(t)

	f.submit(t, 10)
	f.submit(t, 20, func(in *domain.ReadingInput) { in.CreditorID = f.creditorID })
	f.submit(t, 30, func(in *domain.ReadingInput) { in.PaymentMethod = domain.PaymentMethodUPI })

	sales, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 3)
	// Newest first.
	require.Equal(t, domain.PaymentMethodUPI, sales[0].PaymentMethod)
	require.Equal(t, domain.PaymentMethodCredit, sales[1].PaymentMethod)
	require.Equal(t, domain.PaymentMethodCash, sales[2].PaymentMethod)
}

func TestSubmitReadingExplicitMethodWithCreditorKept(t *testing.T) {
	f := newFixture(t)

	f.submit(t, 10, func(in *domain.ReadingInput) {
		in.CreditorID = f.creditorID
		in.PaymentMethod = domain.PaymentMethodCard
	})

	sales, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.Equal(t, domain.PaymentMethodCard, sales[0].PaymentMethod)
	require.Equal(t, f.creditorID, sales[0].CreditorID)

	// The creditor balance still moves for credit-tracked sales.
	creditor, err := f.svc.GetCreditor(f.ctx, testTenant, f.creditorID)
	require.NoError(t, err)
	require.InDelta(t, 1000, creditor.Balance, 1e-9)
}

func TestSubmitReadingRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	cases := []domain.ReadingInput{
		{NozzleID: "", Reading: 10, RecordedAt: time.Now().UTC()},
		{NozzleID: f.nozzleID, Reading: -1, RecordedAt: time.Now().UTC()},
		{NozzleID: f.nozzleID, Reading: 10},
		{NozzleID: f.nozzleID, Reading: 10, RecordedAt: time.Now().UTC(), PaymentMethod: "barter"},
	}
	for i, input := range cases {
		_, err := f.svc.SubmitReading(f.ctx, testTenant, input, "user-owner")
		require.ErrorIs(t, err, ErrInvalidInput, "case %d", i)
	}
}

func TestListReadingsOrderAndDeltas(t *testing.T) {
	f := newFixture(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i, value := range []float64{100, 150.50, 160} {
		_, err := f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
			NozzleID:   f.nozzleID,
			Reading:    value,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}, "user-owner")
		require.NoError(t, err)
	}

	readings, err := f.svc.ListReadings(f.ctx, testTenant, domain.ReadingFilter{NozzleID: f.nozzleID})
	require.NoError(t, err)
	require.Len(t, readings, 3)

	require.InDelta(t, 160, readings[0].Reading, 1e-9)
	require.InDelta(t, 150.50, readings[0].PreviousReading, 1e-9)
	require.InDelta(t, 9.50, readings[0].Volume, 1e-9)

	require.InDelta(t, 150.50, readings[1].Reading, 1e-9)
	require.InDelta(t, 100, readings[1].PreviousReading, 1e-9)

	require.InDelta(t, 100, readings[2].Reading, 1e-9)
	require.InDelta(t, 0, readings[2].PreviousReading, 1e-9)
	require.Equal(t, f.stationID, readings[0].StationID)
}

func TestListReadingsTimeFilter(t *testing.T) {
	f := newFixture(t)
	base := time.Now().UTC().Add(-2 * time.Hour)

	for i := 0; i < 4; i++ {
		_, err := f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
			NozzleID:   f.nozzleID,
			Reading:    float64((i + 1) * 10),
			RecordedAt: base.Add(time.Duration(i) * 30 * time.Minute),
		}, "user-owner")
		require.NoError(t, err)
	}

	from := base.Add(45 * time.Minute)
	to := base.Add(100 * time.Minute)
	readings, err := f.svc.ListReadings(f.ctx, testTenant, domain.ReadingFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, readings, 2)
}

func TestCanSubmitReading(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.CanSubmitReading(f.ctx, testTenant, f.nozzleID)
	require.NoError(t, err)
	require.True(t, result.Allowed)
	require.Empty(t, result.Reason)

	result, err = f.svc.CanSubmitReading(f.ctx, testTenant, "nozzle-missing")
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, "Invalid nozzle", result.Reason)

	result, err = f.svc.CanSubmitReading(f.ctx, testTenant, f.dieselID)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, "Active price missing", result.Reason)

	status := domain.NozzleStatusInactive
	_, err = f.svc.UpdateNozzle(f.ctx, testTenant, f.nozzleID, domain.NozzleUpdateRequest{Status: &status})
	require.NoError(t, err)

	result, err = f.svc.CanSubmitReading(f.ctx, testTenant, f.nozzleID)
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Equal(t, "Nozzle inactive", result.Reason)
}

func TestSubmitReadingConcurrentSingleNozzle(t *testing.T) {
	f := newFixture(t)
	base := time.Now().UTC().Add(-time.Hour)

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
				NozzleID:   f.nozzleID,
				Reading:    float64((i + 1) * 10),
				RecordedAt: base.Add(time.Duration(i) * time.Millisecond),
			}, "user-owner")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrReadingOutOfOrder, "worker %d", i)
		}
	}

	readings, err := f.svc.ListReadings(f.ctx, testTenant, domain.ReadingFilter{NozzleID: f.nozzleID})
	require.NoError(t, err)
	require.NotEmpty(t, readings)

	sales, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{NozzleID: f.nozzleID, Limit: workers})
	require.NoError(t, err)
	require.Len(t, sales, len(readings))

	// Dispensed volumes telescope: their sum must equal the highest
	// accepted meter value, or an update was lost.
	var maxReading, volumeSum float64
	for _, r := range readings {
		if r.Reading > maxReading {
			maxReading = r.Reading
		}
	}
	for _, s := range sales {
		volumeSum += s.Volume
	}
	require.InDelta(t, maxReading, volumeSum, 1e-6)
}

func TestRecordCreditPaymentFloorsAtZero(t *testing.T) {
	f := newFixture(t)

	f.submit(t, 10, func(in *domain.ReadingInput) { in.CreditorID = f.creditorID })

	creditor, err := f.svc.RecordCreditPayment(f.ctx, testTenant, f.creditorID, domain.CreditPaymentRequest{Amount: 5000})
	require.NoError(t, err)
	require.InDelta(t, 0, creditor.Balance, 1e-9)

	_, err = f.svc.RecordCreditPayment(f.ctx, testTenant, f.creditorID, domain.CreditPaymentRequest{Amount: -5})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFinalizeDayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	date := time.Now().UTC().Format("2006-01-02")

	_, err := f.svc.FinalizeDay(f.ctx, testTenant, domain.FinalizeDayRequest{StationID: f.stationID, Date: date})
	require.NoError(t, err)
	_, err = f.svc.FinalizeDay(f.ctx, testTenant, domain.FinalizeDayRequest{StationID: f.stationID, Date: date})
	require.NoError(t, err)

	day, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	finalized, err := f.svc.IsDayFinalized(f.ctx, testTenant, f.stationID, day)
	require.NoError(t, err)
	require.True(t, finalized)
}

func TestConfigMutationsRequireManagerRole(t *testing.T) {
	f := newFixture(t)

	attendantCtx := WithActor(context.Background(), domain.Actor{
		UserID:   "user-att",
		TenantID: testTenant,
		Username: "attendant",
		Role:     domain.RoleAttendant,
	})

	_, err := f.svc.CreateStation(attendantCtx, testTenant, domain.StationCreateRequest{Name: "Side Station"})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.CreateFuelPrice(attendantCtx, testTenant, domain.FuelPriceCreateRequest{StationID: f.stationID, FuelType: "petrol", Price: 99})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.FinalizeDay(attendantCtx, testTenant, domain.FinalizeDayRequest{StationID: f.stationID, Date: "2026-01-01"})
	require.ErrorIs(t, err, ErrForbidden)

	// Attendants still submit readings.
	_, err = f.svc.SubmitReading(attendantCtx, testTenant, domain.ReadingInput{
		NozzleID:   f.nozzleID,
		Reading:    5,
		RecordedAt: time.Now().UTC(),
	}, "user-att")
	require.NoError(t, err)
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)

	otherCtx := WithActor(context.Background(), domain.Actor{
		UserID:   "user-b",
		TenantID: "tenant-b",
		Username: "owner-b",
		Role:     domain.RoleOwner,
	})

	_, err := f.svc.SubmitReading(otherCtx, "tenant-b", domain.ReadingInput{
		NozzleID:   f.nozzleID,
		Reading:    10,
		RecordedAt: time.Now().UTC(),
	}, "user-b")
	require.ErrorIs(t, err, ErrInvalidReference)

	stations, err := f.svc.ListStations(otherCtx, "tenant-b")
	require.NoError(t, err)
	require.Empty(t, stations)
}

func TestDeleteGuards(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.svc.DeleteStation(f.ctx, testTenant, f.stationID), store.ErrConflict)
	require.ErrorIs(t, f.svc.DeletePump(f.ctx, testTenant, f.pumpID), store.ErrConflict)

	f.submit(t, 10)
	require.ErrorIs(t, f.svc.DeleteNozzle(f.ctx, testTenant, f.nozzleID), store.ErrConflict)

	// A nozzle with no history deletes cleanly.
	require.NoError(t, f.svc.DeleteNozzle(f.ctx, testTenant, f.dieselID))
}

func TestUpdatePump(t *testing.T) {
	f := newFixture(t)

	name := "Forecourt Pump A"
	status := domain.StationStatusInactive
	pump, err := f.svc.UpdatePump(f.ctx, testTenant, f.pumpID, domain.PumpUpdateRequest{
		Name:   &name,
		Status: &status,
	})
	require.NoError(t, err)
	require.Equal(t, "Forecourt Pump A", pump.Name)
	require.Equal(t, domain.StationStatusInactive, pump.Status)

	empty := "  "
	_, err = f.svc.UpdatePump(f.ctx, testTenant, f.pumpID, domain.PumpUpdateRequest{Name: &empty})
	require.ErrorIs(t, err, ErrInvalidInput)

	bad := "broken"
	_, err = f.svc.UpdatePump(f.ctx, testTenant, f.pumpID, domain.PumpUpdateRequest{Status: &bad})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.UpdatePump(f.ctx, testTenant, "missing-pump", domain.PumpUpdateRequest{Name: &name})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFuelInventoryDerivedFromDeliveriesAndSales(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateFuelDelivery(f.ctx, testTenant, domain.FuelDeliveryCreateRequest{
		StationID: f.stationID,
		FuelType:  "petrol",
		Volume:    1000,
	})
	require.NoError(t, err)

	f.submit(t, 40)

	inventory, err := f.svc.ListFuelInventory(f.ctx, testTenant, f.stationID)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	require.Equal(t, "petrol", inventory[0].FuelType)
	require.InDelta(t, 960, inventory[0].CurrentVolume, 1e-9)
}

func TestListSalesPagination(t *testing.T) {
	f := newFixture(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		_, err := f.svc.SubmitReading(f.ctx, testTenant, domain.ReadingInput{
			NozzleID:   f.nozzleID,
			Reading:    float64((i + 1) * 10),
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}, "user-owner")
		require.NoError(t, err)
	}

	page1, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{Limit: 2, Page: 1})
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page3, err := f.svc.ListSales(f.ctx, testTenant, domain.SaleFilter{Limit: 2, Page: 3})
	require.NoError(t, err)
	require.Len(t, page3, 1)

	require.True(t, page1[0].RecordedAt.After(page1[1].RecordedAt))
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		50.504:   50.50,
		50.506:   50.51,
		0:        0,
		-1.006:   -1.01,
		1234.56:  1234.56,
		100.4999: 100.50,
	}
	for in, want := range cases {
		require.InDelta(t, want, round2(in), 1e-9, fmt.Sprintf("round2(%v)", in))
	}
}
