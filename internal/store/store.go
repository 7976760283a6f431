package store

import (
	"context"
	"errors"
	"time"

	"fuelsync/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ReadingTx is the transactional handle the ingestion engine runs against.
// All methods operate in the tenant scope fixed when the transaction began.
// Writes become visible only if the enclosing SubmitReadingTx callback
// returns nil; any error rolls back everything.
type ReadingTx interface {
	// NozzleInfo resolves the nozzle joined with its pump and station. The
	// row is locked until commit so concurrent submissions for the same
	// nozzle serialize; distinct nozzles do not contend.
	NozzleInfo(ctx context.Context, nozzleID string) (*domain.NozzleInfo, error)
	// LastReading returns the most recent prior reading for the nozzle,
	// ordered by recorded_at descending. ok is false if none exists.
	LastReading(ctx context.Context, nozzleID string) (value float64, ok bool, err error)
	IsDayFinalized(ctx context.Context, stationID string, day time.Time) (bool, error)
	InsertReading(ctx context.Context, reading domain.NozzleReading) error
	// PriceAt resolves the price in effect at the given instant: the row
	// with the latest valid_from <= at. Returns ErrNotFound if no price
	// record exists at or before that instant.
	PriceAt(ctx context.Context, stationID, fuelType string, at time.Time) (*domain.FuelPrice, error)
	// CreditorForUpdate reads and locks the creditor row until commit.
	CreditorForUpdate(ctx context.Context, creditorID string) (*domain.Creditor, error)
	AddCreditorBalance(ctx context.Context, creditorID string, delta float64) error
	InsertSale(ctx context.Context, sale domain.Sale) error
}

type Repository interface {
	// SubmitReadingTx runs fn inside one atomic transaction. If fn returns
	// an error, or the caller's context is cancelled mid-flight, every
	// write staged through the ReadingTx is rolled back; nothing partial
	// is ever observable.
	SubmitReadingTx(ctx context.Context, tenantID string, fn func(tx ReadingTx) error) error

	ListReadings(ctx context.Context, tenantID string, filter domain.ReadingFilter) ([]domain.ReadingView, error)
	GetNozzleInfo(ctx context.Context, tenantID, nozzleID string) (*domain.NozzleInfo, error)

	CreateStation(ctx context.Context, station domain.Station) (*domain.Station, error)
	GetStation(ctx context.Context, tenantID, stationID string) (*domain.Station, error)
	ListStations(ctx context.Context, tenantID string) ([]domain.Station, error)
	UpdateStation(ctx context.Context, station domain.Station) (*domain.Station, error)
	// DeleteStation refuses with ErrConflict while pumps exist.
	DeleteStation(ctx context.Context, tenantID, stationID string) error

	CreatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error)
	GetPump(ctx context.Context, tenantID, pumpID string) (*domain.Pump, error)
	ListPumps(ctx context.Context, tenantID, stationID string) ([]domain.Pump, error)
	UpdatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error)
	// DeletePump refuses with ErrConflict while nozzles exist.
	DeletePump(ctx context.Context, tenantID, pumpID string) error

	CreateNozzle(ctx context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error)
	GetNozzle(ctx context.Context, tenantID, nozzleID string) (*domain.Nozzle, error)
	ListNozzles(ctx context.Context, tenantID, pumpID string) ([]domain.Nozzle, error)
	UpdateNozzle(ctx context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error)
	// DeleteNozzle refuses with ErrConflict while sales reference the nozzle.
	DeleteNozzle(ctx context.Context, tenantID, nozzleID string) error

	CreateFuelPrice(ctx context.Context, price domain.FuelPrice) (*domain.FuelPrice, error)
	ListFuelPrices(ctx context.Context, tenantID, stationID string) ([]domain.FuelPrice, error)
	GetPriceAt(ctx context.Context, tenantID, stationID, fuelType string, at time.Time) (*domain.FuelPrice, error)

	CreateCreditor(ctx context.Context, creditor domain.Creditor) (*domain.Creditor, error)
	GetCreditor(ctx context.Context, tenantID, creditorID string) (*domain.Creditor, error)
	ListCreditors(ctx context.Context, tenantID string) ([]domain.Creditor, error)
	// AddCreditorPayment decrements the creditor's balance by amount,
	// never below zero, and returns the updated creditor.
	AddCreditorPayment(ctx context.Context, tenantID, creditorID string, amount float64) (*domain.Creditor, error)

	ListSales(ctx context.Context, tenantID string, filter domain.SaleFilter) ([]domain.Sale, error)

	FinalizeDay(ctx context.Context, fin domain.DayFinalization) error
	IsDayFinalized(ctx context.Context, tenantID, stationID string, day time.Time) (bool, error)

	CreateAlert(ctx context.Context, alert domain.Alert) error
	ListAlerts(ctx context.Context, tenantID string, limit int) ([]domain.Alert, error)

	CreateFuelDelivery(ctx context.Context, delivery domain.FuelDelivery) (*domain.FuelDelivery, error)
	ListFuelDeliveries(ctx context.Context, tenantID, stationID string) ([]domain.FuelDelivery, error)
	// ListFuelInventory derives tank levels per (station, fuel type):
	// total delivered volume minus total sold volume.
	ListFuelInventory(ctx context.Context, tenantID, stationID string) ([]domain.FuelInventory, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context, tenantID string) ([]domain.UserAccount, error)
}
