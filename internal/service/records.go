package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"fuelsync/backend/internal/cache"
	"fuelsync/backend/internal/domain"
)

// Station, pump, nozzle, price, creditor and delivery mutations are limited
// to owners and managers; attendants only submit readings and read data.

func (s *Service) CreateStation(ctx context.Context, tenantID string, req domain.StationCreateRequest) (*domain.Station, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	return s.repo.CreateStation(ctx, domain.Station{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      req.Name,
		Address:   strings.TrimSpace(req.Address),
		Status:    domain.StationStatusActive,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Service) GetStation(ctx context.Context, tenantID, stationID string) (*domain.Station, error) {
	return s.repo.GetStation(ctx, tenantID, stationID)
}

func (s *Service) ListStations(ctx context.Context, tenantID string) ([]domain.Station, error) {
	return s.repo.ListStations(ctx, tenantID)
}

func (s *Service) UpdateStation(ctx context.Context, tenantID, stationID string, req domain.StationUpdateRequest) (*domain.Station, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	station, err := s.repo.GetStation(ctx, tenantID, stationID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		station.Name = name
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if status != domain.StationStatusActive && status != domain.StationStatusInactive {
			return nil, fmt.Errorf("%w: unsupported station status %q", ErrInvalidInput, status)
		}
		station.Status = status
	}
	return s.repo.UpdateStation(ctx, *station)
}

// DeleteStation refuses to remove a station that still owns pumps; the
// store reports that as ErrConflict.
func (s *Service) DeleteStation(ctx context.Context, tenantID, stationID string) error {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return err
	}
	return s.repo.DeleteStation(ctx, tenantID, stationID)
}

func (s *Service) CreatePump(ctx context.Context, tenantID string, req domain.PumpCreateRequest) (*domain.Pump, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	req.StationID = strings.TrimSpace(req.StationID)
	req.Name = strings.TrimSpace(req.Name)
	if req.StationID == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: stationId and name required", ErrInvalidInput)
	}
	if _, err := s.repo.GetStation(ctx, tenantID, req.StationID); err != nil {
		return nil, err
	}
	return s.repo.CreatePump(ctx, domain.Pump{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		StationID:    req.StationID,
		Name:         req.Name,
		SerialNumber: strings.TrimSpace(req.SerialNumber),
		Status:       domain.StationStatusActive,
		CreatedAt:    time.Now().UTC(),
	})
}

func (s *Service) ListPumps(ctx context.Context, tenantID, stationID string) ([]domain.Pump, error) {
	return s.repo.ListPumps(ctx, tenantID, strings.TrimSpace(stationID))
}

func (s *Service) UpdatePump(ctx context.Context, tenantID, pumpID string, req domain.PumpUpdateRequest) (*domain.Pump, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	pump, err := s.repo.GetPump(ctx, tenantID, pumpID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		pump.Name = name
	}
	if req.SerialNumber != nil {
		pump.SerialNumber = strings.TrimSpace(*req.SerialNumber)
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if status != domain.StationStatusActive && status != domain.StationStatusInactive {
			return nil, fmt.Errorf("%w: unsupported pump status %q", ErrInvalidInput, status)
		}
		pump.Status = status
	}
	return s.repo.UpdatePump(ctx, *pump)
}

func (s *Service) DeletePump(ctx context.Context, tenantID, pumpID string) error {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return err
	}
	return s.repo.DeletePump(ctx, tenantID, pumpID)
}

func (s *Service) CreateNozzle(ctx context.Context, tenantID string, req domain.NozzleCreateRequest) (*domain.Nozzle, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	req.PumpID = strings.TrimSpace(req.PumpID)
	req.FuelType = strings.TrimSpace(req.FuelType)
	if req.PumpID == "" || req.FuelType == "" || req.NozzleNumber <= 0 {
		return nil, fmt.Errorf("%w: pumpId, nozzleNumber and fuelType required", ErrInvalidInput)
	}
	return s.repo.CreateNozzle(ctx, domain.Nozzle{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		PumpID:       req.PumpID,
		NozzleNumber: req.NozzleNumber,
		FuelType:     req.FuelType,
		Status:       domain.NozzleStatusActive,
		CreatedAt:    time.Now().UTC(),
	})
}

func (s *Service) GetNozzle(ctx context.Context, tenantID, nozzleID string) (*domain.Nozzle, error) {
	return s.repo.GetNozzle(ctx, tenantID, nozzleID)
}

func (s *Service) ListNozzles(ctx context.Context, tenantID, pumpID string) ([]domain.Nozzle, error) {
	return s.repo.ListNozzles(ctx, tenantID, strings.TrimSpace(pumpID))
}

func (s *Service) UpdateNozzle(ctx context.Context, tenantID, nozzleID string, req domain.NozzleUpdateRequest) (*domain.Nozzle, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	nozzle, err := s.repo.GetNozzle(ctx, tenantID, nozzleID)
	if err != nil {
		return nil, err
	}
	if req.FuelType != nil {
		fuelType := strings.TrimSpace(*req.FuelType)
		if fuelType == "" {
			return nil, fmt.Errorf("%w: fuelType cannot be empty", ErrInvalidInput)
		}
		nozzle.FuelType = fuelType
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		switch status {
		case domain.NozzleStatusActive, domain.NozzleStatusInactive, domain.NozzleStatusMaintenance:
		default:
			return nil, fmt.Errorf("%w: unsupported nozzle status %q", ErrInvalidInput, status)
		}
		nozzle.Status = status
	}
	return s.repo.UpdateNozzle(ctx, *nozzle)
}

func (s *Service) DeleteNozzle(ctx context.Context, tenantID, nozzleID string) error {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return err
	}
	return s.repo.DeleteNozzle(ctx, tenantID, nozzleID)
}

// CreateFuelPrice records a new price effective from validFrom and drops the
// cached current price so pre-flight checks see it immediately.
func (s *Service) CreateFuelPrice(ctx context.Context, tenantID string, req domain.FuelPriceCreateRequest) (*domain.FuelPrice, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	req.StationID = strings.TrimSpace(req.StationID)
	req.FuelType = strings.TrimSpace(req.FuelType)
	if req.StationID == "" || req.FuelType == "" {
		return nil, fmt.Errorf("%w: stationId and fuelType required", ErrInvalidInput)
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if _, err := s.repo.GetStation(ctx, tenantID, req.StationID); err != nil {
		return nil, err
	}
	validFrom := time.Now().UTC()
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	price, err := s.repo.CreateFuelPrice(ctx, domain.FuelPrice{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		StationID: req.StationID,
		FuelType:  req.FuelType,
		Price:     round2(req.Price),
		ValidFrom: validFrom,
	})
	if err != nil {
		return nil, err
	}
	if err := s.prices.Invalidate(ctx, cache.PriceKey(tenantID, req.StationID, req.FuelType)); err != nil {
		log.Printf("[service] WARN: price cache invalidation failed: %v", err)
	}
	return price, nil
}

func (s *Service) ListFuelPrices(ctx context.Context, tenantID, stationID string) ([]domain.FuelPrice, error) {
	return s.repo.ListFuelPrices(ctx, tenantID, strings.TrimSpace(stationID))
}

func (s *Service) CreateCreditor(ctx context.Context, tenantID string, req domain.CreditorCreateRequest) (*domain.Creditor, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	req.PartyName = strings.TrimSpace(req.PartyName)
	if req.PartyName == "" {
		return nil, fmt.Errorf("%w: partyName required", ErrInvalidInput)
	}
	if req.CreditLimit < 0 {
		return nil, fmt.Errorf("%w: creditLimit cannot be negative", ErrInvalidInput)
	}
	return s.repo.CreateCreditor(ctx, domain.Creditor{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		PartyName:   req.PartyName,
		Balance:     0,
		CreditLimit: round2(req.CreditLimit),
		CreatedAt:   time.Now().UTC(),
	})
}

func (s *Service) GetCreditor(ctx context.Context, tenantID, creditorID string) (*domain.Creditor, error) {
	return s.repo.GetCreditor(ctx, tenantID, creditorID)
}

func (s *Service) ListCreditors(ctx context.Context, tenantID string) ([]domain.Creditor, error) {
	return s.repo.ListCreditors(ctx, tenantID)
}

// RecordCreditPayment lowers a creditor's outstanding balance. The balance
// floors at zero rather than going negative on overpayment.
func (s *Service) RecordCreditPayment(ctx context.Context, tenantID, creditorID string, req domain.CreditPaymentRequest) (*domain.Creditor, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return s.repo.AddCreditorPayment(ctx, tenantID, strings.TrimSpace(creditorID), round2(req.Amount))
}

func (s *Service) ListSales(ctx context.Context, tenantID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	filter.StationID = strings.TrimSpace(filter.StationID)
	filter.NozzleID = strings.TrimSpace(filter.NozzleID)
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.repo.ListSales(ctx, tenantID, filter)
}

// FinalizeDay closes a station's business day; once closed, readings dated
// inside it are rejected. Finalizing an already-closed day is a no-op.
func (s *Service) FinalizeDay(ctx context.Context, tenantID string, req domain.FinalizeDayRequest) (*domain.DayFinalization, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	req.StationID = strings.TrimSpace(req.StationID)
	if req.StationID == "" {
		return nil, fmt.Errorf("%w: stationId required", ErrInvalidInput)
	}
	day, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if _, err := s.repo.GetStation(ctx, tenantID, req.StationID); err != nil {
		return nil, err
	}
	actor, _ := ActorFromContext(ctx)
	fin := domain.DayFinalization{
		TenantID:    tenantID,
		StationID:   req.StationID,
		Day:         day,
		FinalizedBy: actor.UserID,
		FinalizedAt: time.Now().UTC(),
	}
	if err := s.repo.FinalizeDay(ctx, fin); err != nil {
		return nil, err
	}
	return &fin, nil
}

func (s *Service) IsDayFinalized(ctx context.Context, tenantID, stationID string, day time.Time) (bool, error) {
	return s.repo.IsDayFinalized(ctx, tenantID, strings.TrimSpace(stationID), day)
}

func (s *Service) CreateFuelDelivery(ctx context.Context, tenantID string, req domain.FuelDeliveryCreateRequest) (*domain.FuelDelivery, error) {
	if err := requireRole(ctx, domain.RoleOwner, domain.RoleManager); err != nil {
		return nil, err
	}
	req.StationID = strings.TrimSpace(req.StationID)
	req.FuelType = strings.TrimSpace(req.FuelType)
	if req.StationID == "" || req.FuelType == "" {
		return nil, fmt.Errorf("%w: stationId and fuelType required", ErrInvalidInput)
	}
	if req.Volume <= 0 {
		return nil, fmt.Errorf("%w: volume must be positive", ErrInvalidInput)
	}
	if _, err := s.repo.GetStation(ctx, tenantID, req.StationID); err != nil {
		return nil, err
	}
	deliveredAt := time.Now().UTC()
	if req.DeliveredAt != nil {
		deliveredAt = *req.DeliveredAt
	}
	return s.repo.CreateFuelDelivery(ctx, domain.FuelDelivery{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		StationID:   req.StationID,
		FuelType:    req.FuelType,
		Volume:      round2(req.Volume),
		DeliveredBy: strings.TrimSpace(req.DeliveredBy),
		DeliveredAt: deliveredAt,
	})
}

func (s *Service) ListFuelDeliveries(ctx context.Context, tenantID, stationID string) ([]domain.FuelDelivery, error) {
	return s.repo.ListFuelDeliveries(ctx, tenantID, strings.TrimSpace(stationID))
}

// ListFuelInventory reports, per station and fuel type, the delivered
// volume minus the sold volume.
func (s *Service) ListFuelInventory(ctx context.Context, tenantID, stationID string) ([]domain.FuelInventory, error) {
	return s.repo.ListFuelInventory(ctx, tenantID, strings.TrimSpace(stationID))
}

func (s *Service) ListAlerts(ctx context.Context, tenantID string, limit int) ([]domain.Alert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListAlerts(ctx, tenantID, limit)
}
