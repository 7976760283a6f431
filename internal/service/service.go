package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"fuelsync/backend/internal/cache"
	"fuelsync/backend/internal/domain"
	"fuelsync/backend/internal/store"
)

// Business-rule failures surfaced by the ingestion engine. Every one of
// them aborts the in-progress transaction; the caller maps them to
// 400-class responses.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidReference    = errors.New("invalid reference")
	ErrNozzleInactive      = errors.New("nozzle inactive")
	ErrReadingOutOfOrder   = errors.New("reading must be >= last reading")
	ErrPeriodClosed        = errors.New("day already finalized for this station")
	ErrPriceMissing        = errors.New("fuel price not found")
	ErrPriceStale          = errors.New("fuel price outdated")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	ErrForbidden           = errors.New("role not permitted")
)

// A price whose validity started more than this long before the reading is
// treated as untrustworthy rather than silently applied.
const priceMaxAge = 7 * 24 * time.Hour

// Fraction of the credit limit at which a near-limit alert is raised.
const creditWarnRatio = 0.9

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	prices   cache.PriceCache
	priceTTL time.Duration
}

func New(repo store.Repository, prices cache.PriceCache, priceTTL time.Duration) *Service {
	if prices == nil {
		prices = cache.NoopPriceCache{}
	}
	if priceTTL <= 0 {
		priceTTL = 30 * time.Second
	}
	return &Service{repo: repo, prices: prices, priceTTL: priceTTL}
}

// SubmitReading validates and persists a new meter reading and, in the same
// transaction, the sale derived from it: volume is the delta since the last
// reading, amount is volume times the price in effect at the reading's
// timestamp, and credit sales move the creditor's balance. Either all of
// these writes commit or none do.
func (s *Service) SubmitReading(ctx context.Context, tenantID string, input domain.ReadingInput, actorID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	input.NozzleID = strings.TrimSpace(input.NozzleID)
	input.CreditorID = strings.TrimSpace(input.CreditorID)
	input.PaymentMethod = strings.TrimSpace(input.PaymentMethod)

	if tenantID == "" {
		return "", fmt.Errorf("%w: tenant required", ErrInvalidInput)
	}
	if input.NozzleID == "" {
		return "", fmt.Errorf("%w: nozzleId required", ErrInvalidInput)
	}
	if math.IsNaN(input.Reading) || math.IsInf(input.Reading, 0) || input.Reading < 0 {
		return "", fmt.Errorf("%w: reading must be a non-negative number", ErrInvalidInput)
	}
	if input.RecordedAt.IsZero() {
		return "", fmt.Errorf("%w: recordedAt invalid", ErrInvalidInput)
	}
	if input.PaymentMethod != "" && !domain.IsSupportedPaymentMethod(input.PaymentMethod) {
		return "", fmt.Errorf("%w: unsupported payment method %q", ErrInvalidInput, input.PaymentMethod)
	}

	var readingID string
	var pendingAlert *domain.Alert

	err := s.repo.SubmitReadingTx(ctx, tenantID, func(tx store.ReadingTx) error {
		nozzle, err := tx.NozzleInfo(ctx, input.NozzleID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: invalid nozzle", ErrInvalidReference)
		}
		if err != nil {
			return err
		}
		if nozzle.Status != domain.NozzleStatusActive {
			return ErrNozzleInactive
		}

		lastReading, _, err := tx.LastReading(ctx, input.NozzleID)
		if err != nil {
			return err
		}
		if input.Reading < lastReading {
			return fmt.Errorf("%w: got %.2f, last recorded %.2f", ErrReadingOutOfOrder, input.Reading, lastReading)
		}

		finalized, err := tx.IsDayFinalized(ctx, nozzle.StationID, input.RecordedAt)
		if err != nil {
			return err
		}
		if finalized {
			return ErrPeriodClosed
		}

		readingID = uuid.NewString()
		if err := tx.InsertReading(ctx, domain.NozzleReading{
			ID:         readingID,
			TenantID:   tenantID,
			NozzleID:   input.NozzleID,
			Reading:    input.Reading,
			RecordedAt: input.RecordedAt,
		}); err != nil {
			return err
		}

		volumeSold := round2(input.Reading - lastReading)

		price, err := tx.PriceAt(ctx, nozzle.StationID, nozzle.FuelType, input.RecordedAt)
		if errors.Is(err, store.ErrNotFound) {
			return ErrPriceMissing
		}
		if err != nil {
			return err
		}
		if price.ValidFrom.Before(input.RecordedAt.Add(-priceMaxAge)) {
			return fmt.Errorf("%w: valid from %s", ErrPriceStale, price.ValidFrom.Format("2006-01-02"))
		}

		saleAmount := round2(volumeSold * price.Price)

		if input.CreditorID != "" {
			creditor, err := tx.CreditorForUpdate(ctx, input.CreditorID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: invalid creditor", ErrInvalidReference)
			}
			if err != nil {
				return err
			}
			newBalance := creditor.Balance + saleAmount
			if newBalance > creditor.CreditLimit {
				return fmt.Errorf("%w: balance %.2f + sale %.2f over limit %.2f", ErrCreditLimitExceeded, creditor.Balance, saleAmount, creditor.CreditLimit)
			}
			if newBalance >= creditor.CreditLimit*creditWarnRatio {
				pendingAlert = &domain.Alert{
					ID:        uuid.NewString(),
					TenantID:  tenantID,
					StationID: nozzle.StationID,
					Type:      domain.AlertTypeCreditNearLimit,
					Message:   "Creditor above 90% of credit limit",
					Severity:  domain.AlertSeverityWarning,
					CreatedAt: time.Now().UTC(),
				}
			}
			if err := tx.AddCreditorBalance(ctx, input.CreditorID, saleAmount); err != nil {
				return err
			}
		}

		paymentMethod := input.PaymentMethod
		if paymentMethod == "" {
			if input.CreditorID != "" {
				paymentMethod = domain.PaymentMethodCredit
			} else {
				paymentMethod = domain.PaymentMethodCash
			}
		}

		return tx.InsertSale(ctx, domain.Sale{
			ID:            uuid.NewString(),
			TenantID:      tenantID,
			NozzleID:      input.NozzleID,
			StationID:     nozzle.StationID,
			Volume:        volumeSold,
			FuelType:      nozzle.FuelType,
			FuelPrice:     price.Price,
			Amount:        saleAmount,
			PaymentMethod: paymentMethod,
			CreditorID:    input.CreditorID,
			CreatedBy:     actorID,
			RecordedAt:    input.RecordedAt,
		})
	})
	if err != nil {
		return "", err
	}

	// The alert is a best-effort side effect: it must never roll back, or
	// be rolled back by, the sale it annotates.
	if pendingAlert != nil {
		if err := s.repo.CreateAlert(ctx, *pendingAlert); err != nil {
			log.Printf("[service] WARN: failed to emit %s alert: %v", pendingAlert.Type, err)
		}
	}

	return readingID, nil
}

// CanSubmitReading is the advisory pre-flight check used to disable the UI
// before an attempt. It checks that the nozzle is active and a price exists
// now; the authoritative checks run inside SubmitReading against the
// reading's own timestamp, which can differ for backdated readings.
func (s *Service) CanSubmitReading(ctx context.Context, tenantID, nozzleID string) (domain.CanSubmitResult, error) {
	nozzleID = strings.TrimSpace(nozzleID)
	if tenantID == "" || nozzleID == "" {
		return domain.CanSubmitResult{}, fmt.Errorf("%w: nozzleId required", ErrInvalidInput)
	}

	nozzle, err := s.repo.GetNozzleInfo(ctx, tenantID, nozzleID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.CanSubmitResult{Allowed: false, Reason: "Invalid nozzle"}, nil
	}
	if err != nil {
		return domain.CanSubmitResult{}, err
	}
	if nozzle.Status != domain.NozzleStatusActive {
		return domain.CanSubmitResult{Allowed: false, Reason: "Nozzle inactive"}, nil
	}

	price, err := s.currentPrice(ctx, tenantID, nozzle.StationID, nozzle.FuelType)
	if err != nil {
		return domain.CanSubmitResult{}, err
	}
	if price == nil {
		return domain.CanSubmitResult{Allowed: false, Reason: "Active price missing"}, nil
	}

	return domain.CanSubmitResult{Allowed: true}, nil
}

func (s *Service) ListReadings(ctx context.Context, tenantID string, filter domain.ReadingFilter) ([]domain.ReadingView, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", ErrInvalidInput)
	}
	filter.NozzleID = strings.TrimSpace(filter.NozzleID)
	filter.StationID = strings.TrimSpace(filter.StationID)
	return s.repo.ListReadings(ctx, tenantID, filter)
}

// currentPrice resolves the price in effect right now, going through the
// cache first. Cache failures degrade to a direct lookup.
func (s *Service) currentPrice(ctx context.Context, tenantID, stationID, fuelType string) (*domain.FuelPrice, error) {
	key := cache.PriceKey(tenantID, stationID, fuelType)
	if cached, ok, err := s.prices.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: price cache read failed: %v", err)
	}

	price, err := s.repo.GetPriceAt(ctx, tenantID, stationID, fuelType, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.prices.Set(ctx, key, price, s.priceTTL); err != nil {
		log.Printf("[service] WARN: price cache write failed: %v", err)
	}
	return price, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func requireRole(ctx context.Context, roles ...string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrForbidden, actor.Role)
}
