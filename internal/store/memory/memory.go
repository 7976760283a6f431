package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"fuelsync/backend/internal/domain"
	"fuelsync/backend/internal/store"
)

// Store is the in-memory Repository used for dev/demo mode and tests.
// A single mutex guards all state; SubmitReadingTx holds the write lock
// for the whole callback, which gives the same serialization the
// PostgreSQL store gets from row locks.
type Store struct {
	mu            sync.RWMutex
	stations      map[string]domain.Station
	pumps         map[string]domain.Pump
	nozzles       map[string]domain.Nozzle
	readings      map[string][]domain.NozzleReading
	prices        []domain.FuelPrice
	sales         []domain.Sale
	creditors     map[string]domain.Creditor
	alerts        []domain.Alert
	deliveries    []domain.FuelDelivery
	finalizedDays map[string]domain.DayFinalization
	usersByName   map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		stations:      make(map[string]domain.Station),
		pumps:         make(map[string]domain.Pump),
		nozzles:       make(map[string]domain.Nozzle),
		readings:      make(map[string][]domain.NozzleReading),
		creditors:     make(map[string]domain.Creditor),
		finalizedDays: make(map[string]domain.DayFinalization),
		usersByName:   make(map[string]domain.UserAccount),
	}
}

const seedTenantID = "tenant-demo"

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_OWNER_PASSWORD, SEED_MANAGER_PASSWORD and
// SEED_ATTENDANT_PASSWORD. If unset, hardcoded dev defaults are used with
// a warning. These credentials are never used in production (the backend
// uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	attendantPwd := envOr("SEED_ATTENDANT_PASSWORD", "attendant123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_ATTENDANT_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD, SEED_MANAGER_PASSWORD and SEED_ATTENDANT_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"manager", managerPwd, domain.RoleManager},
		{"attendant", attendantPwd, domain.RoleAttendant},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			ID:        uuid.NewString(),
			TenantID:  seedTenantID,
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store pre-populated with one demo tenant: a station
// with two pumps, three nozzles, current petrol and diesel prices and a
// creditor account.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	station := domain.Station{
		ID:        "station-1",
		TenantID:  seedTenantID,
		Name:      "Highway Fuel Stop",
		Address:   "NH-48 Service Road",
		Status:    domain.StationStatusActive,
		CreatedAt: now,
	}
	s.stations[station.ID] = station

	pumps := []domain.Pump{
		{ID: "pump-1", TenantID: seedTenantID, StationID: station.ID, Name: "Pump 1", SerialNumber: "P1-2207", Status: domain.StationStatusActive, CreatedAt: now},
		{ID: "pump-2", TenantID: seedTenantID, StationID: station.ID, Name: "Pump 2", SerialNumber: "P2-2207", Status: domain.StationStatusActive, CreatedAt: now},
	}
	for _, p := range pumps {
		s.pumps[p.ID] = p
	}

	nozzles := []domain.Nozzle{
		{ID: "nozzle-1", TenantID: seedTenantID, PumpID: "pump-1", NozzleNumber: 1, FuelType: "petrol", Status: domain.NozzleStatusActive, CreatedAt: now},
		{ID: "nozzle-2", TenantID: seedTenantID, PumpID: "pump-1", NozzleNumber: 2, FuelType: "diesel", Status: domain.NozzleStatusActive, CreatedAt: now},
		{ID: "nozzle-3", TenantID: seedTenantID, PumpID: "pump-2", NozzleNumber: 1, FuelType: "petrol", Status: domain.NozzleStatusActive, CreatedAt: now},
	}
	for _, n := range nozzles {
		s.nozzles[n.ID] = n
	}

	s.prices = []domain.FuelPrice{
		{ID: uuid.NewString(), TenantID: seedTenantID, StationID: station.ID, FuelType: "petrol", Price: 102.50, ValidFrom: now.Add(-24 * time.Hour)},
		{ID: uuid.NewString(), TenantID: seedTenantID, StationID: station.ID, FuelType: "diesel", Price: 89.75, ValidFrom: now.Add(-24 * time.Hour)},
	}

	s.creditors["creditor-1"] = domain.Creditor{
		ID:          "creditor-1",
		TenantID:    seedTenantID,
		PartyName:   "Highway Logistics Pvt Ltd",
		Balance:     0,
		CreditLimit: 10000,
		CreatedAt:   now,
	}

	s.usersByName = seedUsers()
	return s
}

// readingTx stages all writes and applies them only when the callback
// succeeds. The store's write lock is held for the whole transaction.
type readingTx struct {
	s        *Store
	tenantID string

	stagedReadings []domain.NozzleReading
	stagedSales    []domain.Sale
	balanceDeltas  map[string]float64
}

func (s *Store) SubmitReadingTx(ctx context.Context, tenantID string, fn func(tx store.ReadingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &readingTx{s: s, tenantID: tenantID, balanceDeltas: make(map[string]float64)}
	if err := fn(tx); err != nil {
		return err
	}

	for _, r := range tx.stagedReadings {
		s.readings[r.NozzleID] = append(s.readings[r.NozzleID], r)
	}
	s.sales = append(s.sales, tx.stagedSales...)
	for creditorID, delta := range tx.balanceDeltas {
		c := s.creditors[creditorID]
		c.Balance += delta
		s.creditors[creditorID] = c
	}
	return nil
}

func (t *readingTx) NozzleInfo(_ context.Context, nozzleID string) (*domain.NozzleInfo, error) {
	return t.s.nozzleInfoLocked(t.tenantID, nozzleID)
}

func (t *readingTx) LastReading(_ context.Context, nozzleID string) (float64, bool, error) {
	var last *domain.NozzleReading
	for i := range t.s.readings[nozzleID] {
		r := t.s.readings[nozzleID][i]
		if last == nil || !r.RecordedAt.Before(last.RecordedAt) {
			last = &r
		}
	}
	for i := range t.stagedReadings {
		r := t.stagedReadings[i]
		if r.NozzleID != nozzleID {
			continue
		}
		if last == nil || !r.RecordedAt.Before(last.RecordedAt) {
			last = &r
		}
	}
	if last == nil {
		return 0, false, nil
	}
	return last.Reading, true, nil
}

func (t *readingTx) IsDayFinalized(_ context.Context, stationID string, day time.Time) (bool, error) {
	_, ok := t.s.finalizedDays[dayKey(t.tenantID, stationID, day)]
	return ok, nil
}

func (t *readingTx) InsertReading(_ context.Context, reading domain.NozzleReading) error {
	t.stagedReadings = append(t.stagedReadings, reading)
	return nil
}

func (t *readingTx) PriceAt(_ context.Context, stationID, fuelType string, at time.Time) (*domain.FuelPrice, error) {
	return t.s.priceAtLocked(t.tenantID, stationID, fuelType, at)
}

func (t *readingTx) CreditorForUpdate(_ context.Context, creditorID string) (*domain.Creditor, error) {
	c, ok := t.s.creditors[creditorID]
	if !ok || c.TenantID != t.tenantID {
		return nil, store.ErrNotFound
	}
	c.Balance += t.balanceDeltas[creditorID]
	return &c, nil
}

func (t *readingTx) AddCreditorBalance(_ context.Context, creditorID string, delta float64) error {
	if c, ok := t.s.creditors[creditorID]; !ok || c.TenantID != t.tenantID {
		return store.ErrNotFound
	}
	t.balanceDeltas[creditorID] += delta
	return nil
}

func (t *readingTx) InsertSale(_ context.Context, sale domain.Sale) error {
	t.stagedSales = append(t.stagedSales, sale)
	return nil
}

func (s *Store) nozzleInfoLocked(tenantID, nozzleID string) (*domain.NozzleInfo, error) {
	nozzle, ok := s.nozzles[nozzleID]
	if !ok || nozzle.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	pump, ok := s.pumps[nozzle.PumpID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &domain.NozzleInfo{
		ID:        nozzle.ID,
		PumpID:    pump.ID,
		StationID: pump.StationID,
		FuelType:  nozzle.FuelType,
		Status:    nozzle.Status,
	}, nil
}

func (s *Store) priceAtLocked(tenantID, stationID, fuelType string, at time.Time) (*domain.FuelPrice, error) {
	var best *domain.FuelPrice
	for i := range s.prices {
		p := s.prices[i]
		if p.TenantID != tenantID || p.StationID != stationID || p.FuelType != fuelType {
			continue
		}
		if p.ValidFrom.After(at) {
			continue
		}
		if best == nil || p.ValidFrom.After(best.ValidFrom) {
			best = &p
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	found := *best
	return &found, nil
}

func (s *Store) GetNozzleInfo(_ context.Context, tenantID, nozzleID string) (*domain.NozzleInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nozzleInfoLocked(tenantID, nozzleID)
}

func (s *Store) ListReadings(_ context.Context, tenantID string, filter domain.ReadingFilter) ([]domain.ReadingView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stationByNozzle := make(map[string]string)
	for _, n := range s.nozzles {
		if n.TenantID != tenantID {
			continue
		}
		if p, ok := s.pumps[n.PumpID]; ok {
			stationByNozzle[n.ID] = p.StationID
		}
	}

	views := make([]domain.ReadingView, 0)
	for nozzleID, rows := range s.readings {
		stationID, ok := stationByNozzle[nozzleID]
		if !ok {
			continue
		}
		ordered := make([]domain.NozzleReading, len(rows))
		copy(ordered, rows)
		slices.SortStableFunc(ordered, func(a, b domain.NozzleReading) int {
			return a.RecordedAt.Compare(b.RecordedAt)
		})
		prev := 0.0
		for _, r := range ordered {
			if r.TenantID != tenantID {
				continue
			}
			view := domain.ReadingView{
				ID:              r.ID,
				NozzleID:        r.NozzleID,
				StationID:       stationID,
				Reading:         r.Reading,
				PreviousReading: prev,
				Volume:          r.Reading - prev,
				RecordedAt:      r.RecordedAt,
			}
			prev = r.Reading
			if filter.NozzleID != "" && view.NozzleID != filter.NozzleID {
				continue
			}
			if filter.StationID != "" && view.StationID != filter.StationID {
				continue
			}
			if filter.From != nil && view.RecordedAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && view.RecordedAt.After(*filter.To) {
				continue
			}
			views = append(views, view)
		}
	}

	slices.SortStableFunc(views, func(a, b domain.ReadingView) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})
	return views, nil
}

func (s *Store) CreateStation(_ context.Context, station domain.Station) (*domain.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations[station.ID] = station
	created := station
	return &created, nil
}

func (s *Store) GetStation(_ context.Context, tenantID, stationID string) (*domain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	station, ok := s.stations[stationID]
	if !ok || station.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	station.PumpCount = s.pumpCountLocked(stationID)
	found := station
	return &found, nil
}

func (s *Store) ListStations(_ context.Context, tenantID string) ([]domain.Station, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stations := make([]domain.Station, 0, len(s.stations))
	for _, st := range s.stations {
		if st.TenantID != tenantID {
			continue
		}
		st.PumpCount = s.pumpCountLocked(st.ID)
		stations = append(stations, st)
	}
	slices.SortFunc(stations, func(a, b domain.Station) int {
		return strings.Compare(a.Name, b.Name)
	})
	return stations, nil
}

func (s *Store) UpdateStation(_ context.Context, station domain.Station) (*domain.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.stations[station.ID]
	if !ok || existing.TenantID != station.TenantID {
		return nil, store.ErrNotFound
	}
	s.stations[station.ID] = station
	updated := station
	return &updated, nil
}

func (s *Store) DeleteStation(_ context.Context, tenantID, stationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	station, ok := s.stations[stationID]
	if !ok || station.TenantID != tenantID {
		return store.ErrNotFound
	}
	if s.pumpCountLocked(stationID) > 0 {
		return store.ErrConflict
	}
	delete(s.stations, stationID)
	return nil
}

func (s *Store) pumpCountLocked(stationID string) int {
	count := 0
	for _, p := range s.pumps {
		if p.StationID == stationID {
			count++
		}
	}
	return count
}

func (s *Store) CreatePump(_ context.Context, pump domain.Pump) (*domain.Pump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pumps[pump.ID] = pump
	created := pump
	return &created, nil
}

func (s *Store) ListPumps(_ context.Context, tenantID, stationID string) ([]domain.Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pumps := make([]domain.Pump, 0)
	for _, p := range s.pumps {
		if p.TenantID != tenantID {
			continue
		}
		if stationID != "" && p.StationID != stationID {
			continue
		}
		p.NozzleCount = 0
		for _, n := range s.nozzles {
			if n.PumpID == p.ID {
				p.NozzleCount++
			}
		}
		pumps = append(pumps, p)
	}
	slices.SortFunc(pumps, func(a, b domain.Pump) int {
		return strings.Compare(a.Name, b.Name)
	})
	return pumps, nil
}

func (s *Store) GetPump(_ context.Context, tenantID, pumpID string) (*domain.Pump, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pump, ok := s.pumps[pumpID]
	if !ok || pump.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	pump.NozzleCount = 0
	for _, n := range s.nozzles {
		if n.PumpID == pump.ID {
			pump.NozzleCount++
		}
	}
	return &pump, nil
}

func (s *Store) UpdatePump(_ context.Context, pump domain.Pump) (*domain.Pump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.pumps[pump.ID]
	if !ok || existing.TenantID != pump.TenantID {
		return nil, store.ErrNotFound
	}
	s.pumps[pump.ID] = pump
	updated := pump
	return &updated, nil
}

func (s *Store) DeletePump(_ context.Context, tenantID, pumpID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pump, ok := s.pumps[pumpID]
	if !ok || pump.TenantID != tenantID {
		return store.ErrNotFound
	}
	for _, n := range s.nozzles {
		if n.PumpID == pumpID {
			return store.ErrConflict
		}
	}
	delete(s.pumps, pumpID)
	return nil
}

func (s *Store) CreateNozzle(_ context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pump, ok := s.pumps[nozzle.PumpID]
	if !ok || pump.TenantID != nozzle.TenantID {
		return nil, store.ErrNotFound
	}
	s.nozzles[nozzle.ID] = nozzle
	created := nozzle
	return &created, nil
}

func (s *Store) GetNozzle(_ context.Context, tenantID, nozzleID string) (*domain.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nozzle, ok := s.nozzles[nozzleID]
	if !ok || nozzle.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := nozzle
	return &found, nil
}

func (s *Store) ListNozzles(_ context.Context, tenantID, pumpID string) ([]domain.Nozzle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nozzles := make([]domain.Nozzle, 0)
	for _, n := range s.nozzles {
		if n.TenantID != tenantID {
			continue
		}
		if pumpID != "" && n.PumpID != pumpID {
			continue
		}
		nozzles = append(nozzles, n)
	}
	slices.SortFunc(nozzles, func(a, b domain.Nozzle) int {
		if a.PumpID == b.PumpID {
			return a.NozzleNumber - b.NozzleNumber
		}
		return strings.Compare(a.PumpID, b.PumpID)
	})
	return nozzles, nil
}

func (s *Store) UpdateNozzle(_ context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.nozzles[nozzle.ID]
	if !ok || existing.TenantID != nozzle.TenantID {
		return nil, store.ErrNotFound
	}
	s.nozzles[nozzle.ID] = nozzle
	updated := nozzle
	return &updated, nil
}

func (s *Store) DeleteNozzle(_ context.Context, tenantID, nozzleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nozzle, ok := s.nozzles[nozzleID]
	if !ok || nozzle.TenantID != tenantID {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.NozzleID == nozzleID {
			return store.ErrConflict
		}
	}
	if len(s.readings[nozzleID]) > 0 {
		return store.ErrConflict
	}
	delete(s.nozzles, nozzleID)
	return nil
}

func (s *Store) CreateFuelPrice(_ context.Context, price domain.FuelPrice) (*domain.FuelPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append(s.prices, price)
	created := price
	return &created, nil
}

func (s *Store) ListFuelPrices(_ context.Context, tenantID, stationID string) ([]domain.FuelPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := make([]domain.FuelPrice, 0)
	for _, p := range s.prices {
		if p.TenantID != tenantID {
			continue
		}
		if stationID != "" && p.StationID != stationID {
			continue
		}
		prices = append(prices, p)
	}
	slices.SortStableFunc(prices, func(a, b domain.FuelPrice) int {
		return b.ValidFrom.Compare(a.ValidFrom)
	})
	return prices, nil
}

func (s *Store) GetPriceAt(_ context.Context, tenantID, stationID, fuelType string, at time.Time) (*domain.FuelPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priceAtLocked(tenantID, stationID, fuelType, at)
}

func (s *Store) CreateCreditor(_ context.Context, creditor domain.Creditor) (*domain.Creditor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creditors[creditor.ID] = creditor
	created := creditor
	return &created, nil
}

func (s *Store) GetCreditor(_ context.Context, tenantID, creditorID string) (*domain.Creditor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creditors[creditorID]
	if !ok || c.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	found := c
	return &found, nil
}

func (s *Store) ListCreditors(_ context.Context, tenantID string) ([]domain.Creditor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creditors := make([]domain.Creditor, 0, len(s.creditors))
	for _, c := range s.creditors {
		if c.TenantID != tenantID {
			continue
		}
		creditors = append(creditors, c)
	}
	slices.SortFunc(creditors, func(a, b domain.Creditor) int {
		return strings.Compare(a.PartyName, b.PartyName)
	})
	return creditors, nil
}

func (s *Store) AddCreditorPayment(_ context.Context, tenantID, creditorID string, amount float64) (*domain.Creditor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creditors[creditorID]
	if !ok || c.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	c.Balance -= amount
	if c.Balance < 0 {
		c.Balance = 0
	}
	s.creditors[creditorID] = c
	updated := c
	return &updated, nil
}

func (s *Store) ListSales(_ context.Context, tenantID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if sale.TenantID != tenantID {
			continue
		}
		if filter.NozzleID != "" && sale.NozzleID != filter.NozzleID {
			continue
		}
		if filter.StationID != "" && sale.StationID != filter.StationID {
			continue
		}
		if filter.From != nil && sale.RecordedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && sale.RecordedAt.After(*filter.To) {
			continue
		}
		sales = append(sales, sale)
	}
	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})

	if filter.Limit > 0 {
		offset := (filter.Page - 1) * filter.Limit
		if offset >= len(sales) {
			return []domain.Sale{}, nil
		}
		end := offset + filter.Limit
		if end > len(sales) {
			end = len(sales)
		}
		sales = sales[offset:end]
	}
	return sales, nil
}

func dayKey(tenantID, stationID string, day time.Time) string {
	return tenantID + "|" + stationID + "|" + day.UTC().Format("2006-01-02")
}

func (s *Store) FinalizeDay(_ context.Context, fin domain.DayFinalization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dayKey(fin.TenantID, fin.StationID, fin.Day)
	if _, exists := s.finalizedDays[key]; exists {
		return nil
	}
	s.finalizedDays[key] = fin
	return nil
}

func (s *Store) IsDayFinalized(_ context.Context, tenantID, stationID string, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.finalizedDays[dayKey(tenantID, stationID, day)]
	return ok, nil
}

func (s *Store) CreateAlert(_ context.Context, alert domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *Store) ListAlerts(_ context.Context, tenantID string, limit int) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]domain.Alert, 0)
	for _, a := range s.alerts {
		if a.TenantID != tenantID {
			continue
		}
		alerts = append(alerts, a)
	}
	slices.SortStableFunc(alerts, func(a, b domain.Alert) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (s *Store) CreateFuelDelivery(_ context.Context, delivery domain.FuelDelivery) (*domain.FuelDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, delivery)
	created := delivery
	return &created, nil
}

func (s *Store) ListFuelDeliveries(_ context.Context, tenantID, stationID string) ([]domain.FuelDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deliveries := make([]domain.FuelDelivery, 0)
	for _, d := range s.deliveries {
		if d.TenantID != tenantID {
			continue
		}
		if stationID != "" && d.StationID != stationID {
			continue
		}
		deliveries = append(deliveries, d)
	}
	slices.SortStableFunc(deliveries, func(a, b domain.FuelDelivery) int {
		return b.DeliveredAt.Compare(a.DeliveredAt)
	})
	return deliveries, nil
}

func (s *Store) ListFuelInventory(_ context.Context, tenantID, stationID string) ([]domain.FuelInventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ stationID, fuelType string }
	levels := make(map[key]float64)
	for _, d := range s.deliveries {
		if d.TenantID != tenantID {
			continue
		}
		if stationID != "" && d.StationID != stationID {
			continue
		}
		levels[key{d.StationID, d.FuelType}] += d.Volume
	}
	for _, sale := range s.sales {
		if sale.TenantID != tenantID {
			continue
		}
		if stationID != "" && sale.StationID != stationID {
			continue
		}
		levels[key{sale.StationID, sale.FuelType}] -= sale.Volume
	}

	inventory := make([]domain.FuelInventory, 0, len(levels))
	for k, volume := range levels {
		inventory = append(inventory, domain.FuelInventory{
			StationID:     k.stationID,
			FuelType:      k.fuelType,
			CurrentVolume: volume,
		})
	}
	slices.SortFunc(inventory, func(a, b domain.FuelInventory) int {
		if a.StationID == b.StationID {
			return strings.Compare(a.FuelType, b.FuelType)
		}
		return strings.Compare(a.StationID, b.StationID)
	})
	return inventory, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByName[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByName[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := user
	return &found, nil
}

func (s *Store) ListUsers(_ context.Context, tenantID string) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByName))
	for _, u := range s.usersByName {
		if u.TenantID != tenantID {
			continue
		}
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}
