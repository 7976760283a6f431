package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fuelsync/backend/internal/domain"
	"fuelsync/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// readingTx adapts one serializable *sql.Tx to the ReadingTx interface.
// The nozzle row lock taken by NozzleInfo serializes submissions per
// nozzle while leaving other nozzles uncontended.
type readingTx struct {
	tx       *sql.Tx
	tenantID string
}

func (s *Store) SubmitReadingTx(ctx context.Context, tenantID string, fn func(tx store.ReadingTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&readingTx{tx: tx, tenantID: tenantID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reading: %w", err)
	}
	return nil
}

func (t *readingTx) NozzleInfo(ctx context.Context, nozzleID string) (*domain.NozzleInfo, error) {
	var info domain.NozzleInfo
	err := t.tx.QueryRowContext(ctx, `
		SELECT n.id, n.pump_id, p.station_id, n.fuel_type, n.status
		FROM nozzles n
		JOIN pumps p ON p.id = n.pump_id
		WHERE n.id = $1 AND n.tenant_id = $2
		FOR UPDATE OF n
	`, nozzleID, t.tenantID).Scan(&info.ID, &info.PumpID, &info.StationID, &info.FuelType, &info.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (t *readingTx) LastReading(ctx context.Context, nozzleID string) (float64, bool, error) {
	var value float64
	err := t.tx.QueryRowContext(ctx, `
		SELECT reading
		FROM nozzle_readings
		WHERE nozzle_id = $1 AND tenant_id = $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`, nozzleID, t.tenantID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

func (t *readingTx) IsDayFinalized(ctx context.Context, stationID string, day time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM day_finalizations
			WHERE tenant_id = $1 AND station_id = $2 AND day = $3::date
		)
	`, t.tenantID, stationID, day.UTC().Format("2006-01-02")).Scan(&exists)
	return exists, err
}

func (t *readingTx) InsertReading(ctx context.Context, reading domain.NozzleReading) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO nozzle_readings (id, tenant_id, nozzle_id, reading, recorded_at, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, reading.ID, t.tenantID, reading.NozzleID, reading.Reading, reading.RecordedAt)
	return err
}

func (t *readingTx) PriceAt(ctx context.Context, stationID, fuelType string, at time.Time) (*domain.FuelPrice, error) {
	var p domain.FuelPrice
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, tenant_id, station_id, fuel_type, price, valid_from
		FROM fuel_prices
		WHERE tenant_id = $1 AND station_id = $2 AND fuel_type = $3 AND valid_from <= $4
		ORDER BY valid_from DESC
		LIMIT 1
	`, t.tenantID, stationID, fuelType, at).Scan(&p.ID, &p.TenantID, &p.StationID, &p.FuelType, &p.Price, &p.ValidFrom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *readingTx) CreditorForUpdate(ctx context.Context, creditorID string) (*domain.Creditor, error) {
	var c domain.Creditor
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, tenant_id, party_name, balance, credit_limit, created_at
		FROM creditors
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE
	`, creditorID, t.tenantID).Scan(&c.ID, &c.TenantID, &c.PartyName, &c.Balance, &c.CreditLimit, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *readingTx) AddCreditorBalance(ctx context.Context, creditorID string, delta float64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE creditors SET balance = balance + $3
		WHERE id = $1 AND tenant_id = $2
	`, creditorID, t.tenantID, delta)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *readingTx) InsertSale(ctx context.Context, sale domain.Sale) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (id, tenant_id, nozzle_id, station_id, volume, fuel_type, fuel_price,
			amount, payment_method, creditor_id, created_by, recorded_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
	`, sale.ID, t.tenantID, sale.NozzleID, sale.StationID, sale.Volume, sale.FuelType, sale.FuelPrice,
		sale.Amount, sale.PaymentMethod, nullString(sale.CreditorID), sale.CreatedBy, sale.RecordedAt)
	return err
}

func (s *Store) GetNozzleInfo(ctx context.Context, tenantID, nozzleID string) (*domain.NozzleInfo, error) {
	var info domain.NozzleInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT n.id, n.pump_id, p.station_id, n.fuel_type, n.status
		FROM nozzles n
		JOIN pumps p ON p.id = n.pump_id
		WHERE n.id = $1 AND n.tenant_id = $2
	`, nozzleID, tenantID).Scan(&info.ID, &info.PumpID, &info.StationID, &info.FuelType, &info.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Store) ListReadings(ctx context.Context, tenantID string, filter domain.ReadingFilter) ([]domain.ReadingView, error) {
	query := strings.Builder{}
	query.WriteString(`
		WITH ordered AS (
			SELECT r.id, r.nozzle_id, p.station_id, r.reading, r.recorded_at,
				LAG(r.reading) OVER (PARTITION BY r.nozzle_id ORDER BY r.recorded_at) AS previous_reading
			FROM nozzle_readings r
			JOIN nozzles n ON n.id = r.nozzle_id
			JOIN pumps p ON p.id = n.pump_id
			WHERE r.tenant_id = $1
		)
		SELECT id, nozzle_id, station_id, reading, COALESCE(previous_reading, 0), recorded_at
		FROM ordered
		WHERE 1=1
	`)
	args := []any{tenantID}
	if filter.NozzleID != "" {
		args = append(args, filter.NozzleID)
		fmt.Fprintf(&query, " AND nozzle_id = $%d", len(args))
	}
	if filter.StationID != "" {
		args = append(args, filter.StationID)
		fmt.Fprintf(&query, " AND station_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&query, " AND recorded_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&query, " AND recorded_at <= $%d", len(args))
	}
	query.WriteString(" ORDER BY recorded_at DESC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]domain.ReadingView, 0, 64)
	for rows.Next() {
		var v domain.ReadingView
		if err := rows.Scan(&v.ID, &v.NozzleID, &v.StationID, &v.Reading, &v.PreviousReading, &v.RecordedAt); err != nil {
			return nil, err
		}
		v.Volume = v.Reading - v.PreviousReading
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s *Store) CreateStation(ctx context.Context, station domain.Station) (*domain.Station, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stations (id, tenant_id, name, address, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, station.ID, station.TenantID, station.Name, station.Address, station.Status, station.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := station
	return &created, nil
}

func (s *Store) GetStation(ctx context.Context, tenantID, stationID string) (*domain.Station, error) {
	var st domain.Station
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.tenant_id, s.name, s.address, s.status, s.created_at,
			(SELECT count(*) FROM pumps p WHERE p.station_id = s.id)
		FROM stations s
		WHERE s.id = $1 AND s.tenant_id = $2
	`, stationID, tenantID).Scan(&st.ID, &st.TenantID, &st.Name, &st.Address, &st.Status, &st.CreatedAt, &st.PumpCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) ListStations(ctx context.Context, tenantID string) ([]domain.Station, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.tenant_id, s.name, s.address, s.status, s.created_at,
			(SELECT count(*) FROM pumps p WHERE p.station_id = s.id)
		FROM stations s
		WHERE s.tenant_id = $1
		ORDER BY s.name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]domain.Station, 0, 16)
	for rows.Next() {
		var st domain.Station
		if err := rows.Scan(&st.ID, &st.TenantID, &st.Name, &st.Address, &st.Status, &st.CreatedAt, &st.PumpCount); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

func (s *Store) UpdateStation(ctx context.Context, station domain.Station) (*domain.Station, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stations SET name = $3, address = $4, status = $5
		WHERE id = $1 AND tenant_id = $2
	`, station.ID, station.TenantID, station.Name, station.Address, station.Status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := station
	return &updated, nil
}

func (s *Store) DeleteStation(ctx context.Context, tenantID, stationID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM stations WHERE id = $1 AND tenant_id = $2
	`, stationID, tenantID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pumps (id, tenant_id, station_id, name, serial_number, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, pump.ID, pump.TenantID, pump.StationID, pump.Name, pump.SerialNumber, pump.Status, pump.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := pump
	return &created, nil
}

func (s *Store) ListPumps(ctx context.Context, tenantID, stationID string) ([]domain.Pump, error) {
	query := `
		SELECT p.id, p.tenant_id, p.station_id, p.name, p.serial_number, p.status, p.created_at,
			(SELECT count(*) FROM nozzles n WHERE n.pump_id = p.id)
		FROM pumps p
		WHERE p.tenant_id = $1
	`
	args := []any{tenantID}
	if stationID != "" {
		query += " AND p.station_id = $2"
		args = append(args, stationID)
	}
	query += " ORDER BY p.name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pumps := make([]domain.Pump, 0, 16)
	for rows.Next() {
		var p domain.Pump
		if err := rows.Scan(&p.ID, &p.TenantID, &p.StationID, &p.Name, &p.SerialNumber, &p.Status, &p.CreatedAt, &p.NozzleCount); err != nil {
			return nil, err
		}
		pumps = append(pumps, p)
	}
	return pumps, rows.Err()
}

func (s *Store) GetPump(ctx context.Context, tenantID, pumpID string) (*domain.Pump, error) {
	var p domain.Pump
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.tenant_id, p.station_id, p.name, p.serial_number, p.status, p.created_at,
			(SELECT count(*) FROM nozzles n WHERE n.pump_id = p.id)
		FROM pumps p
		WHERE p.id = $1 AND p.tenant_id = $2
	`, pumpID, tenantID).Scan(&p.ID, &p.TenantID, &p.StationID, &p.Name, &p.SerialNumber, &p.Status, &p.CreatedAt, &p.NozzleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdatePump(ctx context.Context, pump domain.Pump) (*domain.Pump, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pumps SET name = $3, serial_number = $4, status = $5
		WHERE id = $1 AND tenant_id = $2
	`, pump.ID, pump.TenantID, pump.Name, pump.SerialNumber, pump.Status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := pump
	return &updated, nil
}

func (s *Store) DeletePump(ctx context.Context, tenantID, pumpID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM pumps WHERE id = $1 AND tenant_id = $2
	`, pumpID, tenantID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateNozzle(ctx context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error) {
	var pumpTenant string
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id FROM pumps WHERE id = $1
	`, nozzle.PumpID).Scan(&pumpTenant)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && pumpTenant != nozzle.TenantID) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO nozzles (id, tenant_id, pump_id, nozzle_number, fuel_type, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, nozzle.ID, nozzle.TenantID, nozzle.PumpID, nozzle.NozzleNumber, nozzle.FuelType, nozzle.Status, nozzle.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := nozzle
	return &created, nil
}

func (s *Store) GetNozzle(ctx context.Context, tenantID, nozzleID string) (*domain.Nozzle, error) {
	var n domain.Nozzle
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, pump_id, nozzle_number, fuel_type, status, created_at
		FROM nozzles
		WHERE id = $1 AND tenant_id = $2
	`, nozzleID, tenantID).Scan(&n.ID, &n.TenantID, &n.PumpID, &n.NozzleNumber, &n.FuelType, &n.Status, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListNozzles(ctx context.Context, tenantID, pumpID string) ([]domain.Nozzle, error) {
	query := `
		SELECT id, tenant_id, pump_id, nozzle_number, fuel_type, status, created_at
		FROM nozzles
		WHERE tenant_id = $1
	`
	args := []any{tenantID}
	if pumpID != "" {
		query += " AND pump_id = $2"
		args = append(args, pumpID)
	}
	query += " ORDER BY pump_id, nozzle_number"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nozzles := make([]domain.Nozzle, 0, 16)
	for rows.Next() {
		var n domain.Nozzle
		if err := rows.Scan(&n.ID, &n.TenantID, &n.PumpID, &n.NozzleNumber, &n.FuelType, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		nozzles = append(nozzles, n)
	}
	return nozzles, rows.Err()
}

func (s *Store) UpdateNozzle(ctx context.Context, nozzle domain.Nozzle) (*domain.Nozzle, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE nozzles SET fuel_type = $3, status = $4
		WHERE id = $1 AND tenant_id = $2
	`, nozzle.ID, nozzle.TenantID, nozzle.FuelType, nozzle.Status)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := nozzle
	return &updated, nil
}

func (s *Store) DeleteNozzle(ctx context.Context, tenantID, nozzleID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM nozzles WHERE id = $1 AND tenant_id = $2
	`, nozzleID, tenantID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateFuelPrice(ctx context.Context, price domain.FuelPrice) (*domain.FuelPrice, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_prices (id, tenant_id, station_id, fuel_type, price, valid_from, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, price.ID, price.TenantID, price.StationID, price.FuelType, price.Price, price.ValidFrom)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := price
	return &created, nil
}

func (s *Store) ListFuelPrices(ctx context.Context, tenantID, stationID string) ([]domain.FuelPrice, error) {
	query := `
		SELECT id, tenant_id, station_id, fuel_type, price, valid_from
		FROM fuel_prices
		WHERE tenant_id = $1
	`
	args := []any{tenantID}
	if stationID != "" {
		query += " AND station_id = $2"
		args = append(args, stationID)
	}
	query += " ORDER BY valid_from DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make([]domain.FuelPrice, 0, 16)
	for rows.Next() {
		var p domain.FuelPrice
		if err := rows.Scan(&p.ID, &p.TenantID, &p.StationID, &p.FuelType, &p.Price, &p.ValidFrom); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (s *Store) GetPriceAt(ctx context.Context, tenantID, stationID, fuelType string, at time.Time) (*domain.FuelPrice, error) {
	var p domain.FuelPrice
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, station_id, fuel_type, price, valid_from
		FROM fuel_prices
		WHERE tenant_id = $1 AND station_id = $2 AND fuel_type = $3 AND valid_from <= $4
		ORDER BY valid_from DESC
		LIMIT 1
	`, tenantID, stationID, fuelType, at).Scan(&p.ID, &p.TenantID, &p.StationID, &p.FuelType, &p.Price, &p.ValidFrom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateCreditor(ctx context.Context, creditor domain.Creditor) (*domain.Creditor, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO creditors (id, tenant_id, party_name, balance, credit_limit, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, creditor.ID, creditor.TenantID, creditor.PartyName, creditor.Balance, creditor.CreditLimit, creditor.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := creditor
	return &created, nil
}

func (s *Store) GetCreditor(ctx context.Context, tenantID, creditorID string) (*domain.Creditor, error) {
	var c domain.Creditor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, party_name, balance, credit_limit, created_at
		FROM creditors
		WHERE id = $1 AND tenant_id = $2
	`, creditorID, tenantID).Scan(&c.ID, &c.TenantID, &c.PartyName, &c.Balance, &c.CreditLimit, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCreditors(ctx context.Context, tenantID string) ([]domain.Creditor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, party_name, balance, credit_limit, created_at
		FROM creditors
		WHERE tenant_id = $1
		ORDER BY party_name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	creditors := make([]domain.Creditor, 0, 16)
	for rows.Next() {
		var c domain.Creditor
		if err := rows.Scan(&c.ID, &c.TenantID, &c.PartyName, &c.Balance, &c.CreditLimit, &c.CreatedAt); err != nil {
			return nil, err
		}
		creditors = append(creditors, c)
	}
	return creditors, rows.Err()
}

func (s *Store) AddCreditorPayment(ctx context.Context, tenantID, creditorID string, amount float64) (*domain.Creditor, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var c domain.Creditor
	err = tx.QueryRowContext(ctx, `
		SELECT id, tenant_id, party_name, balance, credit_limit, created_at
		FROM creditors
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE
	`, creditorID, tenantID).Scan(&c.ID, &c.TenantID, &c.PartyName, &c.Balance, &c.CreditLimit, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Balance -= amount
	if c.Balance < 0 {
		c.Balance = 0
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE creditors SET balance = $3 WHERE id = $1 AND tenant_id = $2
	`, creditorID, tenantID, c.Balance); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListSales(ctx context.Context, tenantID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, tenant_id, nozzle_id, station_id, volume, fuel_type, fuel_price,
			amount, payment_method, COALESCE(creditor_id, ''), created_by, recorded_at
		FROM sales
		WHERE tenant_id = $1
	`)
	args := []any{tenantID}
	if filter.NozzleID != "" {
		args = append(args, filter.NozzleID)
		fmt.Fprintf(&query, " AND nozzle_id = $%d", len(args))
	}
	if filter.StationID != "" {
		args = append(args, filter.StationID)
		fmt.Fprintf(&query, " AND station_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&query, " AND recorded_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&query, " AND recorded_at <= $%d", len(args))
	}
	query.WriteString(" ORDER BY recorded_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
		if filter.Page > 1 {
			args = append(args, (filter.Page-1)*filter.Limit)
			fmt.Fprintf(&query, " OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.TenantID, &sale.NozzleID, &sale.StationID, &sale.Volume,
			&sale.FuelType, &sale.FuelPrice, &sale.Amount, &sale.PaymentMethod, &sale.CreditorID,
			&sale.CreatedBy, &sale.RecordedAt); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) FinalizeDay(ctx context.Context, fin domain.DayFinalization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO day_finalizations (tenant_id, station_id, day, finalized_by, finalized_at)
		VALUES ($1,$2,$3::date,$4,$5)
		ON CONFLICT (tenant_id, station_id, day) DO NOTHING
	`, fin.TenantID, fin.StationID, fin.Day.UTC().Format("2006-01-02"), fin.FinalizedBy, fin.FinalizedAt)
	return err
}

func (s *Store) IsDayFinalized(ctx context.Context, tenantID, stationID string, day time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM day_finalizations
			WHERE tenant_id = $1 AND station_id = $2 AND day = $3::date
		)
	`, tenantID, stationID, day.UTC().Format("2006-01-02")).Scan(&exists)
	return exists, err
}

func (s *Store) CreateAlert(ctx context.Context, alert domain.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, tenant_id, station_id, type, message, severity, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, alert.ID, alert.TenantID, alert.StationID, alert.Type, alert.Message, alert.Severity, alert.CreatedAt)
	return err
}

func (s *Store) ListAlerts(ctx context.Context, tenantID string, limit int) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, station_id, type, message, severity, created_at
		FROM alerts
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]domain.Alert, 0, limit)
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.TenantID, &a.StationID, &a.Type, &a.Message, &a.Severity, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *Store) CreateFuelDelivery(ctx context.Context, delivery domain.FuelDelivery) (*domain.FuelDelivery, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_deliveries (id, tenant_id, station_id, fuel_type, volume, delivered_by, delivered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, delivery.ID, delivery.TenantID, delivery.StationID, delivery.FuelType, delivery.Volume,
		delivery.DeliveredBy, delivery.DeliveredAt)
	if err != nil {
		return nil, err
	}
	created := delivery
	return &created, nil
}

func (s *Store) ListFuelDeliveries(ctx context.Context, tenantID, stationID string) ([]domain.FuelDelivery, error) {
	query := `
		SELECT id, tenant_id, station_id, fuel_type, volume, delivered_by, delivered_at
		FROM fuel_deliveries
		WHERE tenant_id = $1
	`
	args := []any{tenantID}
	if stationID != "" {
		query += " AND station_id = $2"
		args = append(args, stationID)
	}
	query += " ORDER BY delivered_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := make([]domain.FuelDelivery, 0, 16)
	for rows.Next() {
		var d domain.FuelDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.StationID, &d.FuelType, &d.Volume, &d.DeliveredBy, &d.DeliveredAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func (s *Store) ListFuelInventory(ctx context.Context, tenantID, stationID string) ([]domain.FuelInventory, error) {
	query := `
		SELECT station_id, fuel_type, SUM(volume)
		FROM (
			SELECT station_id, fuel_type, volume FROM fuel_deliveries WHERE tenant_id = $1
			UNION ALL
			SELECT station_id, fuel_type, -volume FROM sales WHERE tenant_id = $1
		) movements
	`
	args := []any{tenantID}
	if stationID != "" {
		query += " WHERE station_id = $2"
		args = append(args, stationID)
	}
	query += " GROUP BY station_id, fuel_type ORDER BY station_id, fuel_type"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inventory := make([]domain.FuelInventory, 0, 8)
	for rows.Next() {
		var inv domain.FuelInventory
		if err := rows.Scan(&inv.StationID, &inv.FuelType, &inv.CurrentVolume); err != nil {
			return nil, err
		}
		inventory = append(inventory, inv)
	}
	return inventory, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.TenantID, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, username, password_hash, role, active, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.TenantID, &u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, tenantID string) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, username, password_hash, role, active, created_at
		FROM users
		WHERE tenant_id = $1
		ORDER BY username
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
