package domain

import "time"

type Station struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Status    string    `json:"status"`
	PumpCount int       `json:"pump_count"`
	CreatedAt time.Time `json:"created_at"`
}

type StationCreateRequest struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type StationUpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
}

type Pump struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	StationID    string    `json:"station_id"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number,omitempty"`
	Status       string    `json:"status"`
	NozzleCount  int       `json:"nozzle_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type PumpCreateRequest struct {
	StationID    string `json:"station_id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number,omitempty"`
}

type PumpUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	SerialNumber *string `json:"serial_number,omitempty"`
	Status       *string `json:"status,omitempty"`
}

type Nozzle struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	PumpID       string    `json:"pump_id"`
	NozzleNumber int       `json:"nozzle_number"`
	FuelType     string    `json:"fuel_type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type NozzleCreateRequest struct {
	PumpID       string `json:"pump_id"`
	NozzleNumber int    `json:"nozzle_number"`
	FuelType     string `json:"fuel_type"`
}

type NozzleUpdateRequest struct {
	FuelType *string `json:"fuel_type,omitempty"`
	Status   *string `json:"status,omitempty"`
}

// NozzleInfo is the nozzle joined with its owning pump's station, the shape
// the ingestion engine needs. A nozzle that cannot be joined to a pump and
// station is a data integrity violation and is reported as not found.
type NozzleInfo struct {
	ID        string `json:"id"`
	PumpID    string `json:"pump_id"`
	StationID string `json:"station_id"`
	FuelType  string `json:"fuel_type"`
	Status    string `json:"status"`
}

// NozzleReading is a cumulative meter value captured from a nozzle.
// Rows are immutable once written.
type NozzleReading struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	NozzleID   string    `json:"nozzle_id"`
	Reading    float64   `json:"reading"`
	RecordedAt time.Time `json:"recorded_at"`
}

type ReadingInput struct {
	NozzleID      string    `json:"nozzle_id"`
	Reading       float64   `json:"reading"`
	RecordedAt    time.Time `json:"recorded_at"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CreditorID    string    `json:"creditor_id,omitempty"`
}

type ReadingFilter struct {
	NozzleID  string
	StationID string
	From      *time.Time
	To        *time.Time
}

// ReadingView is a reading joined with the immediately preceding reading
// for the same nozzle, exposing the dispensed delta.
type ReadingView struct {
	ID              string    `json:"id"`
	NozzleID        string    `json:"nozzle_id"`
	StationID       string    `json:"station_id"`
	Reading         float64   `json:"reading"`
	PreviousReading float64   `json:"previous_reading"`
	Volume          float64   `json:"volume"`
	RecordedAt      time.Time `json:"recorded_at"`
}

type CanSubmitResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// FuelPrice rows form a temporal price history per (station, fuel type);
// the price in effect at time T is the row with the latest valid_from <= T.
type FuelPrice struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	StationID string    `json:"station_id"`
	FuelType  string    `json:"fuel_type"`
	Price     float64   `json:"price"`
	ValidFrom time.Time `json:"valid_from"`
}

type FuelPriceCreateRequest struct {
	StationID string     `json:"station_id"`
	FuelType  string     `json:"fuel_type"`
	Price     float64    `json:"price"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
}

// Sale is derived from an accepted reading: exactly one Sale per reading,
// never updated independently.
type Sale struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	NozzleID      string    `json:"nozzle_id"`
	StationID     string    `json:"station_id"`
	Volume        float64   `json:"volume"`
	FuelType      string    `json:"fuel_type"`
	FuelPrice     float64   `json:"fuel_price"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	CreditorID    string    `json:"creditor_id,omitempty"`
	CreatedBy     string    `json:"created_by"`
	RecordedAt    time.Time `json:"recorded_at"`
}

type SaleFilter struct {
	NozzleID  string
	StationID string
	From      *time.Time
	To        *time.Time
	Limit     int
	Page      int
}

type Creditor struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	PartyName   string    `json:"party_name"`
	Balance     float64   `json:"balance"`
	CreditLimit float64   `json:"credit_limit"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreditorCreateRequest struct {
	PartyName   string  `json:"party_name"`
	CreditLimit float64 `json:"credit_limit"`
}

type CreditPaymentRequest struct {
	Amount float64 `json:"amount"`
}

type Alert struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	StationID string    `json:"station_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

type FuelDelivery struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	StationID   string    `json:"station_id"`
	FuelType    string    `json:"fuel_type"`
	Volume      float64   `json:"volume"`
	DeliveredBy string    `json:"delivered_by,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type FuelDeliveryCreateRequest struct {
	StationID   string     `json:"station_id"`
	FuelType    string     `json:"fuel_type"`
	Volume      float64    `json:"volume"`
	DeliveredBy string     `json:"delivered_by,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// FuelInventory is derived: tank level = total delivered - total sold.
type FuelInventory struct {
	StationID     string  `json:"station_id"`
	FuelType      string  `json:"fuel_type"`
	CurrentVolume float64 `json:"current_volume"`
}

type DayFinalization struct {
	TenantID    string    `json:"tenant_id"`
	StationID   string    `json:"station_id"`
	Day         time.Time `json:"day"`
	FinalizedBy string    `json:"finalized_by"`
	FinalizedAt time.Time `json:"finalized_at"`
}

type FinalizeDayRequest struct {
	StationID string `json:"station_id"`
	Date      string `json:"date"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TenantID    string `json:"tenant_id"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated caller: every operation runs in its tenant scope.
type Actor struct {
	UserID   string
	TenantID string
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	TenantID  string
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodUPI    = "upi"
	PaymentMethodCredit = "credit"
)

const (
	NozzleStatusActive      = "active"
	NozzleStatusInactive    = "inactive"
	NozzleStatusMaintenance = "maintenance"
)

const (
	StationStatusActive   = "active"
	StationStatusInactive = "inactive"
)

const (
	AlertTypeCreditNearLimit = "credit_near_limit"

	AlertSeverityInfo    = "info"
	AlertSeverityWarning = "warning"
	AlertSeverityError   = "error"
)

const (
	RoleOwner     = "owner"
	RoleManager   = "manager"
	RoleAttendant = "attendant"
)

// IsSupportedPaymentMethod reports whether m is one of the accepted
// payment method values.
func IsSupportedPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodUPI, PaymentMethodCredit:
		return true
	}
	return false
}
