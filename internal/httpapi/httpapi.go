package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"fuelsync/backend/internal/domain"
	"fuelsync/backend/internal/service"
	"fuelsync/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.withMiddleware)

	r.Get("/healthz", a.handleHealth)
	r.Post("/api/v1/auth/login", a.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.requireAuth)

		r.Post("/readings", a.handleSubmitReading)
		r.Get("/readings", a.handleListReadings)
		r.Get("/readings/can-submit", a.handleCanSubmitReading)

		r.Post("/stations", a.handleCreateStation)
		r.Get("/stations", a.handleListStations)
		r.Get("/stations/{stationID}", a.handleGetStation)
		r.Patch("/stations/{stationID}", a.handleUpdateStation)
		r.Delete("/stations/{stationID}", a.handleDeleteStation)

		r.Post("/pumps", a.handleCreatePump)
		r.Get("/pumps", a.handleListPumps)
		r.Patch("/pumps/{pumpID}", a.handleUpdatePump)
		r.Delete("/pumps/{pumpID}", a.handleDeletePump)

		r.Post("/nozzles", a.handleCreateNozzle)
		r.Get("/nozzles", a.handleListNozzles)
		r.Get("/nozzles/{nozzleID}", a.handleGetNozzle)
		r.Patch("/nozzles/{nozzleID}", a.handleUpdateNozzle)
		r.Delete("/nozzles/{nozzleID}", a.handleDeleteNozzle)

		r.Post("/fuel-prices", a.handleCreateFuelPrice)
		r.Get("/fuel-prices", a.handleListFuelPrices)

		r.Post("/creditors", a.handleCreateCreditor)
		r.Get("/creditors", a.handleListCreditors)
		r.Get("/creditors/{creditorID}", a.handleGetCreditor)
		r.Post("/creditors/{creditorID}/payments", a.handleCreditPayment)

		r.Get("/sales", a.handleListSales)

		r.Post("/reconciliation/finalize", a.handleFinalizeDay)
		r.Get("/reconciliation/status", a.handleReconciliationStatus)

		r.Post("/fuel-deliveries", a.handleCreateFuelDelivery)
		r.Get("/fuel-deliveries", a.handleListFuelDeliveries)
		r.Get("/fuel-inventory", a.handleListFuelInventory)

		r.Get("/alerts", a.handleListAlerts)
	})

	return r
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func actorFrom(r *http.Request) domain.Actor {
	actor, _ := service.ActorFromContext(r.Context())
	return actor
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var input domain.ReadingInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	readingID, err := a.service.SubmitReading(r.Context(), actor.TenantID, input, actor.UserID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": readingID})
}

func (a *API) handleListReadings(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	filter := domain.ReadingFilter{
		NozzleID:  r.URL.Query().Get("nozzleId"),
		StationID: r.URL.Query().Get("stationId"),
	}
	var err error
	if filter.From, err = parseTimeParam(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.To, err = parseTimeParam(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	readings, err := a.service.ListReadings(r.Context(), actor.TenantID, filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func (a *API) handleCanSubmitReading(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	result, err := a.service.CanSubmitReading(r.Context(), actor.TenantID, r.URL.Query().Get("nozzleId"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleCreateStation(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.StationCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	station, err := a.service.CreateStation(r.Context(), actor.TenantID, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, station)
}

func (a *API) handleGetStation(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	station, err := a.service.GetStation(r.Context(), actor.TenantID, chi.URLParam(r, "stationID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (a *API) handleListStations(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	stations, err := a.service.ListStations(r.Context(), actor.TenantID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": stations})
}

func (a *API) handleUpdateStation(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.StationUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	station, err := a.service.UpdateStation(r.Context(), actor.TenantID, chi.URLParam(r, "stationID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (a *API) handleDeleteStation(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	if err := a.service.DeleteStation(r.Context(), actor.TenantID, chi.URLParam(r, "stationID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreatePump(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.PumpCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pump, err := a.service.CreatePump(r.Context(), actor.TenantID, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pump)
}

func (a *API) handleListPumps(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	pumps, err := a.service.ListPumps(r.Context(), actor.TenantID, r.URL.Query().Get("stationId"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pumps": pumps})
}

func (a *API) handleUpdatePump(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.PumpUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pump, err := a.service.UpdatePump(r.Context(), actor.TenantID, chi.URLParam(r, "pumpID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pump)
}

func (a *API) handleDeletePump(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	if err := a.service.DeletePump(r.Context(), actor.TenantID, chi.URLParam(r, "pumpID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateNozzle(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.NozzleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	nozzle, err := a.service.CreateNozzle(r.Context(), actor.TenantID, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nozzle)
}

func (a *API) handleGetNozzle(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	nozzle, err := a.service.GetNozzle(r.Context(), actor.TenantID, chi.URLParam(r, "nozzleID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nozzle)
}

func (a *API) handleListNozzles(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	nozzles, err := a.service.ListNozzles(r.Context(), actor.TenantID, r.URL.Query().Get("pumpId"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nozzles": nozzles})
}

func (a *API) handleUpdateNozzle(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.NozzleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	nozzle, err := a.service.UpdateNozzle(r.Context(), actor.TenantID, chi.URLParam(r, "nozzleID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nozzle)
}

func (a *API) handleDeleteNozzle(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	if err := a.service.DeleteNozzle(r.Context(), actor.TenantID, chi.URLParam(r, "nozzleID")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCreateFuelPrice(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.FuelPriceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	price, err := a.service.CreateFuelPrice(r.Context(), actor.TenantID, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, price)
}

func (a *API) handleListFuelPrices(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	prices, err := a.service.ListFuelPrices(r.Context(), actor.TenantID, r.URL.Query().Get("stationId"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

func (a *API) handleCreateCreditor(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.CreditorCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	creditor, err := a.service.CreateCreditor(r.Context(), actor.TenantID, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, creditor)
}

func (a *API) handleListCreditors(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	creditors, err := a.service.ListCreditors(r.Context(), actor.TenantID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"creditors": creditors})
}

func (a *API) handleGetCreditor(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	creditor, err := a.service.GetCreditor(r.Context(), actor.TenantID, chi.URLParam(r, "creditorID"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creditor)
}

func (a *API) handleCreditPayment(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.CreditPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	creditor, err := a.service.RecordCreditPayment(r.Context(), actor.TenantID, chi.URLParam(r, "creditorID"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creditor)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	filter := domain.SaleFilter{
		NozzleID:  r.URL.Query().Get("nozzleId"),
		StationID: r.URL.Query().Get("stationId"),
		Limit:     parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500),
		Page:      parsePositiveLimit(r.URL.Query().Get("page"), 1, 0),
	}
	var err error
	if filter.From, err = parseTimeParam(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.To, err = parseTimeParam(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sales, err := a.service.ListSales(r.Context(), actor.TenantID, filter)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleFinalizeDay(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.FinalizeDayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	fin, err := a.service.FinalizeDay(r.Context(), actor.TenantID, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fin)
}

func (a *API) handleReconciliationStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("date must be YYYY-MM-DD"))
		return
	}

	finalized, err := a.service.IsDayFinalized(r.Context(), actor.TenantID, r.URL.Query().Get("stationId"), day)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"finalized": finalized})
}

func (a *API) handleCreateFuelDelivery(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req domain.FuelDeliveryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	delivery, err := a.service.CreateFuelDelivery(r.Context(), actor.TenantID, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, delivery)
}

func (a *API) handleListFuelDeliveries(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	deliveries, err := a.service.ListFuelDeliveries(r.Context(), actor.TenantID, r.URL.Query().Get("stationId"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": deliveries})
}

func (a *API) handleListFuelInventory(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	inventory, err := a.service.ListFuelInventory(r.Context(), actor.TenantID, r.URL.Query().Get("stationId"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory": inventory})
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	alerts, err := a.service.ListAlerts(r.Context(), actor.TenantID, parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// writeServiceError maps domain failures onto HTTP statuses: unknown
// references are 404, malformed input 400, business-rule rejections 422,
// dependent-row conflicts 409.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrNozzleInactive),
		errors.Is(err, service.ErrReadingOutOfOrder),
		errors.Is(err, service.ErrPeriodClosed),
		errors.Is(err, service.ErrPriceMissing),
		errors.Is(err, service.ErrPriceStale),
		errors.Is(err, service.ErrCreditLimitExceeded):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.New(name + " must be RFC3339")
	}
	return &ts, nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx details stay in the log; clients get a generic message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
