package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fuelsync/backend/internal/cache"
	"fuelsync/backend/internal/service"
	"fuelsync/backend/internal/store/memory"
)

// newTestAPI builds a full API with the seeded in-memory store, real
// AuthManager and real Service so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopPriceCache{}, 5*time.Second)
	auth := NewAuthManager("test-secret-key-at-least-32-chars!!", time.Hour, repo)
	return New(svc, auth, "*").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	token, _ := resp["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, true, body["ok"])
}

func TestLoginIssuesTenantScopedToken(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "owner",
		"password": "owner123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "tenant-demo", resp["tenant_id"])
	require.Equal(t, "owner", resp["role"])
	require.NotEmpty(t, resp["access_token"])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "owner",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/readings", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/readings", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitReadingEndToEnd(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "owner", "owner123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/readings", token, map[string]any{
		"nozzle_id":   "nozzle-1",
		"reading":     120.5,
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotEmpty(t, created["id"])

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/readings?nozzleId=nozzle-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Readings []map[string]any `json:"readings"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	require.Len(t, listed.Readings, 1)
	require.InDelta(t, 120.5, listed.Readings[0]["volume"].(float64), 1e-9)

	// The seeded petrol price is 102.50, so the derived sale is 12351.25.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sales struct {
		Sales []map[string]any `json:"sales"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sales))
	require.Len(t, sales.Sales, 1)
	require.InDelta(t, 12351.25, sales.Sales[0]["amount"].(float64), 1e-9)
	require.Equal(t, "cash", sales.Sales[0]["payment_method"])
}

func TestSubmitReadingOutOfOrderIs422(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "owner", "owner123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/readings", token, map[string]any{
		"nozzle_id":   "nozzle-1",
		"reading":     100,
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/readings", token, map[string]any{
		"nozzle_id":   "nozzle-1",
		"reading":     99,
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCanSubmitEndpoint(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "attendant", "attendant123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/readings/can-submit?nozzleId=nozzle-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, true, result["allowed"])

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/readings/can-submit?nozzleId=missing", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, false, result["allowed"])
	require.Equal(t, "Invalid nozzle", result["reason"])
}

func TestAttendantCannotCreateStation(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "attendant", "attendant123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/stations", token, map[string]string{
		"name": "New Station",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownStationIs404(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "owner", "owner123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/stations/does-not-exist", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStationLifecycle(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "manager", "manager123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/stations", token, map[string]string{
		"name":    "North Station",
		"address": "Ring Road",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var station map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&station))
	stationID := station["id"].(string)

	rec = doJSON(t, handler, http.MethodPatch, fmt.Sprintf("/api/v1/stations/%s", stationID), token, map[string]string{
		"name": "North Station Renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&station))
	require.Equal(t, "North Station Renamed", station["name"])

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/api/v1/stations/%s", stationID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Deleting the seeded station with pumps attached conflicts.
	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/stations/station-1", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreditSaleOverLimitIs422(t *testing.T) {
	handler := newTestAPI(t)
	token := login(t, handler, "owner", "owner123")

	// The seeded creditor has a 10000 limit; 120 litres of petrol at
	// 102.50 is 12300.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/readings", token, map[string]any{
		"nozzle_id":   "nozzle-1",
		"reading":     120,
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
		"creditor_id": "creditor-1",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestLoginRateLimit(t *testing.T) {
	handler := newTestAPI(t)

	var last int
	for i := 0; i < 7; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "owner",
			"password": "wrong",
		})
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}
