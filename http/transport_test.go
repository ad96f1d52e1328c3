package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitfolio/domain"
	"orbitfolio/fxrates"
	"orbitfolio/ledger"
	"orbitfolio/pricing"
)

type mock struct {
	snapshot   fxrates.Snapshot
	refreshErr error
	refreshes  int
	refreshCtx context.Context
}

func (m *mock) Snapshot() fxrates.Snapshot {
	return m.snapshot
}

func (m *mock) Refresh(ctx context.Context) error {
	m.refreshes++
	m.refreshCtx = ctx
	return m.refreshErr
}

func table() *fxrates.Table {
	return &fxrates.Table{
		Factors:   domain.Rates{domain.INR: domain.Rate(1.0 / 83), domain.CAD: 0.8},
		FetchedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(rates *mock) *Server {
	return NewServer(ledger.NewService(pricing.Fixed{}), rates, log.NewNopLogger())
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	s.ServeHTTP(w, r)
	return w
}

func TestServer_AddHolding(t *testing.T) {
	server := newTestServer(&mock{})

	w := do(server, "POST", "/api/holdings",
		`{"label":"TCS","class":"equity","zone":"india","quantity":"10","avg_price":"100"}`)

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1.0, got["id"])
	assert.Equal(t, "TCS", got["label"])
	assert.Equal(t, "INR", got["currency"])
	assert.Equal(t, 100.0, got["current_price"])
	assert.Equal(t, 1, server.Ledger.Len())
}

func TestServer_AddHoldingValidation(t *testing.T) {
	server := newTestServer(&mock{})

	w := do(server, "POST", "/api/holdings",
		`{"label":"TCS","class":"equity","zone":"india","quantity":"0","avg_price":"100"}`)

	assert.Equal(t, 400, w.Code)
	assert.JSONEq(t, `{"error":"invalid quantity: must be a number greater than 0","field":"quantity"}`, w.Body.String())
	assert.Equal(t, 0, server.Ledger.Len())

	w = do(server, "POST", "/api/holdings", `{"label":`)
	assert.Equal(t, 400, w.Code)
	assert.JSONEq(t, `{"error":"invalid json"}`, w.Body.String())
}

func TestServer_RemoveHolding(t *testing.T) {
	server := newTestServer(&mock{})
	_, err := server.Ledger.Add(ledger.Draft{Label: "AAPL", Class: domain.Equity, Zone: domain.US, Quantity: 1, AvgPrice: 10})
	require.NoError(t, err)

	assert.Equal(t, 204, do(server, "DELETE", "/api/holdings/1", "").Code)
	assert.Equal(t, 0, server.Ledger.Len())
	assert.Equal(t, 204, do(server, "DELETE", "/api/holdings/1", "").Code)
	assert.Equal(t, 400, do(server, "DELETE", "/api/holdings/abc", "").Code)
}

func TestServer_ListHoldings(t *testing.T) {
	server := newTestServer(&mock{})
	for _, label := range []string{"TCS", "SHOP"} {
		_, err := server.Ledger.Add(ledger.Draft{Label: label, Class: domain.Equity, Zone: domain.Canada, Quantity: 1, AvgPrice: 10})
		require.NoError(t, err)
	}

	w := do(server, "GET", "/api/holdings", "")

	assert.Equal(t, 200, w.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "TCS", got[0]["label"])
	assert.Equal(t, "SHOP", got[1]["label"])
	assert.Equal(t, "CAD", got[1]["currency"])
}

func TestServer_PortfolioWithRates(t *testing.T) {
	server := newTestServer(&mock{snapshot: fxrates.Snapshot{Table: table(), Status: fxrates.StatusSucceeded}})
	_, err := server.Ledger.Add(ledger.Draft{Label: "TCS", Class: domain.Equity, Zone: domain.India, Quantity: 10, AvgPrice: 100})
	require.NoError(t, err)

	w := do(server, "GET", "/api/portfolio", "")

	assert.Equal(t, 200, w.Code)
	var got struct {
		Available   bool   `json:"available"`
		RatesStatus string `json:"rates_status"`
		Totals      *struct {
			Invested float64           `json:"invested"`
			Display  map[string]string `json:"display"`
		} `json:"totals"`
		Positions []struct {
			Native struct {
				Invested float64 `json:"invested"`
			} `json:"native"`
			Reporting *struct {
				Invested float64 `json:"invested"`
			} `json:"reporting"`
		} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Available)
	assert.Equal(t, "succeeded", got.RatesStatus)
	require.NotNil(t, got.Totals)
	assert.InDelta(t, 1000.0/83, got.Totals.Invested, 1e-9)
	assert.Equal(t, "$12.05", got.Totals.Display["invested"])
	require.Len(t, got.Positions, 1)
	assert.Equal(t, 1000.0, got.Positions[0].Native.Invested)
	require.NotNil(t, got.Positions[0].Reporting)
}

func TestServer_PortfolioWithoutRates(t *testing.T) {
	server := newTestServer(&mock{snapshot: fxrates.Snapshot{Status: fxrates.StatusFailed}})
	_, err := server.Ledger.Add(ledger.Draft{Label: "TCS", Class: domain.Equity, Zone: domain.India, Quantity: 10, AvgPrice: 100})
	require.NoError(t, err)

	w := do(server, "GET", "/api/portfolio", "")

	assert.Equal(t, 200, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, false, got["available"])
	assert.Nil(t, got["totals"])
	positions := got["positions"].([]interface{})
	require.Len(t, positions, 1)
	position := positions[0].(map[string]interface{})
	assert.Nil(t, position["reporting"])
	assert.Equal(t, 1000.0, position["native"].(map[string]interface{})["invested"])
}

func TestServer_Rates(t *testing.T) {
	tbl := table()
	tbl.Factors = domain.Rates{domain.INR: 0.0125, domain.CAD: 0.8}
	server := newTestServer(&mock{snapshot: fxrates.Snapshot{Table: tbl, Status: fxrates.StatusFailed, LastError: "boom"}})

	w := do(server, "GET", "/api/rates", "")

	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, `{
		"reporting_currency": "USD",
		"status": "failed",
		"stale": false,
		"last_error": "boom",
		"fetched_at": "2024-03-01T12:00:00Z",
		"factors": {"INR": 0.0125, "CAD": 0.8}
	}`, w.Body.String())
}

func TestServer_RatesNeverFetched(t *testing.T) {
	server := newTestServer(&mock{snapshot: fxrates.Snapshot{Status: fxrates.StatusNotFetched}})

	w := do(server, "GET", "/api/rates", "")

	assert.JSONEq(t, `{"reporting_currency":"USD","status":"not_fetched","stale":false,"fetched_at":null,"factors":null}`, w.Body.String())
}

func TestServer_RefreshRates(t *testing.T) {
	rates := &mock{snapshot: fxrates.Snapshot{Status: fxrates.StatusFailed}, refreshErr: errors.New("down")}
	server := newTestServer(rates)

	w := do(server, "POST", "/api/rates/refresh", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 1, rates.refreshes)

	rates.refreshErr = fxrates.ErrStopped
	w = do(server, "POST", "/api/rates/refresh", "")
	assert.Equal(t, 503, w.Code)
}

func TestServer_RefreshRatesOutlivesClient(t *testing.T) {
	rates := &mock{snapshot: fxrates.Snapshot{Status: fxrates.StatusSucceeded, Table: table()}}
	server := newTestServer(rates)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/rates/refresh", nil).WithContext(ctx)
	server.ServeHTTP(w, r)

	assert.Equal(t, 200, w.Code)
	require.NotNil(t, rates.refreshCtx)
	assert.NoError(t, rates.refreshCtx.Err())
}

func TestServer_AddHoldingOverflowingCost(t *testing.T) {
	server := newTestServer(&mock{})

	w := do(server, "POST", "/api/holdings",
		`{"label":"BIG","class":"equity","zone":"us","quantity":"1e200","avg_price":"1e200"}`)

	assert.Equal(t, 400, w.Code)
	var got errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "quantity", got.Field)
	assert.Equal(t, 0, server.Ledger.Len())
}

func TestServer_PortfolioOverflowingTotals(t *testing.T) {
	server := newTestServer(&mock{snapshot: fxrates.Snapshot{Table: table(), Status: fxrates.StatusSucceeded}})
	for _, label := range []string{"A", "B"} {
		_, err := server.Ledger.Add(ledger.Draft{Label: label, Class: domain.Equity, Zone: domain.US, Quantity: 1, AvgPrice: 1e308})
		require.NoError(t, err)
	}

	w := do(server, "GET", "/api/portfolio", "")

	assert.Equal(t, 200, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), "body: %q", w.Body.String())
	assert.Equal(t, false, got["available"])
	assert.Nil(t, got["totals"])
	assert.Nil(t, got["by_zone"].(map[string]interface{})["us"])
	assert.Len(t, got["positions"], 2)
}

func TestServer_WriteJSONEncodingFailure(t *testing.T) {
	var buf bytes.Buffer
	server := NewServer(ledger.NewService(pricing.Fixed{}), &mock{}, log.NewLogfmtLogger(&buf))

	w := httptest.NewRecorder()
	server.writeJSON(w, 200, map[string]float64{"v": math.Inf(1)})

	assert.Equal(t, 500, w.Code)
	assert.JSONEq(t, `{"error":"failed to encode response"}`, w.Body.String())
	assert.Contains(t, buf.String(), "encoding response")
}
