package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/portfolio-hub/invest-tracker/internal/config"
	"github.com/portfolio-hub/invest-tracker/internal/engine"
	"github.com/portfolio-hub/invest-tracker/internal/logger"
	"github.com/portfolio-hub/invest-tracker/internal/marketdata"
	"github.com/portfolio-hub/invest-tracker/internal/model"
	"github.com/portfolio-hub/invest-tracker/internal/store"
)

// quotes is the fake market data service the client talks to.
var quotes = map[string]struct {
	price     string
	prevClose string
}{
	"AAPL": {"150", "140"},
	"SPY":  {"402", "400"},
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	md := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		symbol := r.URL.Query().Get("symbol")
		q, ok := quotes[symbol]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"message":"unknown symbol %s"}`, symbol)
			return
		}
		switch r.URL.Path {
		case "/v1/quote":
			fmt.Fprintf(w, `{"symbol":%q,"price":%s,"prev_close":%s}`, symbol, q.price, q.prevClose)
		case "/v1/history":
			fmt.Fprintf(w, `{"symbol":%q,"points":[{"ts":"2024-03-01T00:00:00Z","price":%s}]}`, symbol, q.price)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(md.Close)

	log := logger.NewNopLogger()
	mdClient := marketdata.NewClient(config.MarketDataConfig{
		Address:           md.URL,
		RequestsPerMinute: 10000,
		Timeout:           5 * time.Second,
	}, log)

	catalog := []model.Instrument{{Symbol: "AAPL", Name: "Apple Inc.", Market: "NASDAQ"}}
	eng := engine.NewEngine(store.NewMemStore(), catalog, log)
	return NewHandler(eng, mdClient, "SPY", 5*time.Second, log).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestBuySellFlow(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/portfolios/p1/buy", `{"symbol":"aapl","quantity":10,"price":100}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("buy status = %d body = %s", w.Code, w.Body)
	}
	var res engine.TradeResult
	if err := sonic.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Position == nil || res.Position.Symbol != "AAPL" || res.Position.Name != "Apple Inc." {
		t.Fatalf("position = %+v", res.Position)
	}

	w = do(t, h, http.MethodPost, "/api/portfolios/p1/sell", `{"symbol":"AAPL","all":true,"price":110}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("sell status = %d body = %s", w.Code, w.Body)
	}
	if err := sonic.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Removed {
		t.Fatalf("sell all result = %+v", res)
	}

	w = do(t, h, http.MethodGet, "/api/portfolios/p1/positions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("positions status = %d", w.Code)
	}
	var positions []model.Position
	if err := sonic.Unmarshal(w.Body.Bytes(), &positions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("positions = %+v", positions)
	}
}

func TestLedgerNewestFirst(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodPost, "/api/portfolios/p1/buy", `{"symbol":"AAPL","quantity":1,"price":100}`)
	do(t, h, http.MethodPost, "/api/portfolios/p1/buy", `{"symbol":"AAPL","quantity":1,"price":110}`)

	w := do(t, h, http.MethodGet, "/api/portfolios/p1/ledger?symbol=AAPL", "")
	if w.Code != http.StatusOK {
		t.Fatalf("ledger status = %d", w.Code)
	}
	var entries []model.LedgerEntry
	if err := sonic.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].ID <= entries[1].ID {
		t.Fatalf("ledger must be newest-first, got %+v", entries)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/api/portfolios/p1/buy", `{"symbol":"AAPL","quantity":10,"price":100}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"zero quantity", http.MethodPost, "/api/portfolios/p1/buy", `{"symbol":"AAPL","quantity":0,"price":1}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/portfolios/p1/buy", `{`, http.StatusBadRequest},
		{"oversell", http.MethodPost, "/api/portfolios/p1/sell", `{"symbol":"AAPL","quantity":99,"price":1}`, http.StatusConflict},
		{"unknown position", http.MethodPost, "/api/portfolios/p1/sell", `{"symbol":"TSLA","quantity":1,"price":1}`, http.StatusNotFound},
		{"empty report", http.MethodGet, "/api/portfolios/ghost/report", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestReportEndpoint(t *testing.T) {
	h := newTestServer(t)
	do(t, h, http.MethodPost, "/api/portfolios/p1/buy", `{"symbol":"AAPL","quantity":10,"price":100}`)

	w := do(t, h, http.MethodGet, "/api/portfolios/p1/report", "")
	if w.Code != http.StatusOK {
		t.Fatalf("report status = %d body = %s", w.Code, w.Body)
	}
	var report model.PortfolioReport
	if err := sonic.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Lines) != 1 || report.Lines[0].LookupErr != "" {
		t.Fatalf("report = %+v", report)
	}
	if report.Benchmark == nil || report.Benchmark.Symbol != "SPY" {
		t.Fatalf("benchmark = %+v", report.Benchmark)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/history/AAPL?range=1mo", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d body = %s", w.Code, w.Body)
	}
	var points []model.PricePoint
	if err := sonic.Unmarshal(w.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("points = %+v", points)
	}
}
