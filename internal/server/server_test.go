package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dyike/CryptoViewer/internal/advisor"
	"github.com/dyike/CryptoViewer/internal/exchange"
	"github.com/dyike/CryptoViewer/internal/models"
	"github.com/dyike/CryptoViewer/internal/service"
)

// upstream fakes the Coinbase APIs by path.
func upstream(t *testing.T, routes map[string]string, statuses map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		status := http.StatusOK
		if s, ok := statuses[r.URL.Path]; ok {
			status = s
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAPI(t *testing.T, coinbase *httptest.Server, enableAI bool) http.Handler {
	t.Helper()
	client := exchange.New(exchange.Options{
		BrokerageURL:  coinbase.URL,
		ExchangeURL:   coinbase.URL,
		QuoteCurrency: "GBP",
		Timeout:       2 * time.Second,
	})
	adv, err := advisor.New(advisor.Options{Enabled: enableAI})
	if err != nil {
		t.Fatalf("advisor.New: %v", err)
	}
	return New(Config{
		AllowedOrigin: "http://localhost:5173",
		Exchange:      client,
		Recommender:   service.NewRecommendations(client, adv, 2),
	}).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPortfolioEndToEnd(t *testing.T) {
	coinbase := upstream(t, map[string]string{
		"/api/v3/brokerage/accounts": `{"accounts":[{"uuid":"1","name":"BTC Wallet","currency":"BTC","type":"ACCOUNT_TYPE_CRYPTO","ready":true,"available_balance":{"value":"1.5","currency":"BTC"}}],"has_next":false}`,
	}, nil)

	rec := get(t, newAPI(t, coinbase, false), "/api/crypto/portfolio")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body)
	}
	want := `[{"currency":"BTC","balance":"1.5","available":"1.5"}]`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s; want %s", got, want)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestPortfolioUpstreamFailureIsEmptyList(t *testing.T) {
	coinbase := upstream(t, map[string]string{"/api/v3/brokerage/accounts": `oops`},
		map[string]int{"/api/v3/brokerage/accounts": 500})

	rec := get(t, newAPI(t, coinbase, false), "/api/crypto/portfolio")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("got %d %s; want 200 []", rec.Code, rec.Body)
	}
}

func TestPriceUnsupportedPairIsInBand(t *testing.T) {
	coinbase := upstream(t, map[string]string{"/products/XRP-GBP": `{"message":"NotFound"}`},
		map[string]int{"/products/XRP-GBP": 404})

	rec := get(t, newAPI(t, coinbase, false), "/api/crypto/price/XRP-GBP")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	var snap models.PriceSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Error == "" || !strings.Contains(snap.Error, "XRP-GBP") {
		t.Errorf("snapshot = %+v; want error naming the pair", snap)
	}
	var raw map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &raw)
	if _, ok := raw["price"]; ok {
		t.Errorf("body carries price with error: %s", rec.Body)
	}
}

func TestPrice(t *testing.T) {
	coinbase := upstream(t, map[string]string{
		"/products/ETH-GBP":                         `{"id":"ETH-GBP"}`,
		"/api/v3/brokerage/products/ETH-GBP/ticker": `{"trades":[{"price":"2500.10","time":"2024-03-15T12:00:00Z"}]}`,
	}, nil)

	rec := get(t, newAPI(t, coinbase, false), "/api/crypto/price/eth")
	want := `{"price":"2500.10","time":"2024-03-15T12:00:00Z"}`
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != want {
		t.Errorf("got %d %s; want 200 %s", rec.Code, rec.Body, want)
	}
}

func TestHistoricalFailureIsStatic500(t *testing.T) {
	coinbase := upstream(t, map[string]string{"/products/BTC-GBP/candles": `{"message":"secret upstream detail"}`},
		map[string]int{"/products/BTC-GBP/candles": 502})

	rec := get(t, newAPI(t, coinbase, false), "/api/crypto/historical/BTC-GBP")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rec.Code)
	}
	want := `{"detail":"Failed to fetch historical data for BTC-GBP"}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s; want %s", got, want)
	}
}

func TestHistorical(t *testing.T) {
	coinbase := upstream(t, map[string]string{
		"/products/BTC-GBP/candles": `[[1710500400,50000,50500,50100,50400,12.5]]`,
	}, nil)

	rec := get(t, newAPI(t, coinbase, false), "/api/crypto/historical/BTC-GBP")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body)
	}
	var points []models.CandlePoint
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 1 || points[0].Time != "2024-03-15T11:00:00Z" || points[0].Volume != "12.5" {
		t.Errorf("points = %+v", points)
	}
}

func TestRecommendationsEmptyPortfolio(t *testing.T) {
	coinbase := upstream(t, map[string]string{"/api/v3/brokerage/accounts": `{"accounts":[]}`}, nil)
	api := newAPI(t, coinbase, true)

	for _, path := range []string{"/api/recommendations/", "/api/recommendations/analysis"} {
		rec := get(t, api, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
		var body models.RecommendationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s decode: %v", path, err)
		}
		if body.Recommendations != service.NoHoldingsMessage {
			t.Errorf("%s recommendations = %q", path, body.Recommendations)
		}
	}
}

func TestRecommendationsDisabled(t *testing.T) {
	coinbase := upstream(t, map[string]string{
		"/api/v3/brokerage/accounts":                `[{"type":"ACCOUNT_TYPE_CRYPTO","ready":true,"available_balance":{"value":"2","currency":"ETH"}}]`,
		"/products/ETH-GBP/candles":                 `[[1710500400,1,2,3,4,5]]`,
		"/products/ETH-GBP":                         `{}`,
		"/api/v3/brokerage/products/ETH-GBP/ticker": `{"trades":[{"price":"4"}]}`,
	}, nil)
	api := newAPI(t, coinbase, false)

	for _, path := range []string{"/api/recommendations/", "/api/recommendations/analysis"} {
		rec := get(t, api, path)
		var body models.RecommendationResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if rec.Code != http.StatusOK || body.Recommendations != advisor.DisabledMessage {
			t.Errorf("%s = %d %q", path, rec.Code, body.Recommendations)
		}
	}
}

type panickyExchange struct{}

func (panickyExchange) FetchPortfolio(context.Context) []models.Holding { panic("portfolio") }
func (panickyExchange) FetchPrice(context.Context, string) models.PriceSnapshot {
	panic("price")
}
func (panickyExchange) FetchHistorical(context.Context, string) ([]models.CandlePoint, error) {
	return nil, errors.New("upstream detail")
}

type panickyRecommendations struct{}

func (panickyRecommendations) Recommend(context.Context) string { panic("recommend") }
func (panickyRecommendations) Analyze(context.Context) string   { panic("analyze") }

func TestPanicsBecomeStaticErrors(t *testing.T) {
	api := New(Config{Exchange: panickyExchange{}, Recommender: panickyRecommendations{}}).Handler()

	tests := map[string]string{
		"/api/crypto/portfolio":         `{"detail":"Failed to fetch portfolio"}`,
		"/api/crypto/price/DOGE-GBP":    `{"detail":"Failed to fetch price for DOGE-GBP"}`,
		"/api/crypto/historical/ADA":    `{"detail":"Failed to fetch historical data for ADA"}`,
		"/api/recommendations/":         `{"detail":"Failed to generate recommendations"}`,
		"/api/recommendations/analysis": `{"detail":"Failed to generate recommendations"}`,
	}
	for path, want := range tests {
		rec := get(t, api, path)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d; want 500", path, rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != want {
			t.Errorf("%s body = %s; want %s", path, got, want)
		}
	}
}

func TestStatusAndMetrics(t *testing.T) {
	api := New(Config{Exchange: panickyExchange{}, Recommender: panickyRecommendations{}}).Handler()

	rec := get(t, api, "/")
	want := `{"message":"Crypto Viewer API","status":"online","version":"1.0.0"}`
	if got := strings.TrimSpace(rec.Body.String()); rec.Code != http.StatusOK || got != want {
		t.Errorf("status route = %d %s", rec.Code, got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID")
	}

	rec = get(t, api, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Errorf("metrics route = %d", rec.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	api := New(Config{Exchange: panickyExchange{}, Recommender: panickyRecommendations{}}).Handler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	api := New(Config{AllowedOrigin: "http://localhost:5173", Exchange: panickyExchange{}, Recommender: panickyRecommendations{}}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/crypto/portfolio", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("allow credentials = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/crypto/portfolio", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec = httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestCORSRejectsWriteMethods(t *testing.T) {
	api := New(Config{AllowedOrigin: "http://localhost:5173", Exchange: panickyExchange{}, Recommender: panickyRecommendations{}}).Handler()

	for _, method := range []string{"POST", "PUT", "DELETE"} {
		req := httptest.NewRequest(http.MethodOptions, "/api/crypto/portfolio", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", method)
		rec := httptest.NewRecorder()
		api.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("preflight for %s allowed origin %q", method, got)
		}
	}
}
