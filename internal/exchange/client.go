package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dyike/CryptoViewer/config"
	"github.com/dyike/CryptoViewer/internal/logger"
	"github.com/dyike/CryptoViewer/internal/metrics"
	"github.com/dyike/CryptoViewer/internal/models"
)

const (
	accountsPageLimit = 250
	defaultMaxPages   = 50
	candleGranularity = 3600
	historyWindow     = 24 * time.Hour
)

// Options configures a Client. Zero values fall back to production defaults.
type Options struct {
	BrokerageURL  string
	ExchangeURL   string
	QuoteCurrency string
	Timeout       time.Duration
	Signer        Signer
	MaxPages      int
	Now           func() time.Time
}

// Client talks to the Coinbase Advanced Trade API (authenticated account and
// trade data) and the public Exchange API (product probe and candles).
type Client struct {
	brokerage     *resty.Client
	exchange      *resty.Client
	brokerageHost string
	quote         string
	signer        Signer
	maxPages      int
	now           func() time.Time
}

// New creates a Client from opts.
func New(opts Options) *Client {
	if opts.BrokerageURL == "" {
		opts.BrokerageURL = "https://api.coinbase.com"
	}
	if opts.ExchangeURL == "" {
		opts.ExchangeURL = "https://api.exchange.coinbase.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	brokerage := resty.New()
	brokerage.SetBaseURL(strings.TrimRight(opts.BrokerageURL, "/"))
	brokerage.SetTimeout(opts.Timeout)
	brokerage.SetHeader("Accept", "application/json")

	exchange := resty.New()
	exchange.SetBaseURL(strings.TrimRight(opts.ExchangeURL, "/"))
	exchange.SetTimeout(opts.Timeout)
	exchange.SetHeader("Accept", "application/json")

	host := opts.BrokerageURL
	if u, err := url.Parse(opts.BrokerageURL); err == nil && u.Host != "" {
		host = u.Host
	}

	return &Client{
		brokerage:     brokerage,
		exchange:      exchange,
		brokerageHost: host,
		quote:         opts.QuoteCurrency,
		signer:        opts.Signer,
		maxPages:      opts.MaxPages,
		now:           opts.Now,
	}
}

// NewFromConfig builds a signed Client. It fails when the Coinbase
// credentials are missing or unparsable.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	if err := cfg.RequireExchangeCredentials(); err != nil {
		return nil, err
	}
	signer, err := NewCDPSigner(cfg.CoinbaseAPIKey, cfg.CoinbaseAPISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Coinbase client: %w", err)
	}
	return New(Options{
		BrokerageURL:  cfg.CoinbaseBrokerageURL,
		ExchangeURL:   cfg.CoinbaseExchangeURL,
		QuoteCurrency: cfg.QuoteCurrency,
		Timeout:       cfg.UpstreamTimeout,
		Signer:        signer,
	}), nil
}

// FormatPair formats base against the configured quote currency.
func (c *Client) FormatPair(base string) string {
	return FormatPair(base, c.quote)
}

// get issues one GET and records it. The error is non-nil only when no
// response was received.
func (c *Client) get(ctx context.Context, rc *resty.Client, op, path string, params map[string]string, signed bool) (*resty.Response, error) {
	req := rc.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if signed && c.signer != nil {
		token, err := c.signer.Token(http.MethodGet, c.brokerageHost, path)
		if err != nil {
			metrics.ObserveUpstream(op, "error", time.Now())
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		req.SetAuthToken(token)
	}

	start := time.Now()
	resp, err := req.Get(path)
	if err != nil {
		metrics.ObserveUpstream(op, "error", start)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.ObserveUpstream(op, strconv.Itoa(resp.StatusCode()), start)
	logger.Log.Debug("upstream response",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", resp.Time()),
	)
	return resp, nil
}

// Portfolio lists every account page and returns the holdings that pass the
// inclusion rule. Unlike FetchPortfolio it reports failures.
func (c *Client) Portfolio(ctx context.Context) ([]models.Holding, error) {
	logger.Log.Info("fetching portfolio")

	portfolio := make([]models.Holding, 0)
	cursor := ""
	seen := 0
	for page := 0; page < c.maxPages; page++ {
		params := map[string]string{"limit": strconv.Itoa(accountsPageLimit)}
		if cursor != "" {
			params["cursor"] = cursor
		}
		resp, err := c.get(ctx, c.brokerage, "list_accounts", "/api/v3/brokerage/accounts", params, true)
		if err != nil {
			return nil, err
		}
		if !resp.IsSuccess() {
			return nil, newUpstreamError("list_accounts", resp.StatusCode(), resp.Body())
		}

		decoded, err := decodeAccountsPage(resp.Body())
		if err != nil {
			return nil, err
		}
		seen += len(decoded.Accounts)
		logger.Log.Debug("accounts page",
			zap.Int("page", page),
			zap.Stringer("shape", decoded.Shape),
			zap.Int("accounts", len(decoded.Accounts)),
		)

		for _, acct := range decoded.Accounts {
			h, ok, err := acct.holding()
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", acct.Name, err)
			}
			logger.Log.Debug("account",
				zap.String("name", acct.Name),
				zap.String("type", acct.Type),
				zap.Bool("ready", acct.Ready),
				zap.String("currency", h.Currency),
				zap.Bool("included", ok),
			)
			if ok {
				portfolio = append(portfolio, h)
			}
		}

		if !decoded.HasNext || decoded.Cursor == "" {
			break
		}
		cursor = decoded.Cursor
	}

	logger.Log.Info("portfolio fetched", zap.Int("accounts", seen), zap.Int("holdings", len(portfolio)))
	return portfolio, nil
}

// FetchPortfolio is Portfolio with failures logged and degraded to an empty,
// non-nil list.
func (c *Client) FetchPortfolio(ctx context.Context) []models.Holding {
	portfolio, err := c.Portfolio(ctx)
	if err != nil {
		logger.Log.Error("error fetching portfolio", zap.Error(err))
		return []models.Holding{}
	}
	return portfolio
}

// FetchPrice returns the latest trade of a pair. Every failure is reported in
// the Error field of the snapshot.
func (c *Client) FetchPrice(ctx context.Context, pairID string) (snap models.PriceSnapshot) {
	productID := c.FormatPair(pairID)
	generic := fmt.Sprintf("Unable to fetch price for %s. Please check if the trading pair is supported.", productID)

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("panic fetching price", zap.String("pair", productID), zap.Any("panic", r))
			snap = models.PriceSnapshot{Error: generic}
		}
	}()

	snap, err := c.latestTrade(ctx, productID)
	if err == nil {
		return snap
	}

	logger.Log.Error("error fetching price", zap.String("pair", productID), zap.Error(err))
	switch {
	case errors.Is(err, ErrUnsupportedPair):
		return models.PriceSnapshot{Error: fmt.Sprintf("Trading pair %s is not supported.", productID)}
	case errors.Is(err, ErrNoTrades):
		return models.PriceSnapshot{Error: fmt.Sprintf("No trades found in market data for %s.", productID)}
	case errors.Is(err, ErrInvalidTrade):
		return models.PriceSnapshot{Error: fmt.Sprintf("Invalid trade data for %s.", productID)}
	default:
		return models.PriceSnapshot{Error: generic}
	}
}

func (c *Client) latestTrade(ctx context.Context, productID string) (models.PriceSnapshot, error) {
	probe, err := c.get(ctx, c.exchange, "get_product", "/products/"+url.PathEscape(productID), nil, false)
	if err != nil {
		return models.PriceSnapshot{}, err
	}
	if probe.StatusCode() == http.StatusNotFound {
		return models.PriceSnapshot{}, fmt.Errorf("%w: %s", ErrUnsupportedPair, productID)
	}

	path := "/api/v3/brokerage/products/" + url.PathEscape(productID) + "/ticker"
	resp, err := c.get(ctx, c.brokerage, "get_market_trades", path, map[string]string{"limit": "1"}, true)
	if err != nil {
		return models.PriceSnapshot{}, err
	}
	if !resp.IsSuccess() {
		return models.PriceSnapshot{}, newUpstreamError("get_market_trades", resp.StatusCode(), resp.Body())
	}
	return decodeLatestTrade(resp.Body(), c.now())
}

// FetchHistorical returns hourly candles for the trailing 24 hours.
func (c *Client) FetchHistorical(ctx context.Context, pairID string) ([]models.CandlePoint, error) {
	productID := c.FormatPair(pairID)
	logger.Log.Info("fetching historical data", zap.String("pair", productID))

	end := c.now().UTC()
	start := end.Add(-historyWindow)
	params := map[string]string{
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
		"granularity": strconv.Itoa(candleGranularity),
	}

	path := "/products/" + url.PathEscape(productID) + "/candles"
	resp, err := c.get(ctx, c.exchange, "get_candles", path, params, false)
	if err != nil {
		logger.Log.Error("error fetching historical data", zap.String("pair", productID), zap.Error(err))
		return nil, err
	}
	if !resp.IsSuccess() {
		err := newUpstreamError("get_candles", resp.StatusCode(), resp.Body())
		logger.Log.Error("error fetching historical data", zap.String("pair", productID), zap.Error(err))
		return nil, err
	}

	points, err := decodeCandles(resp.Body())
	if err != nil {
		logger.Log.Error("error decoding historical data", zap.String("pair", productID), zap.Error(err))
		return nil, err
	}
	return points, nil
}
