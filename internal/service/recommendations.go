package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dyike/CryptoViewer/internal/logger"
	"github.com/dyike/CryptoViewer/internal/models"
)

const (
	NoHoldingsMessage   = "No cryptocurrency holdings found in your portfolio."
	NoMarketDataMessage = "Unable to fetch market data for your holdings."

	defaultConcurrency = 4
)

// Exchange is the market data source behind the recommendation routes.
type Exchange interface {
	FormatPair(base string) string
	FetchPortfolio(ctx context.Context) []models.Holding
	FetchPrice(ctx context.Context, pairID string) models.PriceSnapshot
	FetchHistorical(ctx context.Context, pairID string) ([]models.CandlePoint, error)
}

// Recommender produces recommendation text and never fails.
type Recommender interface {
	Generate(ctx context.Context, portfolio []models.Holding, marketData any) string
}

// Recommendations gathers per-holding market data and hands it to the
// recommender. Holdings whose data cannot be fetched are skipped.
type Recommendations struct {
	exchange    Exchange
	recommender Recommender
	concurrency int
}

func NewRecommendations(exchange Exchange, recommender Recommender, concurrency int) *Recommendations {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Recommendations{exchange: exchange, recommender: recommender, concurrency: concurrency}
}

// Recommend builds recommendations from hourly candles of every holding.
func (s *Recommendations) Recommend(ctx context.Context) string {
	portfolio := s.exchange.FetchPortfolio(ctx)
	if len(portfolio) == 0 {
		return NoHoldingsMessage
	}
	marketData := s.CandleSeries(ctx, portfolio)
	if len(marketData) == 0 {
		return NoMarketDataMessage
	}
	return s.recommender.Generate(ctx, portfolio, marketData)
}

// Analyze is Recommend with the latest price bundled next to the candles.
func (s *Recommendations) Analyze(ctx context.Context) string {
	portfolio := s.exchange.FetchPortfolio(ctx)
	if len(portfolio) == 0 {
		return NoHoldingsMessage
	}
	marketData := s.MarketAnalysis(ctx, portfolio)
	if len(marketData) == 0 {
		return NoMarketDataMessage
	}
	return s.recommender.Generate(ctx, portfolio, marketData)
}

// CandleSeries fetches candles per holding in portfolio order.
func (s *Recommendations) CandleSeries(ctx context.Context, portfolio []models.Holding) []models.CandleSeries {
	results := make([]*models.CandleSeries, len(portfolio))
	s.forEach(len(portfolio), func(i int) {
		currency := portfolio[i].Currency
		pairID := s.exchange.FormatPair(currency)
		data, err := s.exchange.FetchHistorical(ctx, pairID)
		if err != nil {
			logger.Log.Error("error fetching data", zap.String("currency", currency), zap.Error(err))
			return
		}
		results[i] = &models.CandleSeries{Currency: currency, Data: data}
	})
	return compact(results)
}

// MarketAnalysis fetches price and candles per holding in portfolio order.
func (s *Recommendations) MarketAnalysis(ctx context.Context, portfolio []models.Holding) []models.MarketAnalysis {
	results := make([]*models.MarketAnalysis, len(portfolio))
	s.forEach(len(portfolio), func(i int) {
		currency := portfolio[i].Currency
		pairID := s.exchange.FormatPair(currency)
		price := s.exchange.FetchPrice(ctx, pairID)
		data, err := s.exchange.FetchHistorical(ctx, pairID)
		if err != nil {
			logger.Log.Error("error fetching market data", zap.String("pair", pairID), zap.Error(err))
			return
		}
		results[i] = &models.MarketAnalysis{Currency: currency, CurrentPrice: price, HistoricalData: data}
	})
	return compact(results)
}

// forEach runs fn for 0..n-1 with at most s.concurrency in flight. A panic in
// one item is logged and leaves that item empty.
func (s *Recommendations) forEach(n int, fn func(i int)) {
	semaphore := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			defer func() {
				if r := recover(); r != nil {
					logger.Log.Error("panic fetching market data", zap.Int("index", idx), zap.Any("panic", r))
				}
			}()
			fn(idx)
		}(i)
	}
	wg.Wait()
}

func compact[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out
}
