package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dyike/CryptoViewer/config"
	"github.com/dyike/CryptoViewer/internal/advisor"
	"github.com/dyike/CryptoViewer/internal/exchange"
	"github.com/dyike/CryptoViewer/internal/logger"
	"github.com/dyike/CryptoViewer/internal/service"
)

// app carries the loaded configuration and lazily built clients shared by
// the subcommands.
type app struct {
	cfg *config.Config
	out io.Writer

	exchange *exchange.Client
	recs     *service.Recommendations
}

func newApp() *app {
	return &app{out: os.Stdout}
}

// load reads configuration and sets up logging. Flags override file and
// environment values.
func (a *app) load(path, logLevel string, debug bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if debug {
		cfg.Debug = true
	}
	if err := logger.Init(cfg.LogLevel, cfg.Debug); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) exchangeClient() (*exchange.Client, error) {
	if a.exchange != nil {
		return a.exchange, nil
	}
	client, err := exchange.NewFromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	a.exchange = client
	return client, nil
}

func (a *app) recommendations(ctx context.Context) (*service.Recommendations, error) {
	if a.recs != nil {
		return a.recs, nil
	}
	client, err := a.exchangeClient()
	if err != nil {
		return nil, err
	}
	adv, err := advisor.NewFromConfig(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.recs = service.NewRecommendations(client, adv, 0)
	return a.recs, nil
}
