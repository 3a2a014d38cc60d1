package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyike/CryptoViewer/internal/logger"
	"github.com/dyike/CryptoViewer/internal/server"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := newApp()

	rootCmd := &cobra.Command{
		Use:   "cryptoviewer",
		Short: "Crypto Viewer - Coinbase portfolio API with AI recommendations",
		Long: `Crypto Viewer serves your Coinbase portfolio, current prices and hourly candles
over HTTP, and asks a chat model for buy, sell or hold recommendations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			level, _ := cmd.Flags().GetString("log-level")
			debug, _ := cmd.Flags().GetBool("debug")
			return a.load(path, level, debug)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			return runInteractiveMode(cmd.Context(), a)
		},
	}

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newPortfolioCmd(a))
	rootCmd.AddCommand(newPriceCmd(a))
	rootCmd.AddCommand(newHistoricalCmd(a))
	rootCmd.AddCommand(newRecommendCmd(a))
	rootCmd.AddCommand(newInteractiveCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().String("config", os.Getenv("CONFIG_PATH"), "Configuration file path")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	return rootCmd
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			recs, err := a.recommendations(cmd.Context())
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				Addr:          a.cfg.Addr(),
				AllowedOrigin: a.cfg.AllowedOrigin,
				Exchange:      a.exchange,
				Recommender:   recs,
			})
			return serve(cmd.Context(), srv)
		},
	}
}

// serve runs srv until SIGINT or SIGTERM, then shuts it down gracefully.
func serve(ctx context.Context, srv *server.Server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

func newPortfolioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show holdings with a positive balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.exchangeClient()
			if err != nil {
				return err
			}
			portfolio, err := client.Portfolio(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch portfolio: %w", err)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSONTo(a.out, portfolio)
			}
			renderPortfolio(a.out, portfolio)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func newPriceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price [PAIR]",
		Short: "Show the latest trade price of a pair",
		Long: `Show the latest trade price of a trading pair.
Example: cryptoviewer price BTC      (uses the configured quote currency)
         cryptoviewer price ETH-USD`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.exchangeClient()
			if err != nil {
				return err
			}
			pairID := client.FormatPair(args[0])
			snap := client.FetchPrice(cmd.Context(), pairID)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSONTo(a.out, snap)
			}
			renderPrice(a.out, pairID, snap)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func newHistoricalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "historical [PAIR]",
		Short: "Show hourly candles of the last 24 hours",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.exchangeClient()
			if err != nil {
				return err
			}
			pairID := client.FormatPair(args[0])
			points, err := client.FetchHistorical(cmd.Context(), pairID)
			if err != nil {
				return fmt.Errorf("fetch historical data for %s: %w", pairID, err)
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSONTo(a.out, points)
			}
			renderCandles(a.out, pairID, points)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func newRecommendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Ask the chat model for portfolio recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.recommendations(cmd.Context())
			if err != nil {
				return err
			}
			analysis, _ := cmd.Flags().GetBool("analysis")
			var text string
			if analysis {
				text = recs.Analyze(cmd.Context())
			} else {
				text = recs.Recommend(cmd.Context())
			}
			renderRecommendations(a.out, text)
			return nil
		},
	}
	cmd.Flags().Bool("analysis", false, "Include the current price of each holding")
	return cmd
}

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Browse the portfolio interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveMode(cmd.Context(), a)
		},
	}
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Crypto Viewer v%s\n", server.Version)
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			renderConfig(a.out, a.cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(a)
		},
	})

	return configCmd
}

func validateConfig(a *app) error {
	var problems []error
	if err := a.cfg.Validate(); err != nil {
		problems = append(problems, err)
	}
	if _, err := a.exchangeClient(); err != nil {
		problems = append(problems, err)
	}
	if a.cfg.EnableAIRecommendations && a.cfg.LLMAPIKey() == "" {
		fmt.Fprintln(a.out, errorStyle.Render(fmt.Sprintf("! no %s API key: recommendations will be unavailable", a.cfg.LLMProvider)))
	}

	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(a.out, errorStyle.Render("✗ "+p.Error()))
		}
		return errors.Join(problems...)
	}
	fmt.Fprintln(a.out, completedStyle.Render("✓ configuration is valid"))
	return nil
}
