package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/dyike/CryptoViewer/config"
	"github.com/dyike/CryptoViewer/internal/models"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Background(lipgloss.Color("#1F2937")).
		Padding(0, 1).
		MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6"))

	reportsStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#10B981")).
		Padding(1, 2).
		Width(80)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	valueStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F9FAFB")).
		Bold(true)

	upStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	downStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444"))

	completedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)
)

// DisplayWelcomeBanner shows the welcome banner
func DisplayWelcomeBanner(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render("Crypto Viewer"))
	fmt.Fprintln(w, labelStyle.Render("Coinbase portfolio, prices and AI recommendations"))
	fmt.Fprintln(w)
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderPortfolio(w io.Writer, portfolio []models.Holding) {
	fmt.Fprintln(w, headerStyle.Render("Portfolio"))
	if len(portfolio) == 0 {
		fmt.Fprintln(w, labelStyle.Render("  no holdings"))
		return
	}
	fmt.Fprintf(w, "  %s\n", labelStyle.Render(fmt.Sprintf("%-10s %20s %20s", "CURRENCY", "BALANCE", "AVAILABLE")))
	for _, h := range portfolio {
		fmt.Fprintf(w, "  %s %s %s\n",
			valueStyle.Render(fmt.Sprintf("%-10s", h.Currency)),
			fmt.Sprintf("%20s", h.Balance),
			fmt.Sprintf("%20s", h.Available),
		)
	}
}

func renderPrice(w io.Writer, pairID string, snap models.PriceSnapshot) {
	if !snap.OK() {
		fmt.Fprintln(w, errorStyle.Render("✗ "+snap.Error))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n",
		headerStyle.Render(pairID),
		valueStyle.Render(snap.Price),
		labelStyle.Render("@ "+snap.Time),
	)
}

func renderCandles(w io.Writer, pairID string, points []models.CandlePoint) {
	fmt.Fprintln(w, headerStyle.Render(pairID+" hourly candles"))
	if len(points) == 0 {
		fmt.Fprintln(w, labelStyle.Render("  no candles"))
		return
	}
	fmt.Fprintf(w, "  %s\n", labelStyle.Render(fmt.Sprintf("%-22s %14s %14s %14s %14s %14s", "TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")))
	for _, p := range points {
		closeText := fmt.Sprintf("%14s", p.Close)
		if rising(p) {
			closeText = upStyle.Render(closeText)
		} else {
			closeText = downStyle.Render(closeText)
		}
		fmt.Fprintf(w, "  %-22s %14s %14s %14s %s %14s\n", p.Time, p.Open, p.High, p.Low, closeText, p.Volume)
	}
}

// rising reports whether a candle closed at or above its open.
func rising(p models.CandlePoint) bool {
	open, err := decimal.NewFromString(p.Open)
	if err != nil {
		return true
	}
	closed, err := decimal.NewFromString(p.Close)
	if err != nil {
		return true
	}
	return closed.GreaterThanOrEqual(open)
}

func renderRecommendations(w io.Writer, text string) {
	fmt.Fprintln(w, headerStyle.Render("Recommendations"))
	fmt.Fprintln(w, reportsStyle.Render(strings.TrimSpace(text)))
}

func renderConfig(w io.Writer, cfg *config.Config) {
	rows := [][2]string{
		{"Listen address", cfg.Addr()},
		{"Allowed origin", cfg.AllowedOrigin},
		{"Coinbase API key", mask(cfg.CoinbaseAPIKey)},
		{"Coinbase API secret", mask(cfg.CoinbaseAPISecret)},
		{"Brokerage URL", cfg.CoinbaseBrokerageURL},
		{"Exchange URL", cfg.CoinbaseExchangeURL},
		{"Quote currency", cfg.QuoteCurrency},
		{"Upstream timeout", cfg.UpstreamTimeout.String()},
		{"AI recommendations", fmt.Sprintf("%t", cfg.EnableAIRecommendations)},
		{"LLM provider", cfg.LLMProvider},
		{"LLM model", cfg.LLMModel},
		{"LLM API key", mask(cfg.LLMAPIKey())},
		{"Log level", cfg.LogLevel},
		{"Debug", fmt.Sprintf("%t", cfg.Debug)},
	}
	fmt.Fprintln(w, headerStyle.Render("Configuration"))
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-20s", row[0]+":")), row[1])
	}
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 4:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}
