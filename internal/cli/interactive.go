package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2/terminal"
)

// runInteractiveMode loops over the action menu until the user exits.
func runInteractiveMode(ctx context.Context, a *app) error {
	DisplayWelcomeBanner(a.out)

	for {
		action, err := PromptForAction()
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				fmt.Fprintln(a.out, "👋 Bye!")
				return nil
			}
			return err
		}
		if action == actionExit {
			fmt.Fprintln(a.out, "👋 Bye!")
			return nil
		}

		if err := runAction(ctx, a, action); err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				continue
			}
			fmt.Fprintln(a.out, errorStyle.Render("✗ "+err.Error()))
		}
		fmt.Fprintln(a.out)
	}
}

func runAction(ctx context.Context, a *app, action string) error {
	switch action {
	case actionConfig:
		renderConfig(a.out, a.cfg)
		return nil
	case actionRecommend, actionAnalysis:
		if !a.cfg.EnableAIRecommendations {
			ok, err := PromptForConfirmation("AI recommendations are disabled. Continue anyway?")
			if err != nil || !ok {
				return err
			}
		}
		recs, err := a.recommendations(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, labelStyle.Render("Fetching market data and asking the model..."))
		if action == actionAnalysis {
			renderRecommendations(a.out, recs.Analyze(ctx))
		} else {
			renderRecommendations(a.out, recs.Recommend(ctx))
		}
		return nil
	}

	client, err := a.exchangeClient()
	if err != nil {
		return err
	}

	switch action {
	case actionPortfolio:
		portfolio, err := client.Portfolio(ctx)
		if err != nil {
			return fmt.Errorf("fetch portfolio: %w", err)
		}
		renderPortfolio(a.out, portfolio)
	case actionPrice:
		pair, err := PromptForPair(a.cfg.QuoteCurrency)
		if err != nil {
			return err
		}
		pairID := client.FormatPair(pair)
		renderPrice(a.out, pairID, client.FetchPrice(ctx, pairID))
	case actionHistorical:
		pair, err := PromptForPair(a.cfg.QuoteCurrency)
		if err != nil {
			return err
		}
		pairID := client.FormatPair(pair)
		points, err := client.FetchHistorical(ctx, pairID)
		if err != nil {
			return fmt.Errorf("fetch historical data for %s: %w", pairID, err)
		}
		renderCandles(a.out, pairID, points)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}
