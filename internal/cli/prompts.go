package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

const (
	actionPortfolio  = "View portfolio"
	actionPrice      = "Check a price"
	actionHistorical = "Show 24h candles"
	actionRecommend  = "Get recommendations"
	actionAnalysis   = "Get detailed analysis"
	actionConfig     = "Show configuration"
	actionExit       = "Exit"
)

var pairPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}(-[A-Z0-9]{1,10})?$`)

// validatePair accepts a base symbol such as BTC or a pair such as BTC-GBP.
func validatePair(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("expected text input")
	}
	str = strings.TrimSpace(strings.ToUpper(str))
	if str == "" {
		return fmt.Errorf("pair cannot be empty")
	}
	if !pairPattern.MatchString(str) {
		return fmt.Errorf("invalid pair format (use BTC or BTC-GBP)")
	}
	return nil
}

// PromptForAction asks what to do next in interactive mode.
func PromptForAction() (string, error) {
	var choice string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{
			actionPortfolio,
			actionPrice,
			actionHistorical,
			actionRecommend,
			actionAnalysis,
			actionConfig,
			actionExit,
		},
		Default: actionPortfolio,
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", err
	}
	return choice, nil
}

// PromptForPair asks for a base currency or a trading pair.
func PromptForPair(quote string) (string, error) {
	var pair string
	prompt := &survey.Input{
		Message: fmt.Sprintf("Enter a currency or trading pair (e.g., BTC, ETH-%s):", quote),
		Help:    fmt.Sprintf("A bare currency is priced in %s.", quote),
	}
	if err := survey.AskOne(prompt, &pair, survey.WithValidator(validatePair)); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(pair)), nil
}

// PromptForConfirmation asks a yes/no question.
func PromptForConfirmation(message string) (bool, error) {
	confirmed := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &confirmed); err != nil {
		return false, err
	}
	return confirmed, nil
}
