package exchange

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedPair  = errors.New("unsupported trading pair")
	ErrNoTrades         = errors.New("no trades found")
	ErrInvalidTrade     = errors.New("invalid trade data")
	ErrMalformedPayload = errors.New("malformed upstream payload")
)

const maxErrorBody = 512

// UpstreamError is a non-2xx response from the exchange.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       string
}

func newUpstreamError(op string, status int, body []byte) *UpstreamError {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &UpstreamError{Operation: op, StatusCode: status, Body: text}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream returned status %d: %s", e.Operation, e.StatusCode, e.Body)
}
