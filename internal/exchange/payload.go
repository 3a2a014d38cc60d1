package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CryptoViewer/internal/models"
)

const (
	AccountTypeCrypto = "ACCOUNT_TYPE_CRYPTO"
	AccountTypeFiat   = "ACCOUNT_TYPE_FIAT"
)

// flexString decodes a JSON string or number into its text form.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

// flexBool decodes a JSON bool, a "true"/"false" string or a 0/1 number.
type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "", "null":
		*v = false
		return nil
	case "true":
		*v = true
		return nil
	case "false":
		*v = false
		return nil
	}
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(string(s)))
	if err != nil {
		return fmt.Errorf("expected boolean, got %s", b)
	}
	*v = flexBool(parsed)
	return nil
}

// payloadShape tags which known layout an accounts response arrived in.
type payloadShape int

const (
	shapeEnvelope payloadShape = iota // {"accounts": [...], "has_next": ..., "cursor": ...}
	shapeBareList                     // [...]
	shapeNoAccounts                   // {...} without an accounts list
)

func (s payloadShape) String() string {
	switch s {
	case shapeEnvelope:
		return "envelope"
	case shapeBareList:
		return "bare_list"
	default:
		return "no_accounts"
	}
}

type balance struct {
	Value    flexString `json:"value"`
	Currency flexString `json:"currency"`
}

type account struct {
	UUID             string
	Name             string
	Currency         string
	Type             string
	Ready            bool
	AvailableBalance json.RawMessage
}

// UnmarshalJSON reads each field on its own. A field of an unexpected type
// decodes to its zero value instead of failing the account.
func (a *account) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*a = account{
		UUID:             looseText(fields["uuid"]),
		Name:             looseText(fields["name"]),
		Currency:         looseText(fields["currency"]),
		Type:             looseText(fields["type"]),
		AvailableBalance: fields["available_balance"],
	}
	if raw, ok := fields["ready"]; ok {
		var ready flexBool
		if err := json.Unmarshal(raw, &ready); err == nil {
			a.Ready = bool(ready)
		}
	}
	return nil
}

func looseText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s flexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return string(s)
}

type accountsPage struct {
	Shape    payloadShape
	Accounts []account
	HasNext  bool
	Cursor   string
}

// decodeAccountsPage accepts the envelope, a bare list, or an object with no
// accounts key. List entries that are not objects are dropped.
func decodeAccountsPage(body []byte) (accountsPage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return accountsPage{}, fmt.Errorf("%w: empty accounts response", ErrMalformedPayload)
	}

	switch trimmed[0] {
	case '[':
		accounts, err := decodeAccountList(trimmed)
		if err != nil {
			return accountsPage{}, err
		}
		return accountsPage{Shape: shapeBareList, Accounts: accounts}, nil

	case '{':
		var envelope struct {
			Accounts json.RawMessage `json:"accounts"`
			HasNext  flexBool        `json:"has_next"`
			Cursor   flexString      `json:"cursor"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return accountsPage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		raw := bytes.TrimSpace(envelope.Accounts)
		if len(raw) == 0 || raw[0] != '[' {
			return accountsPage{Shape: shapeNoAccounts}, nil
		}
		accounts, err := decodeAccountList(raw)
		if err != nil {
			return accountsPage{}, err
		}
		return accountsPage{
			Shape:    shapeEnvelope,
			Accounts: accounts,
			HasNext:  bool(envelope.HasNext),
			Cursor:   string(envelope.Cursor),
		}, nil
	}

	return accountsPage{}, fmt.Errorf("%w: unexpected accounts response %.64q", ErrMalformedPayload, trimmed)
}

func decodeAccountList(raw []byte) ([]account, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	accounts := make([]account, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			continue
		}
		var a account
		if err := json.Unmarshal(item, &a); err != nil {
			return nil, fmt.Errorf("%w: account: %v", ErrMalformedPayload, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// available returns the nested balance when it is an object.
func (a account) available() (balance, bool) {
	raw := bytes.TrimSpace(a.AvailableBalance)
	if len(raw) == 0 || raw[0] != '{' {
		return balance{}, false
	}
	var b balance
	if err := json.Unmarshal(raw, &b); err != nil {
		return balance{}, false
	}
	return b, true
}

// holding converts the account into a portfolio entry and reports whether it
// passes the inclusion rule. An unparsable balance value is an error.
func (a account) holding() (models.Holding, bool, error) {
	bal, ok := a.available()
	if !ok {
		return models.Holding{}, false, nil
	}
	value := strings.TrimSpace(string(bal.Value))
	if value == "" {
		value = "0"
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		if !eligibleAccount(a.Type, a.Ready) {
			return models.Holding{}, false, nil
		}
		return models.Holding{}, false, fmt.Errorf("%w: balance %q: %v", ErrMalformedPayload, value, err)
	}
	h := models.Holding{
		Currency:  string(bal.Currency),
		Balance:   value,
		Available: value,
	}
	return h, includeAccount(a.Type, a.Ready, amount), nil
}

// eligibleAccount reports whether an account of this type and readiness can
// be included at all, whatever its balance.
func eligibleAccount(accountType string, ready bool) bool {
	switch accountType {
	case AccountTypeCrypto:
		return ready
	case AccountTypeFiat:
		return true
	default:
		return false
	}
}

// includeAccount keeps ready crypto accounts and fiat accounts with a
// strictly positive balance.
func includeAccount(accountType string, ready bool, amount decimal.Decimal) bool {
	return eligibleAccount(accountType, ready) && amount.GreaterThan(decimal.Zero)
}

// decodeLatestTrade extracts price and time of the first trade in a
// market trades response.
func decodeLatestTrade(body []byte, now time.Time) (models.PriceSnapshot, error) {
	var envelope struct {
		Trades json.RawMessage `json:"trades"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var trades []json.RawMessage
	raw := bytes.TrimSpace(envelope.Trades)
	if len(raw) == 0 || raw[0] != '[' {
		return models.PriceSnapshot{}, ErrNoTrades
	}
	if err := json.Unmarshal(raw, &trades); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(trades) == 0 {
		return models.PriceSnapshot{}, ErrNoTrades
	}

	first := bytes.TrimSpace(trades[0])
	if len(first) == 0 || first[0] != '{' {
		return models.PriceSnapshot{}, ErrInvalidTrade
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(first, &fields); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
	}
	rawPrice, ok := fields["price"]
	if !ok {
		return models.PriceSnapshot{}, ErrInvalidTrade
	}
	var price flexString
	if err := json.Unmarshal(rawPrice, &price); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("%w: price: %v", ErrInvalidTrade, err)
	}
	if strings.TrimSpace(string(price)) == "" {
		return models.PriceSnapshot{}, fmt.Errorf("%w: empty price", ErrInvalidTrade)
	}

	var ts flexString
	if rawTime, ok := fields["time"]; ok {
		_ = json.Unmarshal(rawTime, &ts)
	}
	if ts == "" {
		ts = flexString(now.UTC().Format(time.RFC3339Nano))
	}
	return models.PriceSnapshot{Price: string(price), Time: string(ts)}, nil
}

// decodeCandles maps [start, low, high, open, close, volume] rows into
// candle points. Rows shorter than six fields are malformed.
func decodeCandles(body []byte) ([]models.CandlePoint, error) {
	var rows [][]flexString
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: candles: %v", ErrMalformedPayload, err)
	}

	points := make([]models.CandlePoint, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: candle %d has %d fields", ErrMalformedPayload, i, len(row))
		}
		start, err := strconv.ParseFloat(string(row[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: candle %d start %q", ErrMalformedPayload, i, row[0])
		}
		for _, field := range row[1:6] {
			if _, err := decimal.NewFromString(string(field)); err != nil {
				return nil, fmt.Errorf("%w: candle %d value %q", ErrMalformedPayload, i, field)
			}
		}
		points = append(points, models.CandlePoint{
			Time:   time.Unix(int64(start), 0).UTC().Format(time.RFC3339),
			Low:    string(row[1]),
			High:   string(row[2]),
			Open:   string(row[3]),
			Close:  string(row[4]),
			Volume: string(row[5]),
		})
	}
	return points, nil
}
