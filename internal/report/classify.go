package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"p2pstats/internal/domain"
)

// Closed status sets, compared after upper-folding
var completedStatuses = map[string]struct{}{
	"COMPLETED": {},
	"FINISHED":  {},
	"SUCCESS":   {},
}

var cancelledStatuses = map[string]struct{}{
	"CANCELLED":           {},
	"CANCELED":            {},
	"CANCEL":              {},
	"CANCELLED_BY_SYSTEM": {},
	"AUTO_CANCELLED":      {},
}

var onchainKinds = map[string]struct{}{
	"ONCHAIN":  {},
	"ON_CHAIN": {},
	"ON-CHAIN": {},
	"EXTERNAL": {},
	"0": {}, // upstream transferType: 0 = external transfer
}

var offchainKinds = map[string]struct{}{
	"OFFCHAIN":  {},
	"OFF_CHAIN": {},
	"OFF-CHAIN": {},
	"INTERNAL":  {},
	"1": {}, // upstream transferType: 1 = internal transfer
}

// Typed record after normalization. Amounts are exact decimals, status is
// upper-folded; the aggregation rules only ever see this shape
type Event struct {
	Kind      domain.EventKind
	Time      time.Time
	Fiat      decimal.Decimal
	Crypto    decimal.Decimal
	Status    string
	Recipient string
}

// Classifier normalizes raw rows against a declared field mapping and the
// configured target currencies. Rows that cannot be normalized are dropped
// without error; the engine never raises for a single bad record
type Classifier struct {
	fiat  string // target fiat code, e.g. UAH
	asset string // target crypto code, e.g. USDT
}

func NewClassifier(fiat, asset string) *Classifier {
	return &Classifier{fiat: fiat, asset: asset}
}

// Classify normalizes every row of the collection. Returns the accepted
// events and the count of rejected rows
func (c *Classifier) Classify(col *domain.Collection) ([]Event, int) {
	events := make([]Event, 0, len(col.Rows))
	rejected := 0

	for _, row := range col.Rows {
		ev, ok := c.classifyRow(col, row)
		if !ok {
			rejected++
			continue
		}
		events = append(events, ev)
	}

	return events, rejected
}

func (c *Classifier) classifyRow(col *domain.Collection, row map[string]any) (Event, bool) {
	ev := Event{Kind: col.Kind}

	ts, ok := firstTime(row, col.Fields.Time)
	if !ok {
		return ev, false
	}
	ev.Time = ts

	// currency filter: mismatch has the same net effect as a parse
	// failure, the row contributes nothing
	if len(col.Fields.Asset) > 0 {
		code, _ := firstString(row, col.Fields.Asset)
		if !strings.EqualFold(code, c.asset) {
			return ev, false
		}
	}
	if len(col.Fields.FiatCode) > 0 {
		code, _ := firstString(row, col.Fields.FiatCode)
		if !strings.EqualFold(code, c.fiat) {
			return ev, false
		}
	}

	if len(col.Fields.Fiat) > 0 {
		v, ok := firstDecimal(row, col.Fields.Fiat)
		if !ok {
			return ev, false
		}
		ev.Fiat = v
	}
	if len(col.Fields.Crypto) > 0 {
		v, ok := firstDecimal(row, col.Fields.Crypto)
		if !ok {
			return ev, false
		}
		ev.Crypto = v
	}

	if len(col.Fields.Status) > 0 {
		s, _ := firstString(row, col.Fields.Status)
		ev.Status = strings.ToUpper(strings.TrimSpace(s))
	}

	if len(col.Fields.Recipient) > 0 {
		r, _ := firstString(row, col.Fields.Recipient)
		ev.Recipient = r
	}

	return ev, true
}

// firstString returns the first alias present in the row, stringified
func firstString(row map[string]any, aliases []string) (string, bool) {
	for _, name := range aliases {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			return s, true
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), true
		case int:
			return strconv.Itoa(s), true
		case int64:
			return strconv.FormatInt(s, 10), true
		}
	}
	return "", false
}

// firstDecimal parses the first alias present in the row as an exact
// decimal. Missing aliases count as zero (the source omits zero columns),
// a present but unparseable value fails the row
func firstDecimal(row map[string]any, aliases []string) (decimal.Decimal, bool) {
	for _, name := range aliases {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		return toDecimal(v)
	}
	return decimal.Zero, true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return decimal.Zero, true
		}
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	default:
		return decimal.Zero, false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// firstTime parses the first alias that yields a valid timestamp. Accepts
// ISO/RFC3339 strings (with or without offset), date-only strings and
// epoch milliseconds, which is how Binance stamps createTime
func firstTime(row map[string]any, aliases []string) (time.Time, bool) {
	for _, name := range aliases {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		if t, ok := parseTime(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
		// all-digit strings are epoch millis
		if ms, err := strconv.ParseInt(x, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(x)).UTC(), true
	case int64:
		return time.UnixMilli(x).UTC(), true
	case int:
		return time.UnixMilli(int64(x)).UTC(), true
	default:
		return time.Time{}, false
	}
}

func isCompleted(status string) bool {
	_, ok := completedStatuses[status]
	return ok
}

func isCancelled(status string) bool {
	_, ok := cancelledStatuses[status]
	return ok
}

func isOnchain(kind string) bool {
	_, ok := onchainKinds[kind]
	return ok
}

func isOffchain(kind string) bool {
	_, ok := offchainKinds[kind]
	return ok
}
