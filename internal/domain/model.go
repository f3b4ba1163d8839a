package domain

import (
	"errors"
	"fmt"
	"time"
)

// Bucket width selector for the report period
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

var (
	ErrUnknownGranularity = errors.New("unknown granularity")
	ErrInvalidPeriod      = errors.New("period from must not be after to")
	ErrReportNotFound     = errors.New("report not found")
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// Report period. Precision is the division precision (decimal places) used
// when deriving profit metrics; additions are always exact
type Period struct {
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	Granularity Granularity `json:"granularity"`
	Precision   int32       `json:"precision,omitempty"`
}

func (p Period) Validate() error {
	if _, err := ParseGranularity(string(p.Granularity)); err != nil {
		return err
	}
	if p.From.After(p.To) {
		return fmt.Errorf("%w: from=%s to=%s", ErrInvalidPeriod, p.From, p.To)
	}
	return nil
}

// Variant tag of a raw event collection
type EventKind string

const (
	KindOrder       EventKind = "order"
	KindTrade       EventKind = "trade"
	KindTransaction EventKind = "transaction"
	KindWithdrawal  EventKind = "withdrawal"
)

// Declared field mapping for one collection. Every entry is a list of
// aliases tried in order; source systems name the same column differently
// (createTime vs createTimestamp vs orderTime and so on)
type FieldMap struct {
	ID        []string `json:"id,omitempty" yaml:"id"`
	Time      []string `json:"time" yaml:"time"`
	Fiat      []string `json:"fiat,omitempty" yaml:"fiat"`
	Crypto    []string `json:"crypto,omitempty" yaml:"crypto"`
	Status    []string `json:"status,omitempty" yaml:"status"`
	Asset     []string `json:"asset,omitempty" yaml:"asset"`
	FiatCode  []string `json:"fiat_code,omitempty" yaml:"fiat_code"`
	Recipient []string `json:"recipient,omitempty" yaml:"recipient"`
}

// One named collection of raw event rows, already fetched and parsed by the
// caller (paginated HTTP, CSV and the rest of that plumbing live outside)
type Collection struct {
	Name   string           `json:"name"`
	Kind   EventKind        `json:"kind"`
	Fields FieldMap         `json:"fields"`
	Rows   []map[string]any `json:"rows"`
}

// Pre-aggregated per-period row from the backend statistics endpoint.
// PeriodStart stays a string here; the engine parses it with the same
// timestamp rules as raw events and drops rows it cannot place
type PeriodStat struct {
	PeriodStart   string `json:"period_start"`
	MakerAdsCount uint64 `json:"maker_ads_count"`
	TakerAdsCount uint64 `json:"taker_ads_count"`
	MakerUpdates  uint64 `json:"maker_updates"`
	TakerUpdates  uint64 `json:"taker_updates"`
}

// Full input of one report build
type ReportRequest struct {
	Period      Period       `json:"period"`
	Fiat        string       `json:"fiat,omitempty"`  // target fiat code, config default when empty
	Asset       string       `json:"asset,omitempty"` // target crypto code, config default when empty
	Collections []Collection `json:"collections"`
	PeriodStats []PeriodStat `json:"period_stats,omitempty"`
}
