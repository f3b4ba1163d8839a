package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Per-bucket accumulator totals. Every field starts at the additive
// identity and only grows while events are folded in; decimal fields keep
// exact sums no matter how many small amounts land in a bucket
type Aggregate struct {
	BoughtFiat             decimal.Decimal `json:"bought_fiat"`
	BoughtCrypto           decimal.Decimal `json:"bought_crypto"`
	OrderCount             uint64          `json:"order_count"`
	SoldFiat               decimal.Decimal `json:"sold_fiat"`
	SoldCrypto             decimal.Decimal `json:"sold_crypto"`
	CancelledCount         uint64          `json:"cancelled_count"`
	NetTxFlow              decimal.Decimal `json:"net_tx_flow"`
	MakerAdsCount          uint64          `json:"maker_ads_count"`
	TakerAdsCount          uint64          `json:"taker_ads_count"`
	MakerUpdates           uint64          `json:"maker_updates"`
	TakerUpdates           uint64          `json:"taker_updates"`
	WithdrawOnchainCount   uint64          `json:"withdraw_onchain_count"`
	WithdrawOnchainAmount  decimal.Decimal `json:"withdraw_onchain_amount"`
	WithdrawOffchainCount  uint64          `json:"withdraw_offchain_count"`
	WithdrawOffchainAmount decimal.Decimal `json:"withdraw_offchain_amount"`
}

// Add folds other into a, field by field
func (a *Aggregate) Add(other *Aggregate) {
	a.BoughtFiat = a.BoughtFiat.Add(other.BoughtFiat)
	a.BoughtCrypto = a.BoughtCrypto.Add(other.BoughtCrypto)
	a.OrderCount += other.OrderCount
	a.SoldFiat = a.SoldFiat.Add(other.SoldFiat)
	a.SoldCrypto = a.SoldCrypto.Add(other.SoldCrypto)
	a.CancelledCount += other.CancelledCount
	a.NetTxFlow = a.NetTxFlow.Add(other.NetTxFlow)
	a.MakerAdsCount += other.MakerAdsCount
	a.TakerAdsCount += other.TakerAdsCount
	a.MakerUpdates += other.MakerUpdates
	a.TakerUpdates += other.TakerUpdates
	a.WithdrawOnchainCount += other.WithdrawOnchainCount
	a.WithdrawOnchainAmount = a.WithdrawOnchainAmount.Add(other.WithdrawOnchainAmount)
	a.WithdrawOffchainCount += other.WithdrawOffchainCount
	a.WithdrawOffchainAmount = a.WithdrawOffchainAmount.Add(other.WithdrawOffchainAmount)
}

// Derived profit metrics. nil means undefined (not enough matching buy+sell
// volume); that is a different signal than zero and must stay distinguishable
type Metrics struct {
	ProfitRate   *decimal.Decimal `json:"profit_rate,omitempty"`
	ProfitAmount *decimal.Decimal `json:"profit_amount,omitempty"`
}

func (m Metrics) Defined() bool {
	return m.ProfitRate != nil && m.ProfitAmount != nil
}

// One dense series row
type Row struct {
	BucketStart time.Time `json:"bucket_start"`
	Aggregate
	Metrics
}

// Period totals. ProfitRate/ProfitAmount are derived from the summed
// bought/sold volumes; ProfitRateAvg is the mean of the defined per-bucket
// rates and ProfitAmountSum the sum of the defined per-bucket amounts.
// The two flavors are materially different numbers and are reported apart
type Totals struct {
	Aggregate
	Metrics
	ProfitRateAvg   *decimal.Decimal `json:"profit_rate_avg,omitempty"`
	ProfitAmountSum decimal.Decimal  `json:"profit_amount_sum"`
}

// Withdrawal share attributed to one recipient
type RecipientShare struct {
	Recipient string          `json:"recipient"`
	Count     uint64          `json:"count"`
	Amount    decimal.Decimal `json:"amount"`
}

// Top recipients by withdrawal count and by summed amount, remainder
// grouped under "Other"
type RecipientBreakdown struct {
	TopByCount  []RecipientShare `json:"top_by_count"`
	TopByAmount []RecipientShare `json:"top_by_amount"`
}

// Counts of rows accepted into / rejected from the accumulators, keyed by
// collection name. Rejection is silent inside the engine; these are the
// diagnostics the caller may surface
type CollectionStats struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Final report output: one row per generated bucket (dense, zero rows kept)
// plus period totals
type Series struct {
	ReportID   string                     `json:"report_id"`
	Period     Period                     `json:"period"`
	Rows       []Row                      `json:"rows"`
	Totals     Totals                     `json:"totals"`
	Stats      map[string]CollectionStats `json:"stats,omitempty"`
	Recipients *RecipientBreakdown        `json:"recipients,omitempty"`
}
