package report

import (
	"github.com/shopspring/decimal"

	"p2pstats/internal/domain"
)

// fixed 0.1% fee on the sold volume, a policy constant
var feeDivisor = decimal.NewFromInt(1000)

const defaultPrecision int32 = 16

// Derive computes the profit metrics of one aggregate. Undefined when
// either bought or sold crypto volume is zero: zero profit and "no data"
// are different signals, so nothing is coerced to zero here. prec is the
// division precision in decimal places; additions stay exact
func Derive(a *domain.Aggregate, prec int32) domain.Metrics {
	if prec <= 0 {
		prec = defaultPrecision
	}
	if a.BoughtCrypto.IsZero() || a.SoldCrypto.IsZero() {
		return domain.Metrics{}
	}

	avgBuyRate := a.BoughtFiat.DivRound(a.BoughtCrypto, prec)
	avgSellRate := a.SoldFiat.DivRound(a.SoldCrypto, prec)
	if avgBuyRate.IsZero() {
		return domain.Metrics{}
	}

	rate := avgSellRate.DivRound(avgBuyRate, prec)

	// sold * sell/buy - sold - sold*0.1%
	gross := a.SoldCrypto.Mul(avgSellRate).DivRound(avgBuyRate, prec)
	fee := a.SoldCrypto.DivRound(feeDivisor, prec)
	amount := gross.Sub(a.SoldCrypto).Sub(fee)

	return domain.Metrics{ProfitRate: &rate, ProfitAmount: &amount}
}

// DeriveTotals sums every accumulator across the rows and computes both
// profit flavors: ProfitRate/ProfitAmount from the summed volumes and,
// separately, the average of defined per-bucket rates plus the sum of
// defined per-bucket amounts. Averaging per-bucket rates is a materially
// different number than deriving from totals, so both stay named apart
func DeriveTotals(rows []domain.Row, prec int32) domain.Totals {
	if prec <= 0 {
		prec = defaultPrecision
	}

	var t domain.Totals
	rateSum := decimal.Zero
	rateCount := 0

	for i := range rows {
		t.Aggregate.Add(&rows[i].Aggregate)

		if rows[i].Metrics.Defined() {
			rateSum = rateSum.Add(*rows[i].ProfitRate)
			rateCount++
			t.ProfitAmountSum = t.ProfitAmountSum.Add(*rows[i].ProfitAmount)
		}
	}

	t.Metrics = Derive(&t.Aggregate, prec)

	if rateCount > 0 {
		avg := rateSum.DivRound(decimal.NewFromInt(int64(rateCount)), prec)
		t.ProfitRateAvg = &avg
	}

	return t
}
