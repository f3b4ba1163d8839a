package report

import (
	"time"

	"p2pstats/internal/domain"
)

// bucketIndex maps a bucket start to its position in the generated list.
// Keys are instants (UnixNano) so two representations of the same moment
// land in the same bucket
type bucketIndex map[int64]int

func indexBuckets(buckets []time.Time) bucketIndex {
	idx := make(bucketIndex, len(buckets))
	for i, b := range buckets {
		idx[b.UnixNano()] = i
	}
	return idx
}

// Accumulate folds normalized events into the per-bucket aggregates.
// aggs[i] is owned by buckets[i]; an event whose floored bucket is not in
// the generated list is dropped silently, it never creates a new bucket
// and never gets clipped into a neighbor
func Accumulate(buckets []time.Time, idx bucketIndex, g domain.Granularity, events []Event, aggs []domain.Aggregate) {
	for i := range events {
		ev := &events[i]

		b, err := Floor(ev.Time, g)
		if err != nil {
			continue
		}
		pos, ok := idx[b.UnixNano()]
		if !ok {
			continue // outside the period
		}

		agg := &aggs[pos]
		switch ev.Kind {
		case domain.KindOrder:
			// upstream already filters to relevant orders, no status
			// check at this layer
			agg.OrderCount++
			agg.BoughtFiat = agg.BoughtFiat.Add(ev.Fiat)
			agg.BoughtCrypto = agg.BoughtCrypto.Add(ev.Crypto)

		case domain.KindTrade:
			// cancelled counts, completed sums; anything else is neither
			switch {
			case isCancelled(ev.Status):
				agg.CancelledCount++
			case isCompleted(ev.Status):
				agg.SoldFiat = agg.SoldFiat.Add(ev.Fiat)
				agg.SoldCrypto = agg.SoldCrypto.Add(ev.Crypto)
			}

		case domain.KindTransaction:
			if ev.Status == "DEBIT" {
				agg.NetTxFlow = agg.NetTxFlow.Sub(ev.Crypto)
			} else {
				agg.NetTxFlow = agg.NetTxFlow.Add(ev.Crypto)
			}

		case domain.KindWithdrawal:
			switch {
			case isOnchain(ev.Status):
				agg.WithdrawOnchainCount++
				agg.WithdrawOnchainAmount = agg.WithdrawOnchainAmount.Add(ev.Crypto)
			case isOffchain(ev.Status):
				agg.WithdrawOffchainCount++
				agg.WithdrawOffchainAmount = agg.WithdrawOffchainAmount.Add(ev.Crypto)
			}
		}
	}
}

// MergePeriodStats folds pre-aggregated backend rows into matching
// buckets, same floor and same drop-if-outside policy as raw events
func MergePeriodStats(idx bucketIndex, g domain.Granularity, stats []domain.PeriodStat, aggs []domain.Aggregate) {
	for _, st := range stats {
		ts, ok := parseTime(st.PeriodStart)
		if !ok {
			continue
		}
		b, err := Floor(ts, g)
		if err != nil {
			continue
		}
		pos, ok := idx[b.UnixNano()]
		if !ok {
			continue
		}

		agg := &aggs[pos]
		agg.MakerAdsCount += st.MakerAdsCount
		agg.TakerAdsCount += st.TakerAdsCount
		agg.MakerUpdates += st.MakerUpdates
		agg.TakerUpdates += st.TakerUpdates
	}
}
