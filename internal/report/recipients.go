package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"p2pstats/internal/domain"
)

const topRecipients = 10

// BreakdownRecipients ranks withdrawal recipients by event count and by
// summed amount, keeping the top n of each and folding the rest into an
// "Other" entry. Withdrawals without a recipient tag group under Unknown.
// Returns nil when there is nothing to rank
func BreakdownRecipients(withdrawals []Event, n int) *domain.RecipientBreakdown {
	if len(withdrawals) == 0 {
		return nil
	}

	type acc struct {
		count  uint64
		amount decimal.Decimal
	}
	byRecipient := make(map[string]*acc, len(withdrawals))

	for i := range withdrawals {
		r := withdrawals[i].Recipient
		if r == "" {
			r = "Unknown"
		}
		a, ok := byRecipient[r]
		if !ok {
			a = &acc{}
			byRecipient[r] = a
		}
		a.count++
		a.amount = a.amount.Add(withdrawals[i].Crypto)
	}

	shares := make([]domain.RecipientShare, 0, len(byRecipient))
	for r, a := range byRecipient {
		shares = append(shares, domain.RecipientShare{Recipient: r, Count: a.count, Amount: a.amount})
	}

	return &domain.RecipientBreakdown{
		TopByCount:  top(shares, n, func(a, b *domain.RecipientShare) bool { return a.Count > b.Count }),
		TopByAmount: top(shares, n, func(a, b *domain.RecipientShare) bool { return a.Amount.GreaterThan(b.Amount) }),
	}
}

func top(shares []domain.RecipientShare, n int, more func(a, b *domain.RecipientShare) bool) []domain.RecipientShare {
	sorted := make([]domain.RecipientShare, len(shares))
	copy(sorted, shares)
	sort.SliceStable(sorted, func(i, j int) bool {
		if more(&sorted[i], &sorted[j]) {
			return true
		}
		if more(&sorted[j], &sorted[i]) {
			return false
		}
		// tie-break by name for deterministic output
		return sorted[i].Recipient < sorted[j].Recipient
	})

	if len(sorted) <= n {
		return sorted
	}

	out := make([]domain.RecipientShare, n, n+1)
	copy(out, sorted[:n])

	other := domain.RecipientShare{Recipient: "Other"}
	for _, s := range sorted[n:] {
		other.Count += s.Count
		other.Amount = other.Amount.Add(s.Amount)
	}
	return append(out, other)
}
