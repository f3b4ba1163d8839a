package report

import (
	"time"

	"p2pstats/internal/domain"
)

// Floor rounds t down to the start of its bucket. The location of t is
// preserved as-is, no timezone conversion happens here
func Floor(t time.Time, g domain.Granularity) (time.Time, error) {
	y, mo, d := t.Date()

	switch g {
	case domain.GranularityHour:
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, t.Location()), nil
	case domain.GranularityDay:
		return time.Date(y, mo, d, 0, 0, 0, 0, t.Location()), nil
	case domain.GranularityWeek:
		// ISO week starts on Monday
		back := (int(t.Weekday()) + 6) % 7
		monday := t.AddDate(0, 0, -back)
		my, mmo, md := monday.Date()
		return time.Date(my, mmo, md, 0, 0, 0, 0, t.Location()), nil
	case domain.GranularityMonth:
		return time.Date(y, mo, 1, 0, 0, 0, 0, t.Location()), nil
	default:
		_, err := domain.ParseGranularity(string(g))
		return time.Time{}, err
	}
}

// Buckets enumerates the ordered, contiguous bucket starts covering the
// period: first the floor of From, last the floor of To, both inclusive.
// Hour/day/week advance by a fixed step, month jumps to the first day of
// the next calendar month. Always at least one bucket, even for From == To
func Buckets(p domain.Period) ([]time.Time, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cur, err := Floor(p.From, p.Granularity)
	if err != nil {
		return nil, err
	}
	end, err := Floor(p.To, p.Granularity)
	if err != nil {
		return nil, err
	}

	var step time.Duration
	switch p.Granularity {
	case domain.GranularityHour:
		step = time.Hour
	case domain.GranularityDay:
		step = 24 * time.Hour
	case domain.GranularityWeek:
		step = 7 * 24 * time.Hour
	}

	buckets := make([]time.Time, 0, 16)
	for !cur.After(end) {
		buckets = append(buckets, cur)
		if p.Granularity == domain.GranularityMonth {
			cur = nextMonth(cur)
		} else {
			cur = cur.Add(step)
		}
	}

	return buckets, nil
}

// cur is already floored to day 1, so AddDate cannot overshoot
func nextMonth(cur time.Time) time.Time {
	y, mo, _ := cur.Date()
	if mo == time.December {
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, cur.Location())
	}
	return time.Date(y, mo+1, 1, 0, 0, 0, 0, cur.Location())
}
