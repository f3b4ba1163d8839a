package dedupe

import "context"

// General contract for row deduping (redis, in-memory, bloom, etc.)
type Deduper interface {
	// if alreadySeen=true -> duplicate, the row can be skipped
	Seen(ctx context.Context, id string) (alreadySeen bool, err error)
}
