package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// MakeReportID derives a deterministic ID from the full request: same
// period, granularity and collections -> same ID on every call. Relies on
// encoding/json sorting map keys, so row maps canonicalize for free
func MakeReportID(req *ReportRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize report request: %w", err)
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16]), nil
}

// RowID builds the dedupe key for one raw row inside a report:
// "<report_id>:<collection>:<row_id>"
func RowID(reportID, collection, rowID string) string {
	return fmt.Sprintf("%s:%s:%s", reportID, collection, rowID)
}

// BucketKey is the canonical string form of a bucket start used in cache
// keys and ClickHouse rows
func BucketKey(t time.Time) string {
	return t.Format(time.RFC3339)
}
