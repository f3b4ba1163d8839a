//go:build ignore

// Run: go run ./build-tools/loadgen.go -addr http://localhost:8080 -reports 10 -rows 500 -days 7

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	mrand "math/rand"
	"net/http"
	"os"
	"time"
)

type collection struct {
	Name   string              `json:"name"`
	Kind   string              `json:"kind"`
	Fields map[string][]string `json:"fields"`
	Rows   []map[string]any    `json:"rows"`
}

type reportRequest struct {
	From        string       `json:"from"`
	To          string       `json:"to"`
	Granularity string       `json:"granularity"`
	Collections []collection `json:"collections"`
}

func main() {
	var (
		addr    = flag.String("addr", "http://localhost:8080", "reporter base URL")
		token   = flag.String("token", "", "bearer token, empty when jwt is disabled")
		reports = flag.Int("reports", 10, "how many reports to request")
		rows    = flag.Int("rows", 500, "rows per collection")
		days    = flag.Int("days", 7, "period length in days")
		seed    = flag.Int64("seed", 42, "rng seed")
	)
	flag.Parse()

	rng := mrand.New(mrand.NewSource(*seed))
	client := &http.Client{Timeout: 60 * time.Second}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -*days)

	var totalDur time.Duration
	for i := 0; i < *reports; i++ {
		req := reportRequest{
			From:        start.Format("2006-01-02"),
			To:          end.Format("2006-01-02"),
			Granularity: "day",
			Collections: []collection{
				makeOrders(rng, start, end, *rows),
				makeTrades(rng, start, end, *rows),
				makeWithdrawals(rng, start, end, *rows/10),
			},
		}

		body, err := json.Marshal(req)
		if err != nil {
			fmt.Printf("marshal error: %v\n", err)
			os.Exit(1)
		}

		httpReq, err := http.NewRequest(http.MethodPost, *addr+"/api/reports/", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("request error: %v\n", err)
			os.Exit(1)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if *token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+*token)
		}

		begin := time.Now()
		resp, err := client.Do(httpReq)
		if err != nil {
			fmt.Printf("post error: %v\n", err)
			os.Exit(1)
		}
		dur := time.Since(begin)
		totalDur += dur

		fmt.Printf("report %d: status=%d bytes=%d dur=%s\n", i+1, resp.StatusCode, resp.ContentLength, dur)
		_ = resp.Body.Close()
	}

	fmt.Printf("done: %d reports, avg=%s\n", *reports, totalDur/time.Duration(*reports))
}

func makeOrders(rng *mrand.Rand, start, end time.Time, n int) collection {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		amount := 1 + rng.Float64()*50
		price := amount * (40 + rng.Float64()*4)
		rows = append(rows, map[string]any{
			"orderId":    fmt.Sprintf("o-%d", i),
			"createTime": randomTS(rng, start, end),
			"totalPrice": fmt.Sprintf("%.2f", price),
			"amount":     fmt.Sprintf("%.8f", amount),
		})
	}
	return collection{
		Name: "orders",
		Kind: "order",
		Fields: map[string][]string{
			"id":     {"orderId"},
			"time":   {"createTime"},
			"fiat":   {"totalPrice"},
			"crypto": {"amount"},
		},
		Rows: rows,
	}
}

func makeTrades(rng *mrand.Rand, start, end time.Time, n int) collection {
	statuses := []string{"COMPLETED", "COMPLETED", "COMPLETED", "CANCELLED", "PENDING"}
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		amount := 1 + rng.Float64()*50
		price := amount * (41 + rng.Float64()*4)
		rows = append(rows, map[string]any{
			"tradeId":     fmt.Sprintf("t-%d", i),
			"createTime":  randomTS(rng, start, end),
			"totalPrice":  fmt.Sprintf("%.2f", price),
			"amount":      fmt.Sprintf("%.8f", amount),
			"orderStatus": statuses[rng.Intn(len(statuses))],
		})
	}
	return collection{
		Name: "trades",
		Kind: "trade",
		Fields: map[string][]string{
			"id":     {"tradeId"},
			"time":   {"createTime"},
			"fiat":   {"totalPrice"},
			"crypto": {"amount"},
			"status": {"orderStatus"},
		},
		Rows: rows,
	}
}

func makeWithdrawals(rng *mrand.Rand, start, end time.Time, n int) collection {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, map[string]any{
			"txId":         fmt.Sprintf("w-%d", i),
			"applyTime":    randomTS(rng, start, end),
			"amount":       fmt.Sprintf("%.8f", 1+rng.Float64()*100),
			"transferType": rng.Intn(2),
			"address":      fmt.Sprintf("addr-%d", rng.Intn(20)),
		})
	}
	return collection{
		Name: "withdrawals",
		Kind: "withdrawal",
		Fields: map[string][]string{
			"id":        {"txId"},
			"time":      {"applyTime"},
			"crypto":    {"amount"},
			"status":    {"transferType"},
			"recipient": {"address"},
		},
		Rows: rows,
	}
}

func randomTS(rng *mrand.Rand, start, end time.Time) string {
	span := end.Sub(start)
	return start.Add(time.Duration(rng.Int63n(int64(span)))).Format(time.RFC3339)
}
