package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	accounts    int
	amount      string
)

// Metrics
var (
	totalApprovals uint64
	approved200    uint64
	denied402      uint64
	conflict409    uint64
	requestFailed  uint64
	failOther      uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&accounts, "accounts", 1000, "Number of seeded accounts")
	flag.StringVar(&amount, "amount", "1.00", "Debit amount per transaction")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			worker(gctx)
			return nil
		})
	}
	_ = g.Wait()

	printResults(time.Since(start))
}

// worker requests a debit and immediately approves it, so under the hotspot
// workload many approvals race on the same account version.
func worker(ctx context.Context) {
	client := &http.Client{Timeout: 5 * time.Second}

	for ctx.Err() == nil {
		account := pickAccount()
		key := uuid.NewString()

		txUUID, ok := requestDebit(client, account, key)
		if !ok {
			atomic.AddUint64(&requestFailed, 1)
			continue
		}

		req, _ := http.NewRequest(http.MethodPut, targetURL+"/api/v1/transactions/"+txUUID+"/approve",
			bytes.NewBufferString(`{"issued_by":"benchmark"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalApprovals, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			atomic.AddUint64(&approved200, 1)
		case http.StatusPaymentRequired:
			atomic.AddUint64(&denied402, 1)
		case http.StatusConflict:
			atomic.AddUint64(&conflict409, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func requestDebit(client *http.Client, account, key string) (string, bool) {
	body, _ := json.Marshal(map[string]string{
		"direction":   "debit",
		"amount":      amount,
		"description": "benchmark",
		"issued_by":   "benchmark",
	})
	req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/v1/accounts/"+account+"/transactions", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)

	resp, err := client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", false
	}

	var pending struct {
		UUID string `json:"uuid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
		return "", false
	}
	return pending.UUID, true
}

// pickAccount mirrors the seeder's numbering (ACC000001..).
func pickAccount() string {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes to Account 1 & 2
		if rand.Float32() < 0.90 {
			return fmt.Sprintf("ACC%06d", rand.Intn(2)+1)
		}
	}
	return fmt.Sprintf("ACC%06d", rand.Intn(accounts)+1)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalApprovals)
	ok := atomic.LoadUint64(&approved200)
	denied := atomic.LoadUint64(&denied402)
	conflicts := atomic.LoadUint64(&conflict409)
	reqFail := atomic.LoadUint64(&requestFailed)
	fErr := atomic.LoadUint64(&failOther)

	var conflictRate float64
	if total > 0 {
		conflictRate = float64(conflicts) / float64(total) * 100
	}

	results := map[string]any{
		"workload":            workload,
		"duration_sec":        d.Seconds(),
		"total_approvals":     total,
		"throughput_tps":      float64(total) / d.Seconds(),
		"approved":            ok,
		"denied_insufficient": denied,
		"aborts_conflict":     conflicts,
		"conflict_rate_pct":   conflictRate,
		"request_failures":    reqFail,
		"errors":              fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
