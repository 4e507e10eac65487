// Command loadtest drives a running broker with generated events.
//
// It optionally seeds the broker with generated subscriptions, then runs a
// fixed number of workers that post events to POST /api/v1/events/match for
// the given duration and reports throughput, latency percentiles, cache hit
// counts and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -subs 10000 -duration 30s
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/workload"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/proto"
)

const seedBatchSize = 1000

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Events      []ingestion.EventMessage
}

// workerStats is owned by one worker goroutine and merged after the run.
type workerStats struct {
	requests  int64
	failures  int64
	cacheHits int64
	matched   int64
	latencies []time.Duration
	status    map[int]int64
}

func newWorkerStats() *workerStats {
	return &workerStats{
		latencies: make([]time.Duration, 0, 4096),
		status:    make(map[int]int64),
	}
}

func (w *workerStats) record(latency time.Duration, status int, match *proto.MatchResponse, err error) {
	w.requests++
	if err != nil {
		w.failures++
		return
	}
	w.status[status]++
	if status < 200 || status >= 300 {
		w.failures++
		return
	}
	w.latencies = append(w.latencies, latency)
	if match != nil {
		w.matched += int64(len(match.SubscriptionIDs))
		if match.Cached {
			w.cacheHits++
		}
	}
}

// Stats is the merged result of every worker.
type Stats struct {
	workerStats
}

func mergeStats(workers []*workerStats) *Stats {
	out := &Stats{workerStats: *newWorkerStats()}
	for _, w := range workers {
		out.requests += w.requests
		out.failures += w.failures
		out.cacheHits += w.cacheHits
		out.matched += w.matched
		out.latencies = append(out.latencies, w.latencies...)
		for code, n := range w.status {
			out.status[code] += n
		}
	}
	slices.Sort(out.latencies)
	return out
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the broker")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	nbrSubs := flag.Int("subs", 0, "subscriptions to insert before the run (0 skips seeding)")
	nbrEvents := flag.Int("events", 500, "distinct events to cycle through")
	attrs := flag.Int("attributes", 20, "total attributes")
	preds := flag.Int("predicates", 5, "predicates per subscription")
	eventAttrs := flag.Int("event-attributes", 10, "attributes per event")
	valDom := flag.Int("domain", 1000, "value domain")
	width := flag.Float64("width", 0.5, "predicate width as a fraction of the domain")
	seed := flag.Int64("seed", 1, "workload seed")
	flag.Parse()

	gen := workload.New(*seed)
	events, err := gen.Events(*nbrEvents, *attrs, *eventAttrs, *valDom)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating events: %v\n", err)
		os.Exit(1)
	}
	msgs := make([]ingestion.EventMessage, len(events))
	for i, ev := range events {
		msgs[i] = ingestion.EventMessage{EventID: fmt.Sprintf("load-%d", i), Values: ev.Values}
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Events:      msgs,
	}

	fmt.Printf("load test against %s: %d workers for %s over %d events\n\n",
		cfg.BaseURL, cfg.Concurrency, cfg.Duration, len(cfg.Events))

	if *nbrSubs > 0 {
		subs, err := gen.Subscriptions(*nbrSubs, *attrs, *preds, *valDom, *width)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generating subscriptions: %v\n", err)
			os.Exit(1)
		}
		batch := make([]ingestion.SubscriptionMessage, 0, seedBatchSize)
		for i, sub := range subs {
			msg := ingestion.SubscriptionMessage{ID: sub.ID}
			for _, attr := range sub.Attributes() {
				msg.Predicates = append(msg.Predicates, sub.Predicates[attr])
			}
			batch = append(batch, msg)
			if len(batch) == seedBatchSize || i == len(subs)-1 {
				if err := seedSubscriptions(cfg.BaseURL, batch); err != nil {
					fmt.Fprintf(os.Stderr, "seeding subscriptions: %v\n", err)
					os.Exit(1)
				}
				batch = batch[:0]
			}
		}
		fmt.Printf("seeded %d subscriptions\n\n", len(subs))
	}

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration, *nbrSubs)
}

func seedSubscriptions(baseURL string, subs []ingestion.SubscriptionMessage) error {
	body, err := json.Marshal(ingestion.SubscribeRequest{Subscriptions: subs})
	if err != nil {
		return err
	}
	resp, err := http.Post(baseURL+"/api/v1/subscriptions", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func runLoadTest(cfg Config) *Stats {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	workers := make([]*workerStats, cfg.Concurrency)
	var (
		done atomic.Int64
		wg   sync.WaitGroup
	)
	for w := range workers {
		ws := newWorkerStats()
		workers[w] = ws
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				ev := cfg.Events[i%len(cfg.Events)]
				start := time.Now()
				status, match, err := postEvent(ctx, client, cfg.BaseURL, ev)
				if ctx.Err() != nil && err != nil {
					// deadline cut the request short
					return
				}
				ws.record(time.Since(start), status, match, err)
				done.Add(1)
			}
		}()
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("  %d requests\n", done.Load())
			}
		}
	}()

	wg.Wait()
	fmt.Println()
	return mergeStats(workers)
}

func postEvent(ctx context.Context, client *http.Client, baseURL string, ev ingestion.EventMessage) (int, *proto.MatchResponse, error) {
	resp, err := client.Do(mustNewRequest(ctx, baseURL+"/api/v1/events/match", ev))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var match proto.MatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&match); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}
	return resp.StatusCode, &match, nil
}

func mustNewRequest(ctx context.Context, rawURL string, msg ingestion.EventMessage) *http.Request {
	body, err := json.Marshal(msg)
	if err != nil {
		panic(fmt.Sprintf("encoding event: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func printReport(stats *Stats, duration time.Duration, nbrSubs int) {
	fmt.Println("=== Results ===")
	fmt.Printf("Requests:     %d (%.1f/s)\n", stats.requests, float64(stats.requests)/duration.Seconds())
	fmt.Printf("Failures:     %d\n", stats.failures)
	ok := int64(len(stats.latencies))
	if ok > 0 {
		fmt.Printf("Cache hits:   %d (%.1f%%)\n", stats.cacheHits, float64(stats.cacheHits)/float64(ok)*100)
		avgMatched := float64(stats.matched) / float64(ok)
		fmt.Printf("Avg matched:  %.1f", avgMatched)
		if nbrSubs > 0 {
			fmt.Printf(" (matchability %.4f)", avgMatched/float64(nbrSubs))
		}
		fmt.Println()

		lat := stats.latencies
		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("min %s  p50 %s  p90 %s  p99 %s  max %s\n",
			lat[0], percentile(lat, 50), percentile(lat, 90), percentile(lat, 99), lat[len(lat)-1])
	}

	codes := slices.Sorted(maps.Keys(stats.status))
	if len(codes) > 0 {
		fmt.Println()
		fmt.Println("=== Status Codes ===")
		for _, code := range codes {
			fmt.Printf("  %d: %d\n", code, stats.status[code])
		}
	}

	if stats.requests == 0 {
		fmt.Println("\nno requests completed; is the broker running?")
		os.Exit(1)
	}
}

// percentile uses the nearest-rank method on sorted latencies.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
