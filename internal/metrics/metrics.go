// Package metrics provides simple Prometheus-style counters for HTTP
// requests, cache outcomes, retries, and the screenshot sweeper. This is
// intentionally minimal and in-memory only.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	cacheOutcomesTotal = make(map[string]int64) // fresh | stale | miss

	searchRetries429Total int64
	crawlRequestsTotal    int64
	sweeperFilesDeleted   int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordCacheOutcome increments the counter for a C2 lookup outcome.
func RecordCacheOutcome(outcome string) {
	mu.Lock()
	defer mu.Unlock()
	cacheOutcomesTotal[outcome]++
}

// RecordSearchRetry429 increments the count of C1 429-triggered retries.
func RecordSearchRetry429() {
	mu.Lock()
	defer mu.Unlock()
	searchRetries429Total++
}

// RecordCrawlRequest increments the count of C7 crawl requests handled.
func RecordCrawlRequest() {
	mu.Lock()
	defer mu.Unlock()
	crawlRequestsTotal++
}

// RecordSweeperDeletes adds n to the count of screenshot files unlinked
// by the background sweeper.
func RecordSweeperDeletes(n int64) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	sweeperFilesDeleted += n
}

// Export renders all counters as Prometheus text-exposition format.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP digestgate_requests_total Total HTTP requests by method, path, and status\n")
	b.WriteString("# TYPE digestgate_requests_total counter\n")

	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})
	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "digestgate_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP digestgate_request_latency_ms_sum Sum of request latencies in ms\n")
	b.WriteString("# TYPE digestgate_request_latency_ms_sum counter\n")
	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Path != latKeys[j].Path {
			return latKeys[i].Path < latKeys[j].Path
		}
		return latKeys[i].Method < latKeys[j].Method
	})
	for _, k := range latKeys {
		fmt.Fprintf(&b, "digestgate_request_latency_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "digestgate_request_latency_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP digestgate_cache_outcomes_total Search cache lookups by outcome\n")
	b.WriteString("# TYPE digestgate_cache_outcomes_total counter\n")
	var outcomes []string
	for o := range cacheOutcomesTotal {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(&b, "digestgate_cache_outcomes_total{outcome=\"%s\"} %d\n", o, cacheOutcomesTotal[o])
	}

	b.WriteString("# HELP digestgate_search_retries_429_total Total C1 retries triggered by HTTP 429\n")
	b.WriteString("# TYPE digestgate_search_retries_429_total counter\n")
	fmt.Fprintf(&b, "digestgate_search_retries_429_total %d\n", searchRetries429Total)

	b.WriteString("# HELP digestgate_crawl_requests_total Total C7 crawl requests handled\n")
	b.WriteString("# TYPE digestgate_crawl_requests_total counter\n")
	fmt.Fprintf(&b, "digestgate_crawl_requests_total %d\n", crawlRequestsTotal)

	b.WriteString("# HELP digestgate_sweeper_files_deleted_total Total screenshot files unlinked by the TTL sweeper\n")
	b.WriteString("# TYPE digestgate_sweeper_files_deleted_total counter\n")
	fmt.Fprintf(&b, "digestgate_sweeper_files_deleted_total %d\n", sweeperFilesDeleted)

	return b.String()
}
