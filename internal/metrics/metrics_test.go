package metrics

import (
	"strings"
	"testing"
)

func TestExport_IncludesRecordedCounters(t *testing.T) {
	RecordRequest("GET", "/s/golang", 200, 42)
	RecordCacheOutcome("fresh")
	RecordSearchRetry429()
	RecordCrawlRequest()
	RecordSweeperDeletes(3)

	out := Export()

	checks := []string{
		`digestgate_requests_total{method="GET",path="/s/golang",status="200"}`,
		`digestgate_cache_outcomes_total{outcome="fresh"}`,
		"digestgate_search_retries_429_total",
		"digestgate_crawl_requests_total",
		"digestgate_sweeper_files_deleted_total",
	}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Fatalf("expected exported metrics to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRecordSweeperDeletes_IgnoresNonPositive(t *testing.T) {
	before := sweeperFilesDeleted
	RecordSweeperDeletes(0)
	RecordSweeperDeletes(-5)
	if sweeperFilesDeleted != before {
		t.Fatalf("expected non-positive deletes to be ignored")
	}
}
