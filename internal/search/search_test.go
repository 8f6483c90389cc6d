package search

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"digestgate/internal/model"
)

func TestSearch_ParsesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "golang" {
			t.Errorf("expected q=golang, got %q", r.URL.Query().Get("q"))
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":"golang","number_of_results":1,"results":[{"url":"https://go.dev","title":"Go"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	resp, err := c.Search(t.Context(), model.SearchQuery{Text: "golang"}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].URL != "https://go.dev" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

func TestSearch_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":"golang","number_of_results":0,"results":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Search(t.Context(), model.SearchQuery{Text: "golang"}, Options{})
	if err != nil {
		t.Fatalf("expected eventual success after 429 retry, got %v", err)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected at least 2 calls (one 429, one success), got %d", calls)
	}
}

func TestSearch_FailsFastOnNon429Error(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Search(t.Context(), model.SearchQuery{Text: "golang"}, Options{})
	if err == nil {
		t.Fatalf("expected an error for a non-429 failure")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one call for a non-retryable failure, got %d", calls)
	}
}

func TestBuildURL_JoinsListsWithCommas(t *testing.T) {
	c := NewClient("http://searxng.local", time.Second)
	u, err := c.buildURL(
		model.SearchQuery{Text: "golang", Categories: []string{"general", "news"}, Engines: []string{"google"}},
		Options{PageNumber: 2, EnabledEngines: []string{"bing"}, TimeRange: "week"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "http://searxng.local/search?categories=general%2Cnews&enabled_engines=bing&engines=google&format=json&pageno=2&q=golang&time_range=week"
	if u != want {
		t.Fatalf("unexpected url:\n got: %s\nwant: %s", u, want)
	}
}
