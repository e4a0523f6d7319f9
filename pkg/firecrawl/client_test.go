package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortex-hq/radar-cli/internal/resilience"
)

func fastRetry() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req scrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://acme.example", req.URL)
		assert.Equal(t, []string{"markdown"}, req.Formats)

		json.NewEncoder(w).Encode(scrapeResponse{
			Success: true,
			Data: Page{
				URL:        "https://acme.example",
				Markdown:   "# Acme\nWe do payments.",
				Title:      "Acme",
				StatusCode: 200,
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))

	page, err := c.Scrape(context.Background(), "https://acme.example")
	require.NoError(t, err)
	assert.Equal(t, "Acme", page.Title)
	assert.Contains(t, page.Markdown, "payments")
}

func TestScrapeRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(scrapeResponse{Success: true, Data: Page{Markdown: "ok"}})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()), WithRateLimit(1000))

	page, err := c.Scrape(context.Background(), "https://acme.example")
	require.NoError(t, err)
	assert.Equal(t, "ok", page.Markdown)
	assert.Equal(t, int32(3), calls.Load())
}

func TestScrapeDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))

	_, err := c.Scrape(context.Background(), "https://acme.example")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestScrapeAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scrapeResponse{Success: false, Error: "blocked by robots.txt"})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))

	_, err := c.Scrape(context.Background(), "https://acme.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by robots.txt")
}

func TestScrapeFillsMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scrapeResponse{Success: true, Data: Page{Markdown: "x"}})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))

	page, err := c.Scrape(context.Background(), "https://acme.example")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example", page.URL)
}
