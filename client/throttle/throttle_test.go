package throttle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRoundTripper_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		cfg    Config
		expErr error
	}{
		{
			name:   "zero rps",
			cfg:    Config{RPS: 0, Burst: 10},
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "negative rps",
			cfg:    Config{RPS: -5, Burst: 10},
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "zero burst",
			cfg:    Config{RPS: 10, Burst: 0},
			expErr: ErrMustNotBeZero,
		},
		{
			name: "valid",
			cfg:  Config{RPS: 10, Burst: 10},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rt, err := NewRoundTripper(tc.cfg, nil, http.DefaultTransport)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("expected %v, got %v", tc.expErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt == nil {
				t.Fatal("expected a round tripper")
			}
		})
	}
}

func TestRoundTrip_PassesThrough(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	rt, err := NewRoundTripper(Config{RPS: 100, Burst: 10}, slog.Default(), http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	c := &http.Client{Transport: rt}

	for range 3 {
		resp, err := c.Get(ts.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if err := resp.Body.Close(); err != nil {
			t.Fatal(err)
		}
	}

	if hits.Load() != 3 {
		t.Errorf("expected 3 requests through, got %d", hits.Load())
	}
}

func TestRoundTrip_EndedContext(t *testing.T) {
	rt, err := NewRoundTripper(Config{RPS: 1, Burst: 1}, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost/", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := rt.RoundTrip(req); !errors.Is(err, ErrContextEnded) {
		t.Errorf("expected ErrContextEnded, got %v", err)
	}
}

func TestRoundTrip_WaitBlocksUntilToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	rt, err := NewRoundTripper(Config{RPS: 5, Burst: 1}, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	c := &http.Client{Transport: rt}

	start := time.Now()
	for range 2 {
		resp, err := c.Get(ts.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if err := resp.Body.Close(); err != nil {
			t.Fatal(err)
		}
	}

	// Burst 1 at 5 rps means the second request waits roughly 200ms.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected the second request to be throttled, elapsed %v", elapsed)
	}
}
