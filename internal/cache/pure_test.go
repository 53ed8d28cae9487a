package cache

import (
	"context"
	"testing"
	"time"
)

func TestHashIP_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"

	if hashIP(ip) != hashIP(ip) {
		t.Error("Same IP should produce same hash")
	}
}

func TestHashIP_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv6 localhost", "::1"},
		{"IPv6 full", "2001:0db8:85a3:0000:0000:8a2e:0370:7334"},
		{"empty", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := len(hashIP(tt.ip)); got != 16 {
				t.Errorf("hashIP(%q) length = %d, want 16", tt.ip, got)
			}
		})
	}
}

func TestHashIP_Different(t *testing.T) {
	t.Parallel()

	if hashIP("10.0.0.1") == hashIP("10.0.0.2") {
		t.Error("Different IPs should produce different hashes")
	}
}

func TestParseBucketResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reply      []int64
		allowed    bool
		retryAfter time.Duration
		remaining  int64
		wantErr    bool
	}{
		{"allowed", []int64{1, 0, 4}, true, 0, 4, false},
		{"limited", []int64{0, 2, 0}, false, 2 * time.Second, 0, false},
		{"malformed fails open", []int64{0}, true, 0, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseBucketResult(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBucketResult() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.allowed)
			}
			if got.RetryAfter != tt.retryAfter {
				t.Errorf("RetryAfter = %v, want %v", got.RetryAfter, tt.retryAfter)
			}
			if got.Remaining != tt.remaining {
				t.Errorf("Remaining = %d, want %d", got.Remaining, tt.remaining)
			}
		})
	}
}

func TestCheckRegisterRateLimit_DisabledRate(t *testing.T) {
	t.Parallel()

	// A zero rate never touches Redis.
	c := &Cache{}
	got, err := c.CheckRegisterRateLimit(context.Background(), "10.0.0.1", 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Allowed {
		t.Error("expected request to be allowed")
	}
}

func TestBucketTTL_OutlivesRefill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rate  float64
		burst int
		want  time.Duration
	}{
		{"default limit", 0.5, 5, 10*time.Second + rateLimitRegisterTTLSlack},
		{"slow refill", 0.01, 5, 500*time.Second + rateLimitRegisterTTLSlack},
		{"fractional refill rounds up", 3, 5, 2*time.Second + rateLimitRegisterTTLSlack},
		{"fast refill", 100, 1, time.Second + rateLimitRegisterTTLSlack},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := bucketTTL(tt.rate, tt.burst)
			if got != tt.want {
				t.Errorf("bucketTTL(%v, %d) = %v, want %v", tt.rate, tt.burst, got, tt.want)
			}

			refill := time.Duration(float64(tt.burst) / tt.rate * float64(time.Second))
			if got <= refill {
				t.Errorf("TTL %v expires before the bucket refills (%v)", got, refill)
			}
		})
	}
}
