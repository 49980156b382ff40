package auth

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestCredentials_Sign(t *testing.T) {
	// Example from the Binance signed endpoint documentation.
	creds := NewCredentials(
		"vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A",
		"NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j",
	)
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"

	if got := creds.Sign(payload); got != want {
		t.Errorf("Sign() = %q, want %q", got, want)
	}
}

func TestCredentials_SignQuery(t *testing.T) {
	creds := NewCredentials("key", "secret")
	creds.now = func() time.Time { return time.UnixMilli(1700000000000) }

	query := url.Values{"symbol": {"BTCUSDT"}}
	signed, err := creds.SignQuery(query)
	if err != nil {
		t.Fatalf("SignQuery failed: %v", err)
	}

	if signed.Get("timestamp") != "1700000000000" {
		t.Errorf("timestamp = %q, want %q", signed.Get("timestamp"), "1700000000000")
	}
	if len(signed.Get("signature")) != 64 {
		t.Errorf("signature length = %d, want 64 hex chars", len(signed.Get("signature")))
	}
	if query.Get("timestamp") != "" {
		t.Error("SignQuery must not modify the input query")
	}

	// Signature covers the encoded query without the signature itself.
	unsigned := url.Values{"symbol": {"BTCUSDT"}, "timestamp": {"1700000000000"}}
	if want := creds.Sign(unsigned.Encode()); signed.Get("signature") != want {
		t.Errorf("signature = %q, want %q", signed.Get("signature"), want)
	}
}

func TestCredentials_SignQuery_NoSecret(t *testing.T) {
	creds := NewCredentials("key", "")
	if _, err := creds.SignQuery(url.Values{}); !errors.Is(err, ErrNoSecret) {
		t.Errorf("SignQuery() error = %v, want ErrNoSecret", err)
	}
}

func TestCredentials_Apply(t *testing.T) {
	tests := []struct {
		name  string
		creds *Credentials
		want  string
	}{
		{"with key", NewCredentials("abc", ""), "abc"},
		{"empty key", NewCredentials("", ""), ""},
		{"nil credentials", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "https://api.binance.com/api/v3/historicalTrades", nil)
			tt.creds.Apply(req)
			if got := req.Header.Get(APIKeyHeader); got != tt.want {
				t.Errorf("%s = %q, want %q", APIKeyHeader, got, tt.want)
			}
		})
	}
}
