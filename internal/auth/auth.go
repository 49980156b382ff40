// Package auth provides Binance API key handling and HMAC-SHA256 request signing.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// APIKeyHeader carries the API key on every authenticated request.
const APIKeyHeader = "X-MBX-APIKEY"

// ErrNoSecret is returned when signing is attempted without a secret key.
var ErrNoSecret = errors.New("secret key is required for signed requests")

// Credentials holds the API key and optional secret used for signing.
type Credentials struct {
	APIKey    string
	SecretKey string

	now func() time.Time
}

// NewCredentials creates credentials. An empty key is allowed for public endpoints.
func NewCredentials(apiKey, secretKey string) *Credentials {
	return &Credentials{
		APIKey:    apiKey,
		SecretKey: secretKey,
		now:       time.Now,
	}
}

// Apply sets the API key header on req when a key is configured.
func (c *Credentials) Apply(req *http.Request) {
	if c == nil || c.APIKey == "" {
		return
	}
	req.Header.Set(APIKeyHeader, c.APIKey)
}

// SignQuery adds timestamp and signature parameters to query.
// Signature = hex(HMAC-SHA256(secret, encoded query including timestamp)).
func (c *Credentials) SignQuery(query url.Values) (url.Values, error) {
	if c == nil || c.SecretKey == "" {
		return nil, ErrNoSecret
	}

	signed := url.Values{}
	for k, v := range query {
		signed[k] = append([]string(nil), v...)
	}
	signed.Set("timestamp", strconv.FormatInt(c.clock().UnixMilli(), 10))
	signed.Set("signature", c.Sign(signed.Encode()))

	return signed, nil
}

// Sign returns the hex HMAC-SHA256 of payload using the secret key.
func (c *Credentials) Sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.SecretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Credentials) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}
