// Package entropy supplies the randomness behind disturbance rolls and market
// generation. Every draw goes through a Source so runs can be replayed from a
// seed; the seed itself may come from random.org, falling back to crypto/rand.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	mrand "math/rand"
)

// Source is the random stream consumed by the simulation.
type Source interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// New returns a deterministic Source for the given seed.
func New(seed int64) Source {
	return mrand.New(mrand.NewSource(seed))
}

// Client fetches seeds from random.org.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: "https://api.random.org/json-rpc/4/invoke",
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a fresh seed. It never fails: when random.org is unavailable
// (or the client is nil) the seed comes from crypto/rand.
func (c *Client) Seed() int64 {
	if c.Enabled() {
		seed, err := c.fetch()
		if err == nil {
			return seed
		}
		slog.Debug("random.org seed failed, using crypto/rand", "error", err)
	}
	return CryptoSeed()
}

func (c *Client) fetch() (int64, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateIntegers",
		"params": map[string]any{
			"apiKey": c.apiKey,
			"n":      2,
			"min":    0,
			"max":    1<<31 - 1,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}

	var result struct {
		Result struct {
			Random struct {
				Data []int64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}
	if result.Error != nil {
		return 0, fmt.Errorf("api: %s", result.Error.Message)
	}
	data := result.Result.Random.Data
	if len(data) < 2 {
		return 0, fmt.Errorf("api: short response (%d values)", len(data))
	}
	slog.Debug("random.org seed fetched")
	return data[0]<<31 | data[1], nil
}

// CryptoSeed returns a seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}
