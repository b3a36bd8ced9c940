// Package gardener implements the autonomous grower.
// It observes farm state via the API, decides on a plan with fixed rules,
// and acts via the admin endpoints.
package gardener

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/farm"
)

// FarmSnapshot holds all data collected during an observation cycle.
type FarmSnapshot struct {
	Status      FarmStatus
	Crops       []crops.Definition
	Ledger      LedgerData
	Environment EnvironmentData
	Market      MarketData
}

// FarmStatus mirrors GET /api/v1/status.
type FarmStatus struct {
	Name        string             `json:"name"`
	SessionID   string             `json:"session_id"`
	Month       int                `json:"month"`
	SimTime     string             `json:"sim_time"`
	SeasonOver  bool               `json:"season_over"`
	Running     bool               `json:"running"`
	MarketOpen  bool               `json:"market_open"`
	Performance engine.Performance `json:"performance"`
}

// LedgerData mirrors GET /api/v1/ledger.
type LedgerData struct {
	Records   []farm.Record      `json:"records"`
	Budget    float64            `json:"budget"`
	Inventory map[string]float64 `json:"inventory"`
	FreeArea  map[string]float64 `json:"free_area"`
}

// EnvironmentData mirrors GET /api/v1/environment.
type EnvironmentData struct {
	Environment farm.Environment `json:"environment"`
	Ranges      farm.Ranges      `json:"ranges"`
	Layout      farm.Layout      `json:"layout"`
}

// MarketData mirrors GET /api/v1/market.
type MarketData struct {
	Month  int                             `json:"month"`
	Prices map[string]*economy.MarketEntry `json:"prices"`
}

// Crop returns a catalog entry by name.
func (s *FarmSnapshot) Crop(name string) (*crops.Definition, bool) {
	for i := range s.Crops {
		if s.Crops[i].Name == name {
			return &s.Crops[i], true
		}
	}
	return nil, false
}

// Observer fetches farm state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches all five endpoints and returns a FarmSnapshot.
func (o *Observer) Observe() (*FarmSnapshot, error) {
	snap := &FarmSnapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/crops", &snap.Crops); err != nil {
		return nil, fmt.Errorf("fetch crops: %w", err)
	}
	if err := o.fetchJSON("/api/v1/ledger", &snap.Ledger); err != nil {
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}
	if err := o.fetchJSON("/api/v1/environment", &snap.Environment); err != nil {
		return nil, fmt.Errorf("fetch environment: %w", err)
	}
	if err := o.fetchJSON("/api/v1/market", &snap.Market); err != nil {
		return nil, fmt.Errorf("fetch market: %w", err)
	}

	return snap, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
