package gardener

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/vertifarm/internal/engine"
)

// Outcome summarizes what executing a plan did.
type Outcome struct {
	Executed int                `json:"executed"`
	Planted  int                `json:"planted"`
	Report   *engine.TickReport `json:"report,omitempty"`
}

// Actor executes plan steps via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Act runs the plan's steps in order and stops at the first failure.
func (a *Actor) Act(plan *Plan) (*Outcome, error) {
	out := &Outcome{}
	for _, s := range plan.Steps {
		if err := a.step(s, out); err != nil {
			return out, fmt.Errorf("%s: %w", s.Kind, err)
		}
		out.Executed++
	}
	return out, nil
}

func (a *Actor) step(s Step, out *Outcome) error {
	switch s.Kind {
	case StepRemove:
		return a.post("/api/v1/remove", map[string]any{"status": "terminal"}, nil)
	case StepSell:
		if err := a.post("/api/v1/market/customers", nil, nil); err != nil {
			return err
		}
		return a.post("/api/v1/market/sellall", nil, nil)
	case StepAmbient:
		return a.post("/api/v1/environment", map[string]any{"var": s.Var, "value": s.Value}, nil)
	case StepEnvironment:
		return a.post("/api/v1/environment", map[string]any{"level": s.Level, "var": s.Var, "value": s.Value}, nil)
	case StepPlant:
		if err := a.post("/api/v1/plant", map[string]any{"level": s.Level, "crop": s.Crop, "count": s.Count}, nil); err != nil {
			return err
		}
		out.Planted += s.Count
		return nil
	case StepNotes:
		return a.post("/api/v1/notes", map[string]any{"notes": s.Text}, nil)
	case StepSimulate:
		var report engine.TickReport
		if err := a.post("/api/v1/simulate", nil, &report); err != nil {
			return err
		}
		out.Report = &report
		return nil
	default:
		return fmt.Errorf("unknown step %q", s.Kind)
	}
}

// post sends body as JSON and decodes the response into target when given.
func (a *Actor) post(path string, body, target any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// StatusError is a non-200 admin response.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("POST %s failed (%d): %s", e.Path, e.Code, e.Body)
}
