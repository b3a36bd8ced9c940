// Package api provides the HTTP API for observing and playing a farm session.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/farm"
	"github.com/talgya/vertifarm/internal/persistence"
	"github.com/talgya/vertifarm/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server serves the farm session over HTTP.
type Server struct {
	Eng         *engine.Engine
	DB          *persistence.DB // nil = snapshots disabled
	Hub         *Hub
	Port        int
	AdminKey    string   // Bearer token for POST endpoints. Empty = POST disabled.
	CORSOrigins []string // allowed in addition to localhost dev servers

	// AdminRate caps admin requests per IP per minute. 0 = 600.
	AdminRate int

	srv *http.Server
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	if s.Hub == nil {
		s.Hub = NewHub()
	}
	rate := s.AdminRate
	if rate <= 0 {
		rate = 600
	}
	limiter := NewRateLimiter(rate, time.Minute)
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return s.adminOnly(RateLimitMiddleware(limiter, h))
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/crops", s.handleCrops)
	mux.HandleFunc("/api/v1/ledger", s.handleLedger)
	mux.HandleFunc("/api/v1/market", s.handleMarket)
	mux.HandleFunc("/api/v1/reports", s.handleReports)
	mux.HandleFunc("/api/v1/markets", s.handleMarkets)
	mux.HandleFunc("/api/v1/export", s.handleExport)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// GET shows, POST changes.
	mux.HandleFunc("/api/v1/environment", admin(s.handleEnvironment))
	mux.HandleFunc("/api/v1/notes", admin(s.handleNotes))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/plant", admin(s.handlePlant))
	mux.HandleFunc("/api/v1/remove", admin(s.handleRemove))
	mux.HandleFunc("/api/v1/simulate", admin(s.handleSimulate))
	mux.HandleFunc("/api/v1/market/customers", admin(s.handleCustomers))
	mux.HandleFunc("/api/v1/market/offer", admin(s.handleOffer))
	mux.HandleFunc("/api/v1/market/skip", admin(s.handleSkip))
	mux.HandleFunc("/api/v1/market/sellall", admin(s.handleSellAll))
	mux.HandleFunc("/api/v1/snapshot", admin(s.handleSnapshot))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown disconnects stream subscribers and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Hub != nil {
		s.Hub.Close()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		allowedOrigins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no FARM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// view renders fn's result under the engine lock and writes it afterwards.
func (s *Server) view(w http.ResponseWriter, fn func(sim *engine.Simulation) any) {
	var body []byte
	err := s.Eng.Do(func(sim *engine.Simulation) error {
		var err error
		body, err = json.MarshalIndent(fn(sim), "", "  ")
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
	w.Write([]byte("\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(sim *engine.Simulation) any {
		return map[string]any{
			"name":           "Vertifarm",
			"session_id":     sim.SessionID,
			"month":          sim.Month(),
			"sim_time":       engine.SimTime(sim.Month()),
			"season_over":    sim.Over(),
			"running":        s.Eng.Running(),
			"performance":    sim.Performance(),
			"market_open":    sim.Day != nil && sim.Day.Month == sim.Month(),
			"notes_required": sim.Economics.RequireNotes,
		}
	})
}

func (s *Server) handleCrops(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(sim *engine.Simulation) any {
		return sim.Farm.Registry.All()
	})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	var status farm.Status
	if q := r.URL.Query().Get("status"); q != "" {
		var err error
		if status, err = farm.ParseStatus(q); err != nil {
			writeError(w, err)
			return
		}
	}
	level := r.URL.Query().Get("level")
	s.view(w, func(sim *engine.Simulation) any {
		records := make([]farm.Record, 0, len(sim.Farm.Ledger.Records))
		for _, rec := range sim.Farm.Ledger.Records {
			if status != "" && rec.Status != status {
				continue
			}
			if level != "" && rec.Level != level {
				continue
			}
			records = append(records, rec)
		}
		free := make(map[string]float64, len(sim.Farm.Layout.Levels))
		for _, l := range sim.Farm.Layout.Levels {
			free[l] = sim.Farm.FreeArea(l)
		}
		return map[string]any{
			"records":   records,
			"budget":    sim.Farm.Ledger.Budget,
			"inventory": sim.Farm.Ledger.Inventory,
			"free_area": free,
		}
	})
}

func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Level string  `json:"level"` // empty = ambient
			Var   string  `json:"var"`
			Value float64 `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		v, ok := crops.ParseVar(req.Var)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown variable %q", req.Var), http.StatusBadRequest)
			return
		}
		err := s.Eng.Do(func(sim *engine.Simulation) error {
			if req.Level == "" {
				return sim.SetAmbient(v, req.Value)
			}
			return sim.SetEnvironment(req.Level, v, req.Value)
		})
		if err != nil {
			writeError(w, err)
			return
		}
	}

	s.view(w, func(sim *engine.Simulation) any {
		return map[string]any{
			"environment": sim.Farm.Env,
			"ranges":      sim.Farm.Ranges,
			"layout":      sim.Farm.Layout,
		}
	})
}

// handleNotes shows or replaces the reasons attached to the coming month.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req struct {
			Notes string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Eng.Do(func(sim *engine.Simulation) error {
			return sim.SetNotes(req.Notes)
		}); err != nil {
			writeError(w, err)
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.view(w, func(sim *engine.Simulation) any {
		return map[string]any{
			"notes":    sim.Notes,
			"required": sim.Economics.RequireNotes,
			"limit":    engine.MaxNotesLen,
		}
	})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(sim *engine.Simulation) any {
		out := map[string]any{
			"month":  sim.Market.Month,
			"prices": sim.Market.Entries,
		}
		if sim.Day != nil {
			out["day"] = map[string]any{
				"month":     sim.Day.Month,
				"customers": sim.Day.Customers,
				"pending":   sim.Day.PendingIDs(),
				"revenue":   sim.Day.Revenue,
			}
		}
		return out
	})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	limit := 12
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	s.view(w, func(sim *engine.Simulation) any {
		start := max(0, len(sim.History)-limit)
		return sim.History[start:]
	})
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	s.view(w, func(sim *engine.Simulation) any {
		return sim.Markets
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	var month int
	err := s.Eng.Do(func(sim *engine.Simulation) error {
		month = sim.Month()
		return report.WriteTo(sim, &buf)
	})
	if err != nil {
		slog.Error("export failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="vertifarm-month-%d.xlsx"`, month))
	w.Write(buf.Bytes())
}

func (s *Server) handlePlant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Level string `json:"level"`
		Crop  string `json:"crop"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var ids []farm.RecordID
	var budget float64
	err := s.Eng.Do(func(sim *engine.Simulation) error {
		var err error
		ids, err = sim.Plant(req.Level, req.Crop, req.Count)
		budget = sim.Farm.Ledger.Budget
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ids": ids, "budget": budget})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		IDs    []farm.RecordID `json:"ids"`
		Status string          `json:"status"` // harvested, dead or terminal
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var removed []farm.RecordID
	err := s.Eng.Do(func(sim *engine.Simulation) error {
		switch {
		case req.Status == "":
			if err := sim.Remove(req.IDs); err != nil {
				return err
			}
			removed = req.IDs
			return nil
		case strings.EqualFold(req.Status, "terminal"):
			removed = sim.RemoveTerminal()
			return nil
		}
		status, err := farm.ParseStatus(req.Status)
		if err != nil {
			return err
		}
		if !status.Terminal() {
			return fmt.Errorf("%w: only harvested or dead records can be removed by status", farm.ErrInvalidInput)
		}
		removed = sim.RemoveTerminal(status)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"removed": removed})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tick, err := s.Eng.Step()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, tick)
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var customers []economy.Customer
	s.Eng.Do(func(sim *engine.Simulation) error {
		customers = sim.GenerateMarketCustomers()
		return nil
	})
	writeJSON(w, customers)
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Customer int     `json:"customer"`
		Price    float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var outcome economy.Outcome
	var budget float64
	err := s.Eng.Do(func(sim *engine.Simulation) error {
		var err error
		outcome, err = sim.SubmitOffer(req.Customer, req.Price)
		budget = sim.Farm.Ledger.Budget
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"customer": req.Customer, "outcome": outcome, "budget": budget})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Customer int `json:"customer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	err := s.Eng.Do(func(sim *engine.Simulation) error {
		return sim.SkipCustomer(req.Customer)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"customer": req.Customer, "outcome": economy.Skipped})
}

func (s *Server) handleSellAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var summary economy.Summary
	err := s.Eng.Do(func(sim *engine.Simulation) error {
		if _, err := sim.SellAll(); err != nil {
			return err
		}
		var err error
		summary, err = sim.MarketSummary()
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, summary)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var month int
	err := s.Eng.Do(func(sim *engine.Simulation) error {
		month = sim.Month()
		return s.DB.SaveFarm(sim)
	})
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"month":   month,
		"message": "snapshot saved",
	})
}

// handleStream pushes monthly reports and closed market days over a websocket.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var hello Message
	s.Eng.Do(func(sim *engine.Simulation) error {
		hello = Message{Type: "hello", Month: sim.Month(), Data: sim.Performance()}
		return nil
	})
	s.Hub.Serve(w, r, hello)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, farm.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, farm.ErrInsufficientResource),
		errors.Is(err, economy.ErrCustomerDecided),
		errors.Is(err, economy.ErrOutOfTurn),
		errors.Is(err, engine.ErrNoMarket),
		errors.Is(err, engine.ErrSeasonOver),
		errors.Is(err, engine.ErrNotesRequired),
		errors.Is(err, engine.ErrTickInProgress):
		status = http.StatusConflict
	case errors.Is(err, crops.ErrConfiguration):
		slog.Error("configuration error", "error", err)
	default:
		slog.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
