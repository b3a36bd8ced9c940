// Command farmsim runs a vertical farm session behind the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/vertifarm/internal/api"
	"github.com/talgya/vertifarm/internal/config"
	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/entropy"
	"github.com/talgya/vertifarm/internal/persistence"
)

func main() {
	if err := run(); err != nil {
		slog.Error("farmsim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// ── Catalog and tuning ────────────────────────────────────────────
	reg := crops.Default()
	if cfg.CropsPath != "" {
		if reg, err = crops.Load(cfg.CropsPath); err != nil {
			return err
		}
	}
	econ, err := config.LoadEconomics(cfg.TuningPath)
	if err != nil {
		return err
	}
	slog.Info("catalog loaded", "crops", reg.Len(), "levels", len(econ.Layout.Levels), "months", econ.MaxMonths)

	seed := cfg.Seed
	if seed == 0 {
		rng := entropy.NewClient(cfg.RandomOrg)
		seed = rng.Seed()
		slog.Info("seed drawn", "random_org", rng.Enabled())
	}

	sim, err := engine.NewSimulation(reg, econ, seed)
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	if db.HasFarmState() {
		slog.Info("found saved farm state, loading...")
		if err := db.LoadFarm(sim); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	} else if err := db.SaveFarm(sim); err != nil {
		return fmt.Errorf("initial save: %w", err)
	}

	// ── Journal ───────────────────────────────────────────────────────
	var journal *persistence.Journal
	if cfg.JournalDir != "" {
		journal = persistence.NewJournal(cfg.JournalDir)
		defer journal.Close()
		slog.Info("journal enabled", "dir", cfg.JournalDir)
	}

	// ── Engine ────────────────────────────────────────────────────────
	hub := api.NewHub()
	eng := engine.NewEngine(sim)
	eng.OnMonth = func(sim *engine.Simulation, report *engine.TickReport) {
		if err := db.SaveFarm(sim); err != nil {
			slog.Error("monthly save failed", "error", err)
		}
		// A market day open during the previous month closes at the start of this one.
		closed := false
		if n := len(sim.Markets); n > 0 && sim.Markets[n-1].Month == report.Month-1 {
			m := sim.Markets[n-1]
			closed = true
			hub.Broadcast(api.Message{Type: "market", Month: m.Month, Data: m})
			if journal != nil {
				if err := journal.WriteMarket(sim.SessionID, m); err != nil {
					slog.Error("journal write failed", "error", err)
				}
			}
		}
		if journal != nil {
			if err := journal.WriteReport(sim.SessionID, report); err != nil {
				slog.Error("journal write failed", "error", err)
			}
		}
		hub.Broadcast(api.Message{Type: "month", Month: report.Month, Data: report})
		slog.Debug("month published", "month", report.Month, "market_closed", closed)
	}
	if cfg.Autoplay > 0 {
		eng.Interval = cfg.Autoplay
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("FARM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Eng:         eng,
		DB:          db,
		Hub:         hub,
		Port:        cfg.APIPort,
		AdminKey:    cfg.AdminKey,
		CORSOrigins: cfg.CORSOrigins,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nVertifarm session %s: %s, budget %.2f\n",
		sim.SessionID, engine.SimTime(sim.Month()), sim.Farm.Ledger.Budget)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)

	if cfg.Autoplay > 0 {
		fmt.Printf("Autoplay every %s... (Ctrl+C to stop)\n", cfg.Autoplay)
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("engine stopped", "error", err)
		}
		if ctx.Err() == nil {
			fmt.Println("Season over. API still serving (Ctrl+C to stop).")
			<-ctx.Done()
		}
	} else {
		fmt.Println("Waiting for POST /api/v1/simulate... (Ctrl+C to stop)")
		<-ctx.Done()
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := eng.Do(db.SaveFarm); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	fmt.Println("Farm stopped. State saved.")
	return nil
}
