// Command gardener runs the autonomous grower against a farmsim API.
// Each cycle it observes the farm, plans with fixed rules, acts via the
// admin endpoints and advances one month, until the season ends.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/vertifarm/internal/gardener"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("FARM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("FARM_ADMIN_KEY")
	intervalSec := envIntOrDefault("GARDENER_INTERVAL", 10)
	memoryPath := envOrDefault("GARDENER_MEMORY", "gardener_memory.json")

	if adminKey == "" {
		slog.Error("FARM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("Vertifarm gardener starting",
		"api_url", apiURL,
		"interval", interval,
	)

	observer := gardener.NewObserver(apiURL)
	actor := gardener.NewActor(apiURL, adminKey)
	mem := gardener.LoadMemory(memoryPath)
	policy := gardener.DefaultPolicy()

	slog.Info("waiting for farmsim API...")
	waitForAPI(apiURL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		if done := runCycle(observer, actor, policy, mem); done {
			fmt.Print(mem.Summary(12))
			fmt.Println("Season over. Gardener stopped.")
			return
		}
		select {
		case <-ticker.C:
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Gardener stopped.")
			return
		}
	}
}

// runCycle executes one cycle and reports whether the season is over.
func runCycle(observer *gardener.Observer, actor *gardener.Actor, policy gardener.Policy, mem *gardener.CycleMemory) bool {
	rec, err := gardener.Cycle(observer, actor, policy, mem)
	var se *gardener.StatusError
	switch {
	case rec != nil && rec.Condition == "OVER":
		return true
	case errors.As(err, &se) && se.Code == http.StatusConflict:
		slog.Warn("gardener step refused", "path", se.Path, "reason", se.Body)
		return false
	case err != nil:
		slog.Error("gardener cycle failed", "error", err)
		return false
	}
	slog.Info("gardener cycle complete",
		"month", rec.Month,
		"planted", rec.Planted,
		"harvested", rec.Harvested,
		"died", rec.Died,
		"budget", fmt.Sprintf("%.2f", rec.Budget),
	)
	return false
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the farmsim status endpoint with exponential backoff
// until it responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(apiURL string) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		resp, err := http.Get(apiURL + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("farmsim API is ready")
				return
			}
		}
		if time.Now().After(deadline) {
			slog.Error("farmsim API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("farmsim not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
