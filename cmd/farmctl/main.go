// Command farmctl is the offline companion to farmsim: it inspects the crop
// catalog, plays scripted seasons and exports saved sessions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/vertifarm/internal/config"
	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/engine"
)

// flags shared by every subcommand.
type globals struct {
	cropsPath  string
	tuningPath string
	seed       int64
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "farmctl",
		Short:         "Vertical farm catalog, scripting and export tool",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&g.cropsPath, "crops", "", "crop catalog YAML (default: built-in)")
	root.PersistentFlags().StringVar(&g.tuningPath, "tuning", "", "economics YAML (default: built-in)")
	root.PersistentFlags().Int64Var(&g.seed, "seed", 1, "random seed")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newCropsCmd(g),
		newPricesCmd(g),
		newRunCmd(g),
		newExportCmd(g),
		newJournalCmd(),
	)
	return root
}

func (g *globals) registry() (*crops.Registry, error) {
	if g.cropsPath == "" {
		return crops.Default(), nil
	}
	return crops.Load(g.cropsPath)
}

func (g *globals) simulation() (*engine.Simulation, error) {
	reg, err := g.registry()
	if err != nil {
		return nil, err
	}
	econ, err := config.LoadEconomics(g.tuningPath)
	if err != nil {
		return nil, err
	}
	sim, err := engine.NewSimulation(reg, econ, g.seed)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	return sim, nil
}
