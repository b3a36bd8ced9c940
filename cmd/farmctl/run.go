package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/persistence"
	"github.com/talgya/vertifarm/internal/report"
	"github.com/talgya/vertifarm/internal/scenario"
)

func newRunCmd(g *globals) *cobra.Command {
	var xlsxPath, dbPath string
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Play a scripted season and print the transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			sim, err := g.simulation()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			lines, runErr := scenario.Run(sim, args[0], string(src))
			for _, l := range lines {
				fmt.Fprintln(out, l)
			}
			printPerformance(cmd, sim)

			if xlsxPath != "" {
				if err := report.WriteWorkbook(sim, xlsxPath); err != nil {
					return err
				}
				fmt.Fprintf(out, "workbook written to %s\n", xlsxPath)
			}
			if dbPath != "" {
				db, err := persistence.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.SaveFarm(sim); err != nil {
					return err
				}
				fmt.Fprintf(out, "session %s saved to %s\n", sim.SessionID, dbPath)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write a workbook of the season")
	cmd.Flags().StringVar(&dbPath, "db", "", "save the final state to a SQLite database")
	return cmd
}

func printPerformance(cmd *cobra.Command, sim *engine.Simulation) {
	p := sim.Performance()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "month\t%d (%d left)\n", p.Month, p.MonthsLeft)
	fmt.Fprintf(tw, "budget\t%s\n", humanize.CommafWithDigits(p.Budget, 2))
	fmt.Fprintf(tw, "revenue\t%s\n", humanize.CommafWithDigits(p.Revenue, 2))
	fmt.Fprintf(tw, "costs\t%s\n", humanize.CommafWithDigits(p.Costs, 2))
	fmt.Fprintf(tw, "profit\t%s\n", humanize.CommafWithDigits(p.Profit, 2))
	fmt.Fprintf(tw, "inventory\t%s kg (%s)\n", humanize.Ftoa(p.InventoryKg), humanize.CommafWithDigits(p.InventoryValue, 2))
	tw.Flush()
}

func newExportCmd(g *globals) *cobra.Command {
	var dbPath, xlsxPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a saved session to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if !db.HasFarmState() {
				return fmt.Errorf("no saved session in %s", dbPath)
			}
			sim, err := g.simulation()
			if err != nil {
				return err
			}
			if err := db.LoadFarm(sim); err != nil {
				return err
			}
			if err := report.WriteWorkbook(sim, xlsxPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s (%s) written to %s\n",
				sim.SessionID, engine.SimTime(sim.Month()), xlsxPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "data/vertifarm.db", "SQLite database")
	cmd.Flags().StringVarP(&xlsxPath, "out", "o", "vertifarm.xlsx", "workbook path")
	return cmd
}

func newJournalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "journal <file.jsonl.zst>",
		Short: "Print the entries of a journal file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := persistence.ReadJournal(args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSESSION\tKIND\tMONTH\tSIZE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					e.Time.Format(time.RFC3339), e.Session, e.Kind, e.Month,
					humanize.Bytes(uint64(len(e.Data))))
			}
			return tw.Flush()
		},
	}
}
