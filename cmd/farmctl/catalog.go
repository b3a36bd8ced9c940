package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/vertifarm/internal/crops"
)

func newCropsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "crops",
		Short: "List the crop catalog with ideal growing conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := g.registry()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CROP\tCATEGORY\tDAYS\tSPACE m²\tYIELD kg\tSEED\tIDEAL")
			for _, def := range reg.All() {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					def.Name, def.Category, def.GrowthDays,
					humanize.Ftoa(def.SpaceRequired), humanize.Ftoa(def.MaxYield),
					humanize.CommafWithDigits(def.SeedCost, 2), ideal(def))
			}
			return tw.Flush()
		},
	}
}

func ideal(def *crops.Definition) string {
	parts := make([]string, 0, len(crops.Vars))
	for _, v := range crops.Vars {
		parts = append(parts, fmt.Sprintf("%s=%s±%s", v, humanize.Ftoa(def.Ideal[v]), humanize.Ftoa(def.Tolerance[v])))
	}
	return strings.Join(parts, " ")
}

func newPricesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Show opening market prices under the current tuning",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := g.simulation()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CROP\tPRICE/kg\tPRODUCTION/kg\tSUPPLY CHAIN/kg")
			for _, name := range sim.Farm.Registry.Names() {
				e := sim.Market.Entries[name]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name,
					humanize.CommafWithDigits(e.Price, 2),
					humanize.CommafWithDigits(e.ProductionCost, 2),
					humanize.CommafWithDigits(e.SupplyChain, 2))
			}
			return tw.Flush()
		},
	}
}
