// Package report exports a farm session to an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/engine"
)

// Sheet names, in workbook order.
const (
	SheetLedger  = "Ledger"
	SheetMonthly = "Monthly"
	SheetCosts   = "Costs"
	SheetMarket  = "Market"
)

// Workbook builds the session workbook. The caller must Close it.
func Workbook(sim *engine.Simulation) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetLedger); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetMonthly, SheetCosts, SheetMarket} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	steps := []struct {
		sheet string
		rows  [][]any
	}{
		{SheetLedger, ledgerRows(sim)},
		{SheetMonthly, monthlyRows(sim)},
		{SheetCosts, costRows(sim)},
		{SheetMarket, marketRows(sim.Markets)},
	}
	for _, s := range steps {
		if err := writeRows(f, s.sheet, s.rows); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.sheet, err)
		}
	}
	return f, nil
}

// WriteWorkbook saves the session workbook to path.
func WriteWorkbook(sim *engine.Simulation, path string) error {
	f, err := Workbook(sim)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// WriteTo streams the session workbook to w.
func WriteTo(sim *engine.Simulation, w io.Writer) error {
	f, err := Workbook(sim)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func ledgerRows(sim *engine.Simulation) [][]any {
	rows := [][]any{{"ID", "Level", "Crop", "Day Planted", "Age", "Space", "Status", "Health", "Yield", "Reason"}}
	for _, r := range sim.Farm.Ledger.Records {
		rows = append(rows, []any{
			uint64(r.ID), r.Level, r.Crop, r.DayPlanted, r.Age, r.Space,
			string(r.Status), round(r.Health, 4), round(r.Yield, 4), r.Reason,
		})
	}
	return rows
}

func monthlyRows(sim *engine.Simulation) [][]any {
	rows := [][]any{{"Month", "Crop", "Harvested", "Died", "Growing", "Yield (kg)", "Price"}}
	for _, rep := range sim.History {
		for _, cs := range rep.Summary {
			rows = append(rows, []any{
				rep.Month, cs.Crop, cs.Harvested, cs.Died, cs.Growing,
				round(cs.YieldKg, 3), rep.Prices[cs.Crop],
			})
		}
	}
	return rows
}

func costRows(sim *engine.Simulation) [][]any {
	rows := [][]any{{"Month", "Rent", "Seeds", "Electricity", "Water", "Nutrients", "Total", "Budget", "Notes"}}
	for _, rep := range sim.History {
		c := rep.Costs
		rows = append(rows, []any{
			rep.Month, round(c.Rent, 2), round(c.Seeds, 2), round(c.Electricity, 2),
			round(c.Water, 2), round(c.Nutrients, 2), round(c.Total, 2), round(rep.Budget, 2),
			rep.Notes,
		})
	}
	return rows
}

func marketRows(markets []economy.Summary) [][]any {
	rows := [][]any{{"Month", "Revenue", "Accepted", "Rejected", "Skipped", "Unsold Crop", "Unsold (kg)"}}
	for _, m := range markets {
		base := []any{
			m.Month, round(m.Revenue, 2),
			m.Outcomes[economy.Accepted], m.Outcomes[economy.Rejected], m.Outcomes[economy.Skipped],
		}
		if len(m.Leftover) == 0 {
			rows = append(rows, append(base, "", 0.0))
			continue
		}
		leftover := make([]string, 0, len(m.Leftover))
		for crop := range m.Leftover {
			leftover = append(leftover, crop)
		}
		sort.Strings(leftover)
		for _, crop := range leftover {
			row := append(append([]any(nil), base...), crop, round(m.Leftover[crop], 3))
			rows = append(rows, row)
		}
	}
	return rows
}
