// Package persistence provides SQLite-based farm session storage and a
// compressed journal of monthly reports.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/vertifarm/internal/crops"
	"github.com/talgya/vertifarm/internal/economy"
	"github.com/talgya/vertifarm/internal/engine"
	"github.com/talgya/vertifarm/internal/farm"
)

// DB wraps a SQLite connection for farm state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY,
		level TEXT NOT NULL,
		crop TEXT NOT NULL,
		day_planted INTEGER NOT NULL,
		age INTEGER NOT NULL,
		space REAL NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL,
		violated_json TEXT NOT NULL,
		health REAL NOT NULL,
		yield REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inventory (
		crop TEXT PRIMARY KEY,
		kg REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		month INTEGER PRIMARY KEY,
		report_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS markets (
		month INTEGER PRIMARY KEY,
		summary_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS farm_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type recordRow struct {
	ID         uint64  `db:"id"`
	Level      string  `db:"level"`
	Crop       string  `db:"crop"`
	DayPlanted int     `db:"day_planted"`
	Age        int     `db:"age"`
	Space      float64 `db:"space"`
	Status     string  `db:"status"`
	Reason     string  `db:"reason"`
	Violated   string  `db:"violated_json"`
	Health     float64 `db:"health"`
	Yield      float64 `db:"yield"`
}

type inventoryRow struct {
	Crop string  `db:"crop"`
	Kg   float64 `db:"kg"`
}

func saveRecords(tx *sqlx.Tx, records []farm.Record) error {
	if _, err := tx.Exec("DELETE FROM records"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO records
		(id, level, crop, day_planted, age, space, status, reason, violated_json, health, yield)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		violated, _ := json.Marshal(r.Violated)
		_, err := stmt.Exec(
			uint64(r.ID), r.Level, r.Crop, r.DayPlanted, r.Age, r.Space,
			string(r.Status), r.Reason, string(violated), r.Health, r.Yield,
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}
	return nil
}

func saveInventory(tx *sqlx.Tx, inv map[string]float64) error {
	if _, err := tx.Exec("DELETE FROM inventory"); err != nil {
		return err
	}
	for crop, kg := range inv {
		if _, err := tx.Exec("INSERT INTO inventory (crop, kg) VALUES (?, ?)", crop, kg); err != nil {
			return fmt.Errorf("insert inventory %s: %w", crop, err)
		}
	}
	return nil
}

func saveHistory(tx *sqlx.Tx, reports []*engine.TickReport, markets []economy.Summary) error {
	for _, r := range reports {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT OR REPLACE INTO reports (month, report_json) VALUES (?, ?)", r.Month, string(b)); err != nil {
			return fmt.Errorf("insert report %d: %w", r.Month, err)
		}
	}
	for _, m := range markets {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT OR REPLACE INTO markets (month, summary_json) VALUES (?, ?)", m.Month, string(b)); err != nil {
			return fmt.Errorf("insert market %d: %w", m.Month, err)
		}
	}
	return nil
}

func saveMeta(tx *sqlx.Tx, key, value string) error {
	_, err := tx.Exec("INSERT OR REPLACE INTO farm_meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// SaveMeta stores a key-value pair in farm metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO farm_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM farm_meta WHERE key = ?", key)
	return value, err
}

// SaveFarm performs a full save of the session in one transaction.
func (db *DB) SaveFarm(sim *engine.Simulation) error {
	l := sim.Farm.Ledger
	slog.Info("saving farm state", "records", len(l.Records), "month", sim.Month())

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveRecords(tx, l.Records); err != nil {
		return fmt.Errorf("save records: %w", err)
	}
	if err := saveInventory(tx, l.Inventory); err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	if err := saveHistory(tx, sim.History, sim.Markets); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	env, _ := json.Marshal(sim.Farm.Env)
	actions, _ := json.Marshal(sim.Actions)
	day := []byte("")
	if sim.Day != nil {
		day, _ = json.Marshal(sim.Day)
	}
	meta := map[string]string{
		"session_id":    sim.SessionID,
		"month":         strconv.Itoa(sim.Farm.Month),
		"budget":        strconv.FormatFloat(l.Budget, 'g', -1, 64),
		"next_id":       strconv.FormatUint(uint64(l.NextID), 10),
		"pending_seeds": strconv.FormatFloat(l.PendingSeeds, 'g', -1, 64),
		"total_revenue": strconv.FormatFloat(l.TotalRevenue, 'g', -1, 64),
		"total_costs":   strconv.FormatFloat(l.TotalCosts, 'g', -1, 64),
		"environment":   string(env),
		"actions":       string(actions),
		"market_day":    string(day),
		"notes":         sim.Notes,
	}
	for k, v := range meta {
		if err := saveMeta(tx, k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("farm state saved")
	return nil
}

// HasFarmState reports whether a saved session exists.
func (db *DB) HasFarmState() bool {
	_, err := db.GetMeta("session_id")
	return err == nil
}

// LoadFarm restores a saved session into sim, which must have been created
// with the same crop registry and economics.
func (db *DB) LoadFarm(sim *engine.Simulation) error {
	meta := make(map[string]string)
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT key, value FROM farm_meta"); err != nil {
		return fmt.Errorf("load meta: %w", err)
	}
	for _, r := range rows {
		meta[r.Key] = r.Value
	}
	if meta["session_id"] == "" {
		return fmt.Errorf("load farm: %w", sql.ErrNoRows)
	}

	var recRows []recordRow
	if err := db.conn.Select(&recRows, "SELECT * FROM records ORDER BY id"); err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	var invRows []inventoryRow
	if err := db.conn.Select(&invRows, "SELECT crop, kg FROM inventory"); err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}
	reports, err := db.RecentReports(-1)
	if err != nil {
		return err
	}
	markets, err := db.MarketHistory()
	if err != nil {
		return err
	}

	l := farm.NewLedger(0)
	for _, row := range recRows {
		rec := farm.Record{
			ID:         farm.RecordID(row.ID),
			Level:      row.Level,
			Crop:       row.Crop,
			DayPlanted: row.DayPlanted,
			Age:        row.Age,
			Space:      row.Space,
			Status:     farm.Status(row.Status),
			Reason:     row.Reason,
			Health:     row.Health,
			Yield:      row.Yield,
		}
		var violated []crops.Var
		if err := json.Unmarshal([]byte(row.Violated), &violated); err == nil {
			rec.Violated = violated
		}
		l.Records = append(l.Records, rec)
	}
	for _, row := range invRows {
		l.Inventory[row.Crop] = row.Kg
	}

	var perr error
	parseF := func(key string) float64 {
		v, err := strconv.ParseFloat(meta[key], 64)
		if err != nil && perr == nil {
			perr = fmt.Errorf("meta %s: %w", key, err)
		}
		return v
	}
	l.Budget = parseF("budget")
	l.PendingSeeds = parseF("pending_seeds")
	l.TotalRevenue = parseF("total_revenue")
	l.TotalCosts = parseF("total_costs")
	nextID, err := strconv.ParseUint(meta["next_id"], 10, 64)
	if err != nil {
		return fmt.Errorf("meta next_id: %w", err)
	}
	l.NextID = farm.RecordID(nextID)
	month, err := strconv.Atoi(meta["month"])
	if err != nil {
		return fmt.Errorf("meta month: %w", err)
	}
	if perr != nil {
		return perr
	}

	var env farm.Environment
	if err := json.Unmarshal([]byte(meta["environment"]), &env); err != nil {
		return fmt.Errorf("meta environment: %w", err)
	}
	var actions []engine.Action
	if s := meta["actions"]; s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &actions); err != nil {
			return fmt.Errorf("meta actions: %w", err)
		}
	}
	var day *economy.MarketDay
	if s := meta["market_day"]; s != "" {
		day = &economy.MarketDay{}
		if err := json.Unmarshal([]byte(s), day); err != nil {
			return fmt.Errorf("meta market_day: %w", err)
		}
	}

	// Everything parsed; apply.
	sim.SessionID = meta["session_id"]
	sim.Farm.Ledger = l
	sim.Farm.Env = env
	sim.Farm.Month = month
	sim.Actions = actions
	sim.Notes = meta["notes"]
	sim.Day = day
	sim.History = reports
	sim.Markets = markets
	sim.Market.Reprice(sim.Farm.Registry, sim.Economics.Rates, l.Stock, month)

	slog.Info("farm state restored",
		"session", sim.SessionID,
		"month", month,
		"records", len(l.Records),
		"budget", fmt.Sprintf("%.2f", l.Budget),
	)
	return nil
}

// RecentReports returns up to limit monthly reports, oldest first. A
// negative limit returns all of them.
func (db *DB) RecentReports(limit int) ([]*engine.TickReport, error) {
	var raw []string
	err := db.conn.Select(&raw,
		"SELECT report_json FROM (SELECT month, report_json FROM reports ORDER BY month DESC LIMIT ?) ORDER BY month",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	out := make([]*engine.TickReport, 0, len(raw))
	for _, s := range raw {
		r := &engine.TickReport{}
		if err := json.Unmarshal([]byte(s), r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// MarketHistory returns every closed market day, oldest first.
func (db *DB) MarketHistory() ([]economy.Summary, error) {
	var raw []string
	if err := db.conn.Select(&raw, "SELECT summary_json FROM markets ORDER BY month"); err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}
	out := make([]economy.Summary, 0, len(raw))
	for _, s := range raw {
		var m economy.Summary
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("decode market: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Reset deletes the saved session.
func (db *DB) Reset() error {
	for _, table := range []string{"records", "inventory", "reports", "markets", "farm_meta"} {
		if _, err := db.conn.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// IsNotFound reports whether err means no saved state.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
