package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/truckhub/core/model"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS units (
        run_id TEXT NOT NULL,
        scenario TEXT NOT NULL,
        week INTEGER NOT NULL,
        strategy TEXT NOT NULL,
        served INTEGER,
        fully_charged INTEGER,
        quota REAL,
        site_budget_kw REAL,
        solve_ms INTEGER,
        record TEXT,
        PRIMARY KEY(run_id, scenario, week, strategy)
    );`,
	`CREATE TABLE IF NOT EXISTS ledger (
        run_id TEXT NOT NULL,
        scenario TEXT NOT NULL,
        week INTEGER NOT NULL,
        strategy TEXT NOT NULL,
        session_id TEXT NOT NULL,
        class TEXT,
        step INTEGER NOT NULL,
        power_kw REAL,
        charge_kw REAL,
        discharge_kw REAL,
        soc REAL,
        max_power_kw REAL,
        cost_eur REAL,
        terminal INTEGER,
        PRIMARY KEY(run_id, scenario, week, strategy, session_id, step)
    );`,
}

// SQLiteStore persists units in a SQLite database, one transaction per unit.
// The full unit is kept as JSON and the per-step rows are queryable in the
// ledger table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

// WriteUnit replaces any stored copy of the unit. Either the unit and all its
// rows are committed or nothing is.
func (s *SQLiteStore) WriteUnit(ctx context.Context, u *model.UnitResult) (err error) {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	k := u.Key
	for _, table := range []string{"units", "ledger"} {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE run_id = ? AND scenario = ? AND week = ? AND strategy = ?`,
			u.RunID, k.Scenario, k.Week, k.Strategy); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO units (run_id, scenario, week, strategy, served, fully_charged, quota, site_budget_kw, solve_ms, record)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.RunID, k.Scenario, k.Week, k.Strategy, u.Served, u.FullyCharged, u.Quota, u.SiteBudgetKW,
		u.SolveTime.Milliseconds(), string(b)); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ledger (run_id, scenario, week, strategy, session_id, class, step, power_kw, charge_kw, discharge_kw, soc, max_power_kw, cost_eur, terminal)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, sr := range u.Sessions {
		for _, r := range sr.Steps {
			if _, err = stmt.ExecContext(ctx, u.RunID, k.Scenario, k.Week, k.Strategy, sr.SessionID, sr.Class.String(),
				r.Step, r.PowerKW, r.ChargeKW, r.DischargeKW, r.SoC, r.MaxPowerKW, r.CostEUR, r.Terminal); err != nil {
				return fmt.Errorf("ledger row %s/%d: %w", sr.SessionID, r.Step, err)
			}
		}
	}
	return tx.Commit()
}

// Units returns units matching q.
func (s *SQLiteStore) Units(ctx context.Context, q Query) ([]*model.UnitResult, error) {
	var args []any
	query := `SELECT record FROM units WHERE 1=1`
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Scenario != "" {
		query += ` AND scenario = ?`
		args = append(args, q.Scenario)
	}
	if q.Strategy != "" {
		query += ` AND strategy = ?`
		args = append(args, q.Strategy)
	}
	if q.Week != 0 {
		query += ` AND week = ?`
		args = append(args, q.Week)
	}
	query += ` ORDER BY scenario, strategy, week`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.UnitResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var u model.UnitResult
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			return nil, fmt.Errorf("unmarshal unit: %w", err)
		}
		res = append(res, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// LedgerRows counts the stored step rows of one unit.
func (s *SQLiteStore) LedgerRows(ctx context.Context, runID string, k model.UnitKey) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger WHERE run_id = ? AND scenario = ? AND week = ? AND strategy = ?`,
		runID, k.Scenario, k.Week, k.Strategy).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
