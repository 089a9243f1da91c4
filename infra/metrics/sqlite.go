package metrics

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	coremetrics "github.com/kilianp07/hems/core/metrics"
	"github.com/kilianp07/hems/core/model"
	_ "modernc.org/sqlite"
)

// RunSummary is one row of the plan history.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Time         time.Time `json:"time"`
	Formulation  string    `json:"formulation"`
	Status       string    `json:"status"`
	Optimal      bool      `json:"is_optimal"`
	TotalCostSEK float64   `json:"total_cost_sek"`
	SolveTimeMS  float64   `json:"solve_time_ms"`
	Slots        int       `json:"slots"`
	Error        string    `json:"error,omitempty"`
}

// SQLiteStore persists planning runs and their schedules in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS plan_runs (
        run_id TEXT PRIMARY KEY,
        ts INTEGER,
        formulation TEXT,
        status TEXT,
        optimal INTEGER,
        total_cost REAL,
        solve_ms REAL,
        slots INTEGER,
        error TEXT
    );
    CREATE TABLE IF NOT EXISTS plan_slots (
        run_id TEXT,
        idx INTEGER,
        start INTEGER,
        charge REAL,
        discharge REAL,
        grid_import REAL,
        grid_export REAL,
        soc REAL,
        cost REAL,
        water_kw REAL,
        PRIMARY KEY(run_id, idx)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// RecordPlan stores the run and every slot in one transaction.
func (s *SQLiteStore) RecordPlan(rec coremetrics.PlanRecord) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res := rec.Result
	if _, err = tx.Exec(`INSERT OR REPLACE INTO plan_runs
        (run_id, ts, formulation, status, optimal, total_cost, solve_ms, slots, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, '')`,
		rec.RunID, rec.Time.Unix(), string(rec.Formulation), res.StatusMsg, res.IsOptimal,
		res.TotalCostSEK, res.SolveTimeMS, len(res.Slots)); err != nil {
		return err
	}
	if _, err = tx.Exec(`DELETE FROM plan_slots WHERE run_id = ?`, rec.RunID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO plan_slots
        (run_id, idx, start, charge, discharge, grid_import, grid_export, soc, cost, water_kw)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, sl := range res.Slots {
		if _, err = stmt.Exec(rec.RunID, i, sl.Start.Unix(), sl.ChargeKWh, sl.DischargeKWh,
			sl.GridImportKWh, sl.GridExportKWh, sl.SoCKWh, sl.CostSEK, sl.WaterHeatKW); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordPlanFailure stores a run that produced no schedule.
func (s *SQLiteStore) RecordPlanFailure(ev coremetrics.PlanFailure) error {
	msg := ""
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO plan_runs
        (run_id, ts, formulation, status, optimal, total_cost, solve_ms, slots, error)
        VALUES (?, ?, '', ?, 0, 0, 0, 0, ?)`,
		ev.RunID, ev.Time.Unix(), ev.Status, fmt.Sprintf("%s: %s", ev.Stage, msg))
	return err
}

// Runs returns the most recent runs, newest first.
func (s *SQLiteStore) Runs(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT run_id, ts, formulation, status, optimal, total_cost, solve_ms, slots, error
        FROM plan_runs ORDER BY ts DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []RunSummary
	for rows.Next() {
		var r RunSummary
		var ts int64
		if err := rows.Scan(&r.RunID, &ts, &r.Formulation, &r.Status, &r.Optimal,
			&r.TotalCostSEK, &r.SolveTimeMS, &r.Slots, &r.Error); err != nil {
			return nil, err
		}
		r.Time = time.Unix(ts, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// ErrRunNotFound is returned by Schedule for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Schedule returns the stored slots of a run in slot order. Prices and end
// times are not persisted.
func (s *SQLiteStore) Schedule(runID string) ([]model.ResultSlot, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM plan_runs WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	rows, err := s.db.Query(`SELECT start, charge, discharge, grid_import, grid_export, soc, cost, water_kw
        FROM plan_slots WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ResultSlot
	for rows.Next() {
		var sl model.ResultSlot
		var ts int64
		if err := rows.Scan(&ts, &sl.ChargeKWh, &sl.DischargeKWh, &sl.GridImportKWh,
			&sl.GridExportKWh, &sl.SoCKWh, &sl.CostSEK, &sl.WaterHeatKW); err != nil {
			return nil, err
		}
		sl.Start = time.Unix(ts, 0).UTC()
		res = append(res, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
