package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/BlagoCuljak/ApiPosture/internal/config"
	"github.com/BlagoCuljak/ApiPosture/internal/core"
	"github.com/BlagoCuljak/ApiPosture/internal/logger"
	"github.com/BlagoCuljak/ApiPosture/pkg/types"
)

// sqlStore persists scan runs and findings. Sqlite is the default; postgres
// works with the same schema.
type sqlStore struct {
	db  *sqlx.DB
	cfg config.DatabaseConfig
	log *logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id            TEXT PRIMARY KEY,
	project_root  TEXT NOT NULL,
	started_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP NOT NULL,
	files_scanned INTEGER NOT NULL,
	files_failed  INTEGER NOT NULL,
	endpoints     INTEGER NOT NULL,
	findings      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	rule_id        TEXT NOT NULL,
	rule_name      TEXT NOT NULL,
	severity       TEXT NOT NULL,
	message        TEXT NOT NULL,
	recommendation TEXT,
	route          TEXT NOT NULL,
	endpoint       TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);
`

func NewStore(cfg config.DatabaseConfig, log *logger.Logger) (core.ResultStore, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.WithComponent("database").Debugw("Result store ready", "driver", cfg.Driver)
	return &sqlStore{db: db, cfg: cfg, log: log.WithComponent("database")}, nil
}

// rebind converts ? placeholders for the active driver.
func (s *sqlStore) rebind(query string) string {
	return s.db.Rebind(query)
}

func (s *sqlStore) SaveRun(ctx context.Context, run *types.ScanRun) error {
	query := s.rebind(`
		INSERT INTO scan_runs (id, project_root, started_at, finished_at, files_scanned, files_failed, endpoints, findings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.ProjectRoot, run.StartedAt, run.FinishedAt,
		run.FilesScanned, run.FilesFailed, run.Endpoints, run.Findings,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *sqlStore) SaveFindings(ctx context.Context, runID string, findings []types.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO findings (id, run_id, rule_id, rule_name, severity, message, recommendation, route, endpoint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, f := range findings {
		endpoint, err := json.Marshal(f.Endpoint)
		if err != nil {
			return fmt.Errorf("failed to marshal endpoint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			f.ID, runID, f.RuleID, f.RuleName, string(f.Severity),
			f.Message, f.Recommendation, f.Endpoint.Route, string(endpoint), f.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to save finding %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) GetFindings(ctx context.Context, runID string) ([]types.Finding, error) {
	query := s.rebind(`
		SELECT id, rule_id, rule_name, severity, message, recommendation, endpoint, created_at
		FROM findings WHERE run_id = ? ORDER BY created_at, id`)
	rows, err := s.db.QueryxContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []types.Finding
	for rows.Next() {
		var f types.Finding
		var severity, endpoint string
		if err := rows.Scan(&f.ID, &f.RuleID, &f.RuleName, &severity, &f.Message,
			&f.Recommendation, &endpoint, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Severity = types.Severity(severity)
		if err := json.Unmarshal([]byte(endpoint), &f.Endpoint); err != nil {
			s.log.Warnw("Skipping finding with unreadable endpoint", "id", f.ID, "error", err)
			continue
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListRuns(ctx context.Context, limit int) ([]*types.ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.rebind(`
		SELECT id, project_root, started_at, finished_at, files_scanned, files_failed, endpoints, findings
		FROM scan_runs ORDER BY started_at DESC LIMIT ?`)
	var runs []*types.ScanRun
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
