package casefile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caseflow/caseflow/casework"
	"github.com/caseflow/caseflow/service/dao"

	_ "modernc.org/sqlite"
)

// Service persists case records in SQLite so submitted cases survive a
// restart. It implements the generic DAO interface over casework.Record.
type Service struct {
	db *sql.DB
}

var _ dao.Service[string, casework.Record] = (*Service)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS case_record (
	id               TEXT PRIMARY KEY,
	case_type        TEXT NOT NULL,
	status           TEXT NOT NULL,
	run_id           TEXT,
	agents_completed INTEGER NOT NULL DEFAULT 0,
	error            TEXT,
	intake           TEXT,
	report           TEXT,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	completed_at     TIMESTAMP
);
CREATE INDEX IF NOT EXISTS case_record_status ON case_record(status);
`

// New opens (and if needed creates) the case database at the given location.
// Use ":memory:" for an ephemeral store in tests.
func New(location string) (*Service, error) {
	if location == "" {
		return nil, fmt.Errorf("database location is required")
	}
	db, err := sql.Open("sqlite", location)
	if err != nil {
		return nil, fmt.Errorf("failed to open case database %s: %w", location, err)
	}
	// modernc sqlite serialises writes; a single connection avoids table
	// locked errors under concurrent submissions.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise case schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a case record.
func (s *Service) Save(ctx context.Context, record *casework.Record) error {
	if record == nil {
		return dao.ErrNilEntity
	}
	if record.ID == "" {
		return dao.ErrInvalidID
	}
	record.UpdatedAt = time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}

	intake, err := marshalNullable(record.Intake)
	if err != nil {
		return fmt.Errorf("failed to encode intake: %w", err)
	}
	report, err := marshalNullable(record.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO case_record (id, case_type, status, run_id, agents_completed, error, intake, report, created_at, updated_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	case_type        = excluded.case_type,
	status           = excluded.status,
	run_id           = excluded.run_id,
	agents_completed = excluded.agents_completed,
	error            = excluded.error,
	intake           = excluded.intake,
	report           = excluded.report,
	updated_at       = excluded.updated_at,
	completed_at     = excluded.completed_at`,
		record.ID, string(record.Type), string(record.Status), record.RunID, record.AgentsCompleted, record.Error,
		intake, report, record.CreatedAt, record.UpdatedAt, record.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save case %s: %w", record.ID, err)
	}
	return nil
}

// Load returns a case record or dao.ErrNotFound.
func (s *Service) Load(ctx context.Context, id string) (*casework.Record, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, case_type, status, run_id, agents_completed, error, intake, report, created_at, updated_at, completed_at
FROM case_record WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dao.ErrNotFound
	}
	return record, err
}

// Delete removes a case record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM case_record WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete case %s: %w", id, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return dao.ErrNotFound
	}
	return nil
}

// List returns case records, optionally filtered by a Status parameter,
// newest first.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*casework.Record, error) {
	query := `
SELECT id, case_type, status, run_id, agents_completed, error, intake, report, created_at, updated_at, completed_at
FROM case_record`
	var args []interface{}
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != "Status" {
			continue
		}
		switch value := parameter.Value.(type) {
		case string:
			query += ` WHERE status = ?`
			args = append(args, value)
		case []string:
			if len(value) == 0 {
				continue
			}
			query += ` WHERE status IN (?` + strings.Repeat(",?", len(value)-1) + `)`
			for _, status := range value {
				args = append(args, status)
			}
		}
		break
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var records []*casework.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*casework.Record, error) {
	var record casework.Record
	var caseType, status string
	var runID, errText, intake, report sql.NullString
	var completedAt sql.NullTime

	if err := row.Scan(&record.ID, &caseType, &status, &runID, &record.AgentsCompleted, &errText, &intake, &report,
		&record.CreatedAt, &record.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	record.Type = casework.CaseType(caseType)
	record.Status = casework.Status(status)
	record.RunID = runID.String
	record.Error = errText.String
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}
	if intake.Valid && intake.String != "" {
		record.Intake = &casework.Intake{}
		if err := json.Unmarshal([]byte(intake.String), record.Intake); err != nil {
			return nil, fmt.Errorf("failed to decode intake for case %s: %w", record.ID, err)
		}
	}
	if report.Valid && report.String != "" {
		record.Report = &casework.Report{}
		if err := json.Unmarshal([]byte(report.String), record.Report); err != nil {
			return nil, fmt.Errorf("failed to decode report for case %s: %w", record.ID, err)
		}
	}
	return &record, nil
}

func marshalNullable(value interface{}) (interface{}, error) {
	switch actual := value.(type) {
	case *casework.Intake:
		if actual == nil {
			return nil, nil
		}
	case *casework.Report:
		if actual == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
