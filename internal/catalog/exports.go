package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/signbank/internal/export"
)

// ExportRecord is the catalog row of one export run.
type ExportRecord struct {
	ID           string          `json:"id"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Fix          bool            `json:"fix"`
	Status       string          `json:"status"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	Message      string          `json:"message"`
	TotalSamples int             `json:"total_samples"`
	FixedCount   int             `json:"fixed_count"`
	OutputDir    string          `json:"output_dir"`
	Report       json.RawMessage `json:"report,omitempty"`
}

// RecordExport stores one export run. It satisfies export.Recorder.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (c *Catalog) RecordExport(ctx context.Context, run export.Run) error {
	var report sql.NullString
	if run.Report != nil {
		data, err := json.Marshal(run.Report)
		if err != nil {
			return fmt.Errorf("record export: marshal report: %w", err)
		}
		report = sql.NullString{String: string(data), Valid: true}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO exports
		(id, started_at, finished_at, fix, status, error_kind, message, total_samples, fixed_count, output_dir, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.Fix,
		run.Status,
		run.ErrorKind,
		run.Message,
		run.TotalSamples,
		run.FixedCount,
		run.OutputDir,
		report,
	)
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// Exports returns the most recent runs first, at most limit rows
// (limit <= 0 means all). Ties on start time are broken by id.
func (c *Catalog) Exports(ctx context.Context, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, fix, status, error_kind, message,
		       total_samples, fixed_count, output_dir, report
		FROM exports
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	records := []ExportRecord{}
	for rows.Next() {
		var (
			rec               ExportRecord
			started, finished string
			report            sql.NullString
		)
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.Fix, &rec.Status, &rec.ErrorKind,
			&rec.Message, &rec.TotalSamples, &rec.FixedCount, &rec.OutputDir, &report); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if rec.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		if report.Valid {
			rec.Report = json.RawMessage(report.String)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return records, nil
}
