package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SampleRecord is the catalog row of one stored sample file.
type SampleRecord struct {
	ID        string         `json:"id"`
	LabelID   int64          `json:"label_id"`
	FilePath  string         `json:"file_path"`
	User      string         `json:"user"`
	SessionID string         `json:"session_id"`
	Frames    int            `json:"frames"`
	Duration  float64        `json:"duration"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

// AddSample inserts a sample row. CreatedAt defaults to the catalog clock.
// Re-adding an existing sample ID is a no-op.
func (c *Catalog) AddSample(ctx context.Context, rec SampleRecord) error {
	meta := rec.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("add sample: marshal meta: %w", err)
	}

	createdAt := c.timestamp()
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt.UTC().Format(timeLayout)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO samples
		(id, label_id, file_path, user, session_id, frames, duration, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.LabelID,
		rec.FilePath,
		rec.User,
		rec.SessionID,
		rec.Frames,
		rec.Duration,
		string(metaJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("add sample: %w", err)
	}
	return nil
}

// SamplesByLabel returns the samples of one label ordered by file path.
// Returns an empty slice (not nil) when there are none.
func (c *Catalog) SamplesByLabel(ctx context.Context, labelID int64) ([]SampleRecord, error) {
	return c.querySamples(ctx, `WHERE label_id = ? ORDER BY file_path ASC`, labelID)
}

// SamplesBySession returns the samples captured in one session ordered by file path.
func (c *Catalog) SamplesBySession(ctx context.Context, sessionID string) ([]SampleRecord, error) {
	return c.querySamples(ctx, `WHERE session_id = ? ORDER BY file_path ASC`, sessionID)
}

// CountSamples returns the number of samples per class index.
func (c *Catalog) CountSamples(ctx context.Context) (map[int]int, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT l.class_idx, COUNT(s.id)
		FROM labels l LEFT JOIN samples s ON s.label_id = l.id
		GROUP BY l.class_idx
		ORDER BY l.class_idx ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("count samples: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var classIdx, n int
		if err := rows.Scan(&classIdx, &n); err != nil {
			return nil, fmt.Errorf("count samples: %w", err)
		}
		counts[classIdx] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count samples: %w", err)
	}
	return counts, nil
}

func (c *Catalog) querySamples(ctx context.Context, where string, args ...any) ([]SampleRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, label_id, file_path, user, session_id, frames, duration, meta, created_at
		FROM samples `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	records := []SampleRecord{}
	for rows.Next() {
		var (
			rec       SampleRecord
			metaJSON  string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.LabelID, &rec.FilePath, &rec.User, &rec.SessionID,
			&rec.Frames, &rec.Duration, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &rec.Meta); err != nil {
			return nil, fmt.Errorf("decode sample meta %s: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return records, nil
}
