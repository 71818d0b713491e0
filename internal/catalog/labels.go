package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Label is one registered gesture class.
type Label struct {
	ID         int64     `json:"id"`
	ClassIdx   int       `json:"class_idx"`
	Name       string    `json:"label_name"`
	FolderName string    `json:"folder_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrLabelNotFound is returned by LabelByName for an unknown label.
var ErrLabelNotFound = errors.New("catalog: label not found")

// RegisterLabel returns the label called name, creating it if needed.
//
// A new label receives the next class index (0 for the first label) and
// the folder name produced by folder(classIdx). Registering an existing
// name is a no-op that returns the stored row.
func (c *Catalog) RegisterLabel(ctx context.Context, name string, folder func(classIdx int) string) (Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Label{}, fmt.Errorf("register label: name is required")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Label{}, fmt.Errorf("register label: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanLabel(tx.QueryRowContext(ctx, labelSelect+` WHERE label_name = ?`, name))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Label{}, fmt.Errorf("register label: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(class_idx) + 1, 0) FROM labels`).Scan(&next); err != nil {
		return Label{}, fmt.Errorf("register label: next class index: %w", err)
	}

	label := Label{ClassIdx: next, Name: name, FolderName: folder(next)}
	createdAt := c.timestamp()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO labels (class_idx, label_name, folder_name, created_at)
		VALUES (?, ?, ?, ?)
	`, label.ClassIdx, label.Name, label.FolderName, createdAt)
	if err != nil {
		return Label{}, fmt.Errorf("register label: %w", err)
	}
	if label.ID, err = res.LastInsertId(); err != nil {
		return Label{}, fmt.Errorf("register label: %w", err)
	}
	if label.CreatedAt, err = parseTime(createdAt); err != nil {
		return Label{}, err
	}

	if err := tx.Commit(); err != nil {
		return Label{}, fmt.Errorf("register label: commit: %w", err)
	}
	return label, nil
}

// LabelByName looks up a label by its name.
func (c *Catalog) LabelByName(ctx context.Context, name string) (Label, error) {
	label, err := scanLabel(c.db.QueryRowContext(ctx, labelSelect+` WHERE label_name = ?`, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return Label{}, ErrLabelNotFound
	}
	if err != nil {
		return Label{}, fmt.Errorf("label by name: %w", err)
	}
	return label, nil
}

// Labels returns every label ordered by class index.
// Returns an empty slice (not nil) when no labels exist.
func (c *Catalog) Labels(ctx context.Context) ([]Label, error) {
	rows, err := c.db.QueryContext(ctx, labelSelect+` ORDER BY class_idx ASC`)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	labels := []Label{}
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return labels, nil
}

const labelSelect = `SELECT id, class_idx, label_name, folder_name, created_at FROM labels`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLabel(row rowScanner) (Label, error) {
	var (
		label     Label
		createdAt string
	)
	if err := row.Scan(&label.ID, &label.ClassIdx, &label.Name, &label.FolderName, &createdAt); err != nil {
		return Label{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return Label{}, err
	}
	label.CreatedAt = t
	return label, nil
}
