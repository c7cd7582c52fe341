// Package dataset provides read-only access to the fixed ledger dataset and
// the process-lifetime profile snapshot built from it. The dataset lives in
// a sqlite file with a single `ledger` table; all code that needs dataset
// metadata goes through LoadProfile, which loads once per path and serves
// the same immutable snapshot to every caller.
package dataset

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// TableName is the single table holding the ledger rows.
const TableName = "ledger"

// ExpectedColumns is the required dataset schema.
var ExpectedColumns = []string{
	"entity_name",
	"property_name",
	"tenant_name",
	"ledger_type",
	"ledger_group",
	"ledger_category",
	"ledger_code",
	"ledger_description",
	"month",
	"quarter",
	"year",
	"profit",
}

// profileValueColumns are the columns profiled for unique values.
var profileValueColumns = []string{
	"entity_name",
	"property_name",
	"tenant_name",
	"ledger_type",
	"ledger_group",
	"ledger_category",
	"ledger_code",
	"ledger_description",
	"month",
	"quarter",
	"year",
}

// Repository wraps a read-only connection to one dataset file.
type Repository struct {
	db   *sql.DB
	path string
}

// Open opens the dataset read-only and validates the expected schema.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	// The dataset is shared read-only across turns; one connection keeps
	// sqlite file locking simple.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db, path: path}
	if err := repo.validateSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Close releases the underlying connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the dataset file path this repository was opened on.
func (r *Repository) Path() string {
	return r.path
}

// Columns returns the dataset column names in table order.
func (r *Repository) Columns() ([]string, error) {
	rows, err := r.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", TableName))
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    sql.NullString
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func (r *Repository) validateSchema() error {
	columns, err := r.Columns()
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(columns))
	for _, column := range columns {
		present[column] = true
	}
	var missing []string
	for _, column := range ExpectedColumns {
		if !present[column] {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("dataset %s missing required columns: %v", r.path, missing)
	}
	return nil
}

// UniqueNonNullValues returns the sorted distinct non-null values of a
// profiled column, rendered as strings.
func (r *Repository) UniqueNonNullValues(column string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT "%s" FROM %s WHERE "%s" IS NOT NULL ORDER BY "%s"`,
		column, TableName, column, column,
	)
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("profile column %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("profile column %s: %w", column, err)
		}
		if value.Valid {
			values = append(values, value.String)
		}
	}
	return values, rows.Err()
}

// RowCount returns the total number of ledger rows.
func (r *Repository) RowCount() (int, error) {
	var count int
	if err := r.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", TableName)).Scan(&count); err != nil {
		return 0, fmt.Errorf("row count: %w", err)
	}
	return count, nil
}

// NullCount returns how many rows have a null in the given column.
func (r *Repository) NullCount(column string) (int, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*) - COUNT("%s") FROM %s`, column, TableName,
	)
	var count int
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("null count %s: %w", column, err)
	}
	return count, nil
}
