package dataset

import (
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
)

// createTestDataset writes a small ledger dataset to a temp sqlite file.
func createTestDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.sqlite")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE ledger (
		entity_name TEXT,
		property_name TEXT,
		tenant_name TEXT,
		ledger_type TEXT,
		ledger_group TEXT,
		ledger_category TEXT,
		ledger_code TEXT,
		ledger_description TEXT,
		month TEXT,
		quarter TEXT,
		year TEXT,
		profit REAL
	)`); err != nil {
		t.Fatal(err)
	}

	rows := [][]any{
		{"PropCo", "Building 160", "Acme Corp", "revenue", "rental_income", "rent", "4010", "Monthly rent taxed", "2024-M01", "2024-Q1", "2024", 1200.0},
		{"PropCo", "Building 180", nil, "expenses", "general_expenses", "maintenance", "8020", "Elevator maintenance", "2025-M06", "2025-Q2", "2025", -300.0},
		{"PropCo", "Building 180", "Globex", "revenue", "rental_income", "rent", "4010", "Monthly rent taxed", "2025-M06", "2025-Q2", "2025", 1500.0},
	}
	for _, row := range rows {
		if _, err := db.Exec(
			`INSERT INTO ledger VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row...,
		); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestOpenValidatesSchema(t *testing.T) {
	path := createTestDataset(t)
	repo, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	columns, err := repo.Columns()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(columns, ExpectedColumns) {
		t.Errorf("columns = %v", columns)
	}
}

func TestOpenRejectsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE ledger (entity_name TEXT, profit REAL)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("expected schema validation failure")
	}
}

func TestUniqueNonNullValues(t *testing.T) {
	path := createTestDataset(t)
	repo, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	values, err := repo.UniqueNonNullValues("property_name")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(values, []string{"Building 160", "Building 180"}) {
		t.Errorf("values = %v", values)
	}

	tenants, err := repo.UniqueNonNullValues("tenant_name")
	if err != nil {
		t.Fatal(err)
	}
	// The null tenant row is excluded.
	if !reflect.DeepEqual(tenants, []string{"Acme Corp", "Globex"}) {
		t.Errorf("tenants = %v", tenants)
	}
}

func TestNullAndRowCounts(t *testing.T) {
	path := createTestDataset(t)
	repo, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	nulls, err := repo.NullCount("tenant_name")
	if err != nil {
		t.Fatal(err)
	}
	if nulls != 1 {
		t.Errorf("tenant_name nulls = %d, want 1", nulls)
	}

	total, err := repo.RowCount()
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("row count = %d, want 3", total)
	}
}
