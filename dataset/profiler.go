package dataset

import (
	"encoding/json"
	"sync"
)

// MetricSpec describes one supported derived metric.
type MetricSpec struct {
	Description     string   `json:"description"`
	RequiredColumns []string `json:"required_columns"`
}

// SupportedMetrics is the canonical registry of dataset-derivable metrics.
var SupportedMetrics = map[string]MetricSpec{
	"pnl": {
		Description:     "Net profit and loss = revenue_total + expenses_total (expenses are negative).",
		RequiredColumns: []string{"ledger_type", "profit"},
	},
	"revenue_total": {
		Description:     "Total revenue where ledger_type == 'revenue'.",
		RequiredColumns: []string{"ledger_type", "profit"},
	},
	"expenses_total": {
		Description:     "Total expenses where ledger_type == 'expenses'.",
		RequiredColumns: []string{"ledger_type", "profit"},
	},
	"net_pnl": {
		Description:     "Net P&L computed as revenue_total + expenses_total.",
		RequiredColumns: []string{"ledger_type", "profit"},
	},
	"count": {
		Description:     "Count rows or unique entities by grouping dimensions.",
		RequiredColumns: []string{},
	},
	"sum_profit": {
		Description:     "Sum of profit across selected scope.",
		RequiredColumns: []string{"profit"},
	},
}

// Guide is the compact natural-language dataset guide injected into prompts.
type Guide struct {
	ColumnDefinitions map[string]string `json:"column_definitions"`
	QueryHints        []string          `json:"query_hints"`
}

// Profile is the read-only, process-lifetime snapshot of the dataset shape.
// Built once per path and shared across turns; nothing mutates it after
// construction.
type Profile struct {
	RowCount     int
	Columns      []string
	UniqueValues map[string][]string
	NullCounts   map[string]int

	MinMonth   string
	MaxMonth   string
	MinQuarter string
	MaxQuarter string
	MinYear    string
	MaxYear    string

	SupportedMetrics map[string]MetricSpec
	Guide            Guide
}

var (
	profileMu    sync.Mutex
	profileCache = map[string]*Profile{}
)

// LoadProfile builds the profile for a dataset path, caching it for the
// process lifetime.
func LoadProfile(path string) (*Profile, error) {
	profileMu.Lock()
	defer profileMu.Unlock()
	if profile, ok := profileCache[path]; ok {
		return profile, nil
	}

	repo, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	profile, err := BuildProfile(repo)
	if err != nil {
		return nil, err
	}
	profileCache[path] = profile
	return profile, nil
}

// BuildProfile profiles the repository into an immutable snapshot.
func BuildProfile(repo *Repository) (*Profile, error) {
	columns, err := repo.Columns()
	if err != nil {
		return nil, err
	}

	uniqueValues := make(map[string][]string, len(profileValueColumns))
	for _, column := range profileValueColumns {
		values, err := repo.UniqueNonNullValues(column)
		if err != nil {
			return nil, err
		}
		uniqueValues[column] = values
	}

	nullCounts := make(map[string]int, len(columns))
	for _, column := range columns {
		count, err := repo.NullCount(column)
		if err != nil {
			return nil, err
		}
		nullCounts[column] = count
	}

	rowCount, err := repo.RowCount()
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		RowCount:         rowCount,
		Columns:          columns,
		UniqueValues:     uniqueValues,
		NullCounts:       nullCounts,
		SupportedMetrics: SupportedMetrics,
		Guide:            buildGuide(),
	}
	profile.MinMonth, profile.MaxMonth = minMax(uniqueValues["month"])
	profile.MinQuarter, profile.MaxQuarter = minMax(uniqueValues["quarter"])
	profile.MinYear, profile.MaxYear = minMax(uniqueValues["year"])
	return profile, nil
}

func minMax(values []string) (string, string) {
	if len(values) == 0 {
		return "", ""
	}
	return values[0], values[len(values)-1]
}

func buildGuide() Guide {
	return Guide{
		ColumnDefinitions: map[string]string{
			"entity_name":        "Company/entity managing the assets. The only present is PropCo.",
			"property_name":      "Property identifier (e.g., Building 180).",
			"tenant_name":        "Tenant identifier where available; may be null.",
			"ledger_type":        "High-level financial type, typically revenue or expenses.",
			"ledger_group":       "Ledger grouping under a type (e.g., general_expenses, rental_income).",
			"ledger_category":    "Detailed financial category under ledger_group.",
			"ledger_code":        "Numeric code for accounting line item; if a number like 4xxx/8xxx is mentioned, map here.",
			"ledger_description": "Human-readable description of ledger line item.",
			"month":              "Month period in YYYY-MMM format (e.g., 2025-M01).",
			"quarter":            "Quarter period in YYYY-QN format (e.g., 2025-Q1).",
			"year":               "Year period (e.g., 2025).",
			"profit":             "Signed financial value. Positive=Revenue, Negative=Loss.",
		},
		QueryHints: []string{
			"If query includes compare/comparison, likely comparison task across property_name.",
			"If query includes P&L/profit/loss/revenue/expenses, likely pnl task using profit column.",
			"If query includes a 4-digit accounting number, map it to ledger_code.",
			"If query includes YYYY-MNN, filter month exactly.",
			"If query includes YYYY-QN, filter quarter exactly.",
			"If query includes YYYY only, filter year exactly.",
			"If no timeframe is provided, do not apply a time filter.",
		},
	}
}

// pnlDefinition is the canonical P&L wording repeated to every LLM stage.
const pnlDefinition = "P&L uses ledger_type buckets: revenue_total = sum(profit) for ledger_type='revenue', " +
	"expenses_total = sum(profit) for ledger_type='expenses' (typically negative), " +
	"and net_pnl = revenue_total + expenses_total"

// MinimalPromptJSON renders the compact profile context injected into LLM
// prompts, trimmed to keep token usage down.
func (p *Profile) MinimalPromptJSON() string {
	minimal := map[string]any{
		"columns":           p.Columns,
		"dataset_guide":     p.Guide,
		"time_columns":      []string{"month", "quarter", "year"},
		"metric_column":     "profit",
		"supported_metrics": p.SupportedMetrics,
		"pnl_definition":    pnlDefinition,
	}
	encoded, err := json.Marshal(minimal)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
