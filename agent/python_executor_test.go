package agent

import (
	"strings"
	"testing"
)

func TestParseExecutionOutput(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		output := "loading...\n" + resultMarker + "\n" +
			`{"columns":["property_name","profit"],"rows":[{"property_name":"Building 180","profit":1500}],"filtered_row_count":2,"error":""}`
		result, err := parseExecutionOutput(output)
		if err != nil {
			t.Fatal(err)
		}
		if result.FilteredRowCount != 2 {
			t.Errorf("FilteredRowCount = %d", result.FilteredRowCount)
		}
		if len(result.Rows) != 1 || result.Rows[0]["property_name"] != "Building 180" {
			t.Errorf("rows = %v", result.Rows)
		}
	})

	t.Run("missing filtered count becomes sentinel", func(t *testing.T) {
		output := resultMarker + "\n" + `{"columns":[],"rows":[],"filtered_row_count":null,"error":""}`
		result, err := parseExecutionOutput(output)
		if err != nil {
			t.Fatal(err)
		}
		if result.FilteredRowCount != -1 {
			t.Errorf("FilteredRowCount = %d, want -1", result.FilteredRowCount)
		}
	})

	t.Run("explicit zero survives", func(t *testing.T) {
		output := resultMarker + "\n" + `{"columns":[],"rows":[],"filtered_row_count":0,"error":""}`
		result, err := parseExecutionOutput(output)
		if err != nil {
			t.Fatal(err)
		}
		if result.FilteredRowCount != 0 {
			t.Errorf("FilteredRowCount = %d, want 0", result.FilteredRowCount)
		}
	})

	t.Run("harness error surfaces", func(t *testing.T) {
		output := resultMarker + "\n" + `{"columns":[],"rows":null,"filtered_row_count":null,"error":"name 'bogus' is not defined"}`
		if _, err := parseExecutionOutput(output); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("no marker", func(t *testing.T) {
		if _, err := parseExecutionOutput("Traceback (most recent call last)"); err == nil {
			t.Fatal("expected error for missing marker")
		}
	})

	t.Run("last marker wins", func(t *testing.T) {
		output := resultMarker + "\ngarbage\n" + resultMarker + "\n" +
			`{"columns":[],"rows":[],"filtered_row_count":1,"error":""}`
		result, err := parseExecutionOutput(output)
		if err != nil {
			t.Fatal(err)
		}
		if result.FilteredRowCount != 1 {
			t.Errorf("FilteredRowCount = %d", result.FilteredRowCount)
		}
	})
}

func TestBuildHarness(t *testing.T) {
	executor := NewPandasExecutor("python3", "/data/ledger.sqlite", nil)
	script, err := executor.buildHarness("filtered_df = dataframe\nresult_df = filtered_df")
	if err != nil {
		t.Fatal(err)
	}

	for _, fragment := range []string{
		`"/data/ledger.sqlite"`,
		"pd.read_sql_query",
		"    filtered_df = dataframe",
		"    result_df = filtered_df",
		resultMarker,
		"filtered_row_count",
	} {
		if !strings.Contains(script, fragment) {
			t.Errorf("harness missing %q", fragment)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go:\n```json\n{\"a\":1}\n```\nthanks", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := extractJSON(tc.in); got != tc.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
