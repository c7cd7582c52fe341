package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// resultMarker separates harness noise from the JSON payload on stdout.
const resultMarker = "===LEDGERCHAT_RESULT==="

// defaultExecTimeout bounds one generated-code run.
const defaultExecTimeout = 60 * time.Second

// PandasExecutor runs gated query code in a fresh Python subprocess. Each
// run loads its own private copy of the dataset, so generated code can never
// mutate shared state across turns.
type PandasExecutor struct {
	pythonPath  string
	datasetPath string
	timeout     time.Duration
	logger      func(string)
}

// NewPandasExecutor creates an executor for the dataset at datasetPath.
func NewPandasExecutor(pythonPath, datasetPath string, logger func(string)) *PandasExecutor {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	return &PandasExecutor{
		pythonPath:  pythonPath,
		datasetPath: datasetPath,
		timeout:     defaultExecTimeout,
		logger:      logger,
	}
}

// SetTimeout overrides the per-run timeout.
func (e *PandasExecutor) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		e.timeout = timeout
	}
}

func (e *PandasExecutor) log(msg string) {
	if e.logger != nil {
		e.logger(msg)
	}
}

// executionPayload is the JSON the harness prints after the result marker.
type executionPayload struct {
	Columns          []string         `json:"columns"`
	Rows             []map[string]any `json:"rows"`
	FilteredRowCount *int             `json:"filtered_row_count"`
	Error            string           `json:"error"`
}

// Execute runs the code against a fresh dataframe copy and returns the
// result rows plus the pre-aggregation filtered row count (-1 when the code
// never produced a filtered_df).
func (e *PandasExecutor) Execute(ctx context.Context, code string) (*ExecutionResult, error) {
	script, err := e.buildHarness(code)
	if err != nil {
		return nil, err
	}

	tmpFile, err := os.CreateTemp("", "ledgerchat_query_*.py")
	if err != nil {
		return nil, fmt.Errorf("create script: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.WriteString(script); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("write script: %w", err)
	}
	tmpFile.Close()

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	startTime := time.Now()
	cmd := exec.CommandContext(execCtx, e.pythonPath, tmpFile.Name())
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8")
	out, err := cmd.CombinedOutput()
	if execCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("execution timed out after %v", e.timeout)
	}
	if err != nil {
		e.log(fmt.Sprintf("python_execution_failed error=%v output=%s", err, truncateForLog(string(out), 500)))
		return nil, fmt.Errorf("python execution: %w", err)
	}
	e.log(fmt.Sprintf("python_execution_complete in=%v", time.Since(startTime)))

	return parseExecutionOutput(string(out))
}

// buildHarness wraps the generated statements in the loader/serializer
// scaffold. Statements are inlined at one indent level inside the try block.
func (e *PandasExecutor) buildHarness(code string) (string, error) {
	datasetPath, err := json.Marshal(e.datasetPath)
	if err != nil {
		return "", fmt.Errorf("dataset path: %w", err)
	}

	var indented strings.Builder
	for _, line := range strings.Split(code, "\n") {
		indented.WriteString("    ")
		indented.WriteString(line)
		indented.WriteString("\n")
	}

	return fmt.Sprintf(`import json
import sqlite3

import pandas as pd

_conn = sqlite3.connect(%s)
try:
    dataframe = pd.read_sql_query("SELECT * FROM ledger", _conn)
finally:
    _conn.close()

_payload = {"columns": [], "rows": None, "filtered_row_count": None, "error": ""}
try:
%sexcept Exception as exc:
    _payload["error"] = str(exc)
else:
    try:
        _payload["filtered_row_count"] = int(len(filtered_df))
    except NameError:
        _payload["filtered_row_count"] = None
    try:
        result_df
    except NameError:
        _payload["error"] = "generated code did not produce result_df"
    else:
        if not isinstance(result_df, pd.DataFrame):
            result_df = pd.DataFrame(result_df)
        _payload["columns"] = [str(col) for col in result_df.columns]
        _payload["rows"] = json.loads(result_df.to_json(orient="records"))

print(%q)
print(json.dumps(_payload, default=str))
`, string(datasetPath), indented.String(), resultMarker), nil
}

// parseExecutionOutput extracts the JSON payload after the result marker.
func parseExecutionOutput(output string) (*ExecutionResult, error) {
	idx := strings.LastIndex(output, resultMarker)
	if idx < 0 {
		return nil, fmt.Errorf("no result marker in output")
	}
	payloadText := strings.TrimSpace(output[idx+len(resultMarker):])

	payload := &executionPayload{}
	if err := json.Unmarshal([]byte(payloadText), payload); err != nil {
		return nil, fmt.Errorf("parse result payload: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("generated code failed: %s", payload.Error)
	}

	filteredCount := -1
	if payload.FilteredRowCount != nil {
		filteredCount = *payload.FilteredRowCount
	}
	return &ExecutionResult{
		Columns:          payload.Columns,
		Rows:             payload.Rows,
		FilteredRowCount: filteredCount,
	}, nil
}

func truncateForLog(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
