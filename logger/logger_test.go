package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()

	log := NewLogger()
	if err := log.Init(dir); err != nil {
		t.Fatal(err)
	}
	log.Log("hello")
	log.Logf("turn %d done", 7)
	log.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "ledgerchat_*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log files = %v (%v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"App Started", "hello", "turn 7 done"} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
}

func TestLoggerNewRunNewFile(t *testing.T) {
	dir := t.TempDir()

	first := NewLogger()
	if err := first.Init(dir); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second := NewLogger()
	if err := second.Init(dir); err != nil {
		t.Fatal(err)
	}
	second.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "ledgerchat_*.log"))
	if len(matches) != 2 {
		t.Errorf("expected one file per run, got %v", matches)
	}
}

func TestLoggerEvent(t *testing.T) {
	dir := t.TempDir()
	log := NewLogger()
	if err := log.Init(dir); err != nil {
		t.Fatal(err)
	}
	log.Event("turn_complete", "session", "abc123", "elapsed", "1.2s")
	log.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "ledgerchat_*.log"))
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "turn_complete session=abc123 elapsed=1.2s") {
		t.Errorf("event line missing:\n%s", data)
	}
}

func TestLoggerSafeWithoutInit(t *testing.T) {
	log := NewLogger()
	log.Log("dropped")
	log.Close()
}
