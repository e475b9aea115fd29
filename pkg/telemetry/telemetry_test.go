package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	w, err := NewWriter(path, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	w.Append(StepRecord{StepNumber: 1, TTLRemaining: 9})
	w.Append(StepRecord{StepNumber: 2, TTLRemaining: 8})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var rec StepRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("record %d did not decode as JSON: %v", count, err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 lines, got %d", count)
	}
}
