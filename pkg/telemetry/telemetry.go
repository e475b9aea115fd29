// Package telemetry appends one newline-delimited JSON record per
// executed step. Appends are non-blocking with respect to semantic
// behavior: a write failure is logged and swallowed, never propagated
// into execution outcomes.
package telemetry

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/model"
)

// PlanStateSnapshot is the shape of plan_state in a telemetry record.
type PlanStateSnapshot struct {
	Goal  string            `json:"goal"`
	Steps []*model.PlanStep `json:"steps"`
}

// ErrorRecord is one entry in a StepRecord's errors array.
type ErrorRecord struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StepRecord is one telemetry line: per spec.md section 6, one record per
// executed step.
type StepRecord struct {
	StepNumber        int               `json:"step_number"`
	PlanState         PlanStateSnapshot `json:"plan_state"`
	LLMOutput         any               `json:"llm_output"`
	SupervisorActions []map[string]any  `json:"supervisor_actions"`
	ToolCalls         []map[string]any  `json:"tool_calls"`
	TTLRemaining      int               `json:"ttl_remaining"`
	Errors            []ErrorRecord     `json:"errors"`
	Timestamp         string            `json:"timestamp"`
}

// Writer appends StepRecords to a JSONL sink.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	logger logging.ExtendedLogger
}

// NewWriter opens (creating if needed) the file at path for append-only
// writes.
func NewWriter(path string, logger logging.ExtendedLogger) (*Writer, error) {
	if logger == nil {
		logger = logging.NewNoop()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{file: f, logger: logger}, nil
}

// Append writes one record as a single JSON line. Failures are logged and
// swallowed per the non-blocking telemetry contract.
func (w *Writer) Append(rec StepRecord) {
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if rec.SupervisorActions == nil {
		rec.SupervisorActions = []map[string]any{}
	}
	if rec.ToolCalls == nil {
		rec.ToolCalls = []map[string]any{}
	}
	if rec.Errors == nil {
		rec.Errors = []ErrorRecord{}
	}

	line, err := json.Marshal(rec)
	if err != nil {
		w.logger.Warnf("telemetry: failed to marshal record: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		w.logger.Warnf("telemetry: failed to write record: %v", err)
	}
}

// Close closes the underlying sink.
func (w *Writer) Close() error {
	return w.file.Close()
}
