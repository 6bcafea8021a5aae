package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/waypost/internal/ir"
)

// Table names for the two mutation namespaces.
const (
	pendingTable = "pending_mutations"
	failedTable  = "failed_mutations"
)

// marshalTime converts a timestamp to TEXT for storage.
// Always UTC with nanosecond precision so lexical order matches time order.
func marshalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// unmarshalTime parses a stored timestamp.
func unmarshalTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unmarshal time: %w", err)
	}
	return t, nil
}

// marshalHistory converts flow history to JSON TEXT.
func marshalHistory(history []int) (string, error) {
	if history == nil {
		history = []int{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return string(data), nil
}

// unmarshalHistory parses JSON TEXT to flow history.
func unmarshalHistory(data string) ([]int, error) {
	history := []int{}
	if data == "" {
		return history, nil
	}
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return history, nil
}

// marshalStepPaths converts step paths to JSON TEXT.
func marshalStepPaths(paths []string) (string, error) {
	if paths == nil {
		paths = []string{}
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return "", fmt.Errorf("marshal step paths: %w", err)
	}
	return string(data), nil
}

// unmarshalStepPaths parses JSON TEXT to step paths.
func unmarshalStepPaths(data string) ([]string, error) {
	paths := []string{}
	if data == "" {
		return paths, nil
	}
	if err := json.Unmarshal([]byte(data), &paths); err != nil {
		return nil, fmt.Errorf("unmarshal step paths: %w", err)
	}
	return paths, nil
}

// marshalData converts collected flow data to canonical JSON TEXT.
func marshalData(data ir.Object) (string, error) {
	if data == nil {
		data = ir.Object{}
	}
	b, err := ir.MarshalCanonical(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(b), nil
}

// unmarshalData parses canonical JSON TEXT to an ir.Object.
func unmarshalData(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return obj, nil
}
