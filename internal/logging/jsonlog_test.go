package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestLogWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "info")
	defer Configure(os.Stdout, "info")

	Debug("hidden", nil)
	Info("search_done", map[string]any{"returned": 3})

	var e map[string]any
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if e["msg"] != "search_done" || e["level"] != "INFO" {
		t.Fatalf("unexpected entry %v", e)
	}
	if e["returned"].(float64) != 3 {
		t.Fatalf("missing field: %v", e)
	}
}
