package cmdlog

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"linkloom/internal/logging"
	"linkloom/internal/metrics"
)

func TestRunCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logging.Configure(&buf, "debug")
	defer logging.Configure(os.Stdout, "info")

	runs := testutil.ToFloat64(metrics.CommandRuns.WithLabelValues("probe"))
	errs := testutil.ToFloat64(metrics.CommandErrors.WithLabelValues("probe"))

	if err := Run("probe", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if err := Run("probe", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if got := testutil.ToFloat64(metrics.CommandRuns.WithLabelValues("probe")); got != runs+2 {
		t.Fatalf("runs = %v, want %v", got, runs+2)
	}
	if got := testutil.ToFloat64(metrics.CommandErrors.WithLabelValues("probe")); got != errs+1 {
		t.Fatalf("errors = %v, want %v", got, errs+1)
	}
	out := buf.String()
	if !strings.Contains(out, `"command_ok"`) || !strings.Contains(out, `"command_failed"`) || !strings.Contains(out, `"boom"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}
