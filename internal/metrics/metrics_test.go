package metrics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"textreplay/internal/replay"
)

func TestLabelsString(t *testing.T) {
	tests := []struct {
		labels Labels
		want   string
	}{
		{nil, ""},
		{Labels{"kind": "discrepancy"}, `{kind="discrepancy"}`},
		{Labels{"severity": "warning", "kind": "cut_selection"}, `{kind="cut_selection",severity="warning"}`},
	}

	for _, tt := range tests {
		if got := tt.labels.String(); got != tt.want {
			t.Errorf("Labels.String() = %s, want %s", got, tt.want)
		}
	}
}

func TestCounterRegisteredOnce(t *testing.T) {
	r := NewRegistry("textreplay")

	c1 := r.Counter("runs_total", "runs", nil)
	c1.Inc()
	c2 := r.Counter("runs_total", "runs", nil)
	c2.Add(2)

	if c1 != c2 {
		t.Fatal("expected the same counter")
	}
	if c1.Value() != 3 {
		t.Errorf("expected 3, got %d", c1.Value())
	}

	other := r.Counter("runs_total", "runs", Labels{"log": "a.xml"})
	if other == c1 {
		t.Error("labels should select a different series")
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("")
	h := r.Histogram("size", "sizes", nil, []float64{10, 1})

	for _, v := range []float64{0.5, 1, 5, 10, 50} {
		h.Observe(v)
	}

	if h.Count() != 5 {
		t.Errorf("expected 5 observations, got %d", h.Count())
	}
	if h.Sum() != 66.5 {
		t.Errorf("expected sum 66.5, got %g", h.Sum())
	}

	var buf bytes.Buffer
	if err := r.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}
	out := buf.String()

	for _, line := range []string{
		`size_bucket{le="1"} 2`,
		`size_bucket{le="10"} 4`,
		`size_bucket{le="+Inf"} 5`,
		`size_sum 66.5`,
		`size_count 5`,
	} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("missing %q in:\n%s", line, out)
		}
	}
}

func TestWritePrometheusSortedWithSingleHeader(t *testing.T) {
	r := NewRegistry("textreplay")
	r.Counter("diagnostics_total", "diagnostics", Labels{"kind": "b"}).Inc()
	r.Counter("diagnostics_total", "diagnostics", Labels{"kind": "a"}).Add(2)
	r.Gauge("last_run_timestamp_seconds", "last run", nil).Set(42)

	var buf bytes.Buffer
	if err := r.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus failed: %v", err)
	}

	want := `# HELP textreplay_diagnostics_total diagnostics
# TYPE textreplay_diagnostics_total counter
textreplay_diagnostics_total{kind="a"} 2
textreplay_diagnostics_total{kind="b"} 1
# HELP textreplay_last_run_timestamp_seconds last run
# TYPE textreplay_last_run_timestamp_seconds gauge
textreplay_last_run_timestamp_seconds 42
`
	if buf.String() != want {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteFile(t *testing.T) {
	r := NewRegistry("textreplay")
	r.Counter("runs_total", "runs", nil).Inc()

	path := filepath.Join(t.TempDir(), "collector", "textreplay.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), "textreplay_runs_total 1\n") {
		t.Errorf("unexpected file content:\n%s", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the metrics file, got %d entries", len(entries))
	}
}

func TestObserveRun(t *testing.T) {
	m := NewReplayMetrics(nil)

	res := &replay.Result{
		Text:    "héllo",
		Events:  10,
		InFocus: 8,
		Changed: 5,
		Diagnostics: []replay.Diagnostic{
			{EventID: 3, Severity: replay.SeverityWarning, Kind: replay.KindDiscrepancy},
			{EventID: 4, Severity: replay.SeverityWarning, Kind: replay.KindDiscrepancy},
			{EventID: 7, Severity: replay.SeverityInfo, Kind: replay.KindPasteSelection},
		},
	}
	m.ObserveRun(res, 20*time.Millisecond, nil)
	m.ObserveRun(&replay.Result{Text: "ab", Events: 2}, time.Millisecond, errors.New("unknown delete sequence"))

	if m.RunsTotal.Value() != 2 {
		t.Errorf("expected 2 runs, got %d", m.RunsTotal.Value())
	}
	if m.RunsFailed.Value() != 1 {
		t.Errorf("expected 1 failed run, got %d", m.RunsFailed.Value())
	}
	if m.EventsTotal.Value() != 12 {
		t.Errorf("expected 12 events, got %d", m.EventsTotal.Value())
	}
	if m.LastTextLength.Value() != 2 {
		t.Errorf("expected last text length 2, got %d", m.LastTextLength.Value())
	}
	if m.ReplayDuration.Count() != 2 {
		t.Errorf("expected 2 durations, got %d", m.ReplayDuration.Count())
	}

	diags := func(kind, severity string) uint64 {
		return m.Registry().Counter("diagnostics_total", "", Labels{"kind": kind, "severity": severity}).Value()
	}
	if got := diags("discrepancy", "warning"); got != 2 {
		t.Errorf("expected 2 discrepancies, got %d", got)
	}
	if got := diags("paste_selection", "info"); got != 1 {
		t.Errorf("expected 1 paste selection, got %d", got)
	}
}
