package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogger_LevelFilteringAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, WARNING)

	logger.Info("hidden", nil)
	logger.Warn("backend unavailable", Fields{"provider": "google", "attempt": 1})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARNING]") || !strings.Contains(out, "backend unavailable") {
		t.Fatalf("missing warning line: %q", out)
	}
	if !strings.Contains(out, "| attempt=1 provider=google") {
		t.Fatalf("fields should be sorted and appended: %q", out)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, DEBUG).With(Fields{"component": "persona"})
	logger.Debug("composed", Fields{"depth": 7})

	if !strings.Contains(buf.String(), "component=persona depth=7") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestLogger_WithSharesLogFile(t *testing.T) {
	parent := NewLogger(nil, DEBUG)
	child := parent.With(Fields{"component": "api"})

	// 子 logger 创建之后才打开文件
	path := filepath.Join(t.TempDir(), "logs", "persona.log")
	if err := parent.InitLogFile(path); err != nil {
		t.Fatalf("InitLogFile: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); parent.Info("parent line", nil) }()
		go func() { defer wg.Done(); child.Info("child line", nil) }()
	}
	wg.Wait()

	if err := parent.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	child.Info("after close", nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 40 {
		t.Fatalf("expected 40 whole lines, got %d", len(lines))
	}
	var childLines int
	for _, line := range lines {
		if !strings.HasPrefix(line, "[INFO]") {
			t.Fatalf("interleaved line: %q", line)
		}
		if strings.Contains(line, "child line | component=api") {
			childLines++
		}
	}
	if childLines != 20 {
		t.Fatalf("child wrote %d lines to the shared file", childLines)
	}
	if strings.Contains(string(data), "after close") {
		t.Fatal("child kept writing to a closed file")
	}
}

func TestParseLogLevel(t *testing.T) {
	if ParseLogLevel("DEBUG") != DEBUG || ParseLogLevel("warn") != WARNING || ParseLogLevel("nonsense") != INFO {
		t.Fatal("unexpected level mapping")
	}
}

func TestMetrics_ConcurrentCounters(t *testing.T) {
	m := NewMetricsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter("hits")
		}()
	}
	wg.Wait()

	if got := m.GetCounterValue("hits"); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
	if m.GetCounterValue("missing") != 0 {
		t.Fatal("unknown counter should read as 0")
	}
}

func TestSynthesisMetrics(t *testing.T) {
	sm := NewSynthesisMetrics(NewMetricsCollector())
	sm.RecordGeneration("google", true, 120*time.Millisecond)
	sm.RecordGeneration("", false, 0)
	sm.RecordTranslation(false)
	sm.RecordAPIRequest("/api/translate", "POST", 200, 5*time.Millisecond)

	snap := sm.Collector().GetMetrics()
	if snap.Counters[MetricGenerationGenerative] != 1 || snap.Counters[MetricGenerationFallback] != 1 {
		t.Fatalf("unexpected generation counters: %v", snap.Counters)
	}
	if snap.Counters[MetricTranslationFallback] != 1 {
		t.Fatalf("translation fallback not counted: %v", snap.Counters)
	}
	if snap.Counters[MetricAPIRequests+".status_2xx"] != 1 {
		t.Fatalf("status class not counted: %v", snap.Counters)
	}
	if snap.Histograms[MetricLLMLatency]["max"] != 120 {
		t.Fatalf("latency histogram wrong: %v", snap.Histograms)
	}
}

func TestSynthesisMetrics_Downgrade(t *testing.T) {
	sm := NewSynthesisMetrics(NewMetricsCollector())
	sm.RecordGeneration("google", true, 0)
	sm.RecordDowngrade("google")

	c := sm.Collector()
	if c.GetCounterValue(MetricGenerationGenerative) != 0 || c.GetCounterValue(MetricGenerationGenerative+".google") != 0 {
		t.Fatalf("generative count not reverted: %v", c.GetMetrics().Counters)
	}
	if c.GetCounterValue(MetricGenerationFallback) != 1 || c.GetCounterValue(MetricGenerationDowngraded) != 1 {
		t.Fatalf("downgrade not counted as fallback: %v", c.GetMetrics().Counters)
	}
}
