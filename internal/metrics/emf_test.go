package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRecorder_FlushOutput(t *testing.T) {
	var buf bytes.Buffer
	rec := NewWithWriter("MediaConvertCLI", &buf)
	rec.now = func() time.Time { return time.UnixMilli(1700000000000) }

	rec.Dimension("Outcome", "COMPLETE")
	rec.Count("PollAttempts", 3)
	rec.Duration("WaitDuration", 412*time.Millisecond)
	rec.Property("jobId", "job-123")
	if err := rec.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if strings.Count(output, "\n") != 1 {
		t.Errorf("expected a single line, got %q", output)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, output)
	}

	awsMap, ok := doc["_aws"].(map[string]interface{})
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if awsMap["Timestamp"] != float64(1700000000000) {
		t.Errorf("unexpected timestamp %v", awsMap["Timestamp"])
	}

	cwArr, ok := awsMap["CloudWatchMetrics"].([]interface{})
	if !ok || len(cwArr) != 1 {
		t.Fatal("CloudWatchMetrics should hold one entry")
	}
	cw := cwArr[0].(map[string]interface{})
	if cw["Namespace"] != "MediaConvertCLI" {
		t.Errorf("expected namespace MediaConvertCLI, got %v", cw["Namespace"])
	}
	metricsArr := cw["Metrics"].([]interface{})
	if len(metricsArr) != 2 {
		t.Fatalf("expected 2 metric definitions, got %d", len(metricsArr))
	}
	first := metricsArr[0].(map[string]interface{})
	if first["Name"] != "PollAttempts" || first["Unit"] != UnitCount {
		t.Errorf("unexpected first metric %v", first)
	}

	if doc["PollAttempts"] != float64(3) {
		t.Errorf("expected PollAttempts=3, got %v", doc["PollAttempts"])
	}
	if doc["WaitDuration"] != float64(412) {
		t.Errorf("expected WaitDuration=412, got %v", doc["WaitDuration"])
	}
	if doc["Outcome"] != "COMPLETE" {
		t.Errorf("expected Outcome dimension value, got %v", doc["Outcome"])
	}
	if doc["jobId"] != "job-123" {
		t.Errorf("expected jobId property, got %v", doc["jobId"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	rec := NewWithWriter("MediaConvertCLI", &buf)
	rec.Dimension("Outcome", "COMPLETE")
	rec.Property("jobId", "job-1")

	if err := rec.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output without metrics, got %q", buf.String())
	}
}

func TestRecorder_NoDimensions(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("MediaConvertCLI", &buf).Count("Submissions", 1).Flush()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	cw := doc["_aws"].(map[string]interface{})["CloudWatchMetrics"].([]interface{})[0].(map[string]interface{})
	dims := cw["Dimensions"].([]interface{})
	if len(dims) != 1 || len(dims[0].([]interface{})) != 0 {
		t.Errorf("expected a single empty dimension set, got %v", dims)
	}
}
