package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRunSummaryEmit(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	NewRunSummary("transcode").
		Version("1.2.3").
		AWS("region", "eu-west-1").
		Bucket("media", "my-bucket").
		Role("job", "arn:aws:iam::123456789012:role/MediaConvert").
		Feature("upload", true).
		Config("pollInterval", "200ms").
		Emit(logger)

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("summary is not JSON: %v\n%s", err, buf.String())
	}

	run, ok := doc["run"].(map[string]interface{})
	if !ok {
		t.Fatal("missing run dict")
	}
	if run["command"] != "transcode" || run["version"] != "1.2.3" {
		t.Errorf("unexpected run dict: %v", run)
	}

	resources, ok := doc["resources"].(map[string]interface{})
	if !ok {
		t.Fatal("missing resources dict")
	}
	buckets, ok := resources["s3Buckets"].(map[string]interface{})
	if !ok || buckets["media"] != "my-bucket" {
		t.Errorf("expected media bucket, got %v", resources["s3Buckets"])
	}

	features, ok := doc["features"].(map[string]interface{})
	if !ok || features["upload"] != true {
		t.Errorf("expected upload feature true, got %v", doc["features"])
	}
	if doc["message"] != "Command configured" {
		t.Errorf("unexpected message: %v", doc["message"])
	}
}

func TestRunSummaryOmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	NewRunSummary("socket").Emit(zerolog.New(&buf))

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("summary is not JSON: %v", err)
	}
	for _, key := range []string{"aws", "resources", "features", "config"} {
		if _, ok := doc[key]; ok {
			t.Errorf("expected no %q section", key)
		}
	}
}

func TestSetLevel(t *testing.T) {
	old := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(old)

	SetLevel(" WARN ")
	if got := zerolog.GlobalLevel(); got != zerolog.WarnLevel {
		t.Errorf("expected warn, got %v", got)
	}
}
