// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
)

func newBufferLogger(format OutputFormat, level adapters.LogLevel) (AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewAuditLogger(&Config{
		Enabled: true,
		Format:  format,
		Level:   level,
		Output:  &buf,
	}), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		records = append(records, record)
	}
	return records
}

func TestNewAuditLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config uses defaults", config: nil},
		{name: "JSON format", config: &Config{Enabled: true, Format: FormatJSON}},
		{name: "text format", config: &Config{Enabled: true, Format: FormatText}},
		{name: "disabled logger", config: &Config{Enabled: false, Level: adapters.ErrorLevel}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if logger := NewAuditLogger(tt.config); logger == nil {
				t.Fatal("Expected non-nil logger")
			}
		})
	}

	if NewDefaultAuditLogger() == nil {
		t.Fatal("Expected non-nil default logger")
	}
}

func TestLogEvent(t *testing.T) {
	logger, buf := newBufferLogger(FormatJSON, adapters.InfoLevel)

	event := &AuditEvent{
		EventType:        EventPathRenamed,
		User:             "alice",
		SessionID:        "sess-1",
		Path:             "/home/alice/a",
		Target:           "/home/alice/b",
		Action:           "rename",
		Result:           ResultSuccess,
		IPAddress:        "192.168.1.1",
		RequestID:        "req-123",
		StatusCode:       0,
		BytesTransferred: 1024,
		Duration:         100 * time.Millisecond,
	}
	if err := logger.LogEvent(context.Background(), event); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	if event.Timestamp.IsZero() {
		t.Error("Expected timestamp to be filled in")
	}

	records := decodeLines(t, buf)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	record := records[0]
	for key, want := range map[string]string{
		"event_type": "PATH_RENAMED",
		"user":       "alice",
		"session_id": "sess-1",
		"path":       "/home/alice/a",
		"target":     "/home/alice/b",
		"request_id": "req-123",
		"level":      "INFO",
	} {
		if record[key] != want {
			t.Errorf("%s = %v, want %q", key, record[key], want)
		}
	}
	if _, ok := record["status_code"]; ok {
		t.Error("Expected zero status code to be omitted")
	}
	if record["bytes_transferred"] != float64(1024) {
		t.Errorf("bytes_transferred = %v", record["bytes_transferred"])
	}
}

func TestLogEventNil(t *testing.T) {
	logger, buf := newBufferLogger(FormatJSON, adapters.InfoLevel)
	if err := logger.LogEvent(context.Background(), nil); err != nil {
		t.Fatalf("LogEvent(nil) failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %s", buf.String())
	}
}

func TestFailuresLogAtWarn(t *testing.T) {
	logger, buf := newBufferLogger(FormatJSON, adapters.InfoLevel)
	err := logger.LogPathAccess(context.Background(), "bob", "s", "/secret", "10.0.0.1", "r", ResultFailure, errors.New("permission denied"))
	if err != nil {
		t.Fatal(err)
	}
	record := decodeLines(t, buf)[0]
	if record["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", record["level"])
	}
	if record["error"] != "permission denied" {
		t.Errorf("error = %v", record["error"])
	}
	if record["action"] != "open" {
		t.Errorf("action = %v", record["action"])
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(FormatJSON, adapters.WarnLevel)
	ctx := context.Background()

	_ = logger.LogAuthSuccess(ctx, "alice", "token", "", "")
	if buf.Len() != 0 {
		t.Fatalf("Expected success to be filtered at warn level, got %s", buf.String())
	}

	_ = logger.LogAuthFailure(ctx, "mallory", "", "", "bad token")
	if len(decodeLines(t, buf)) != 1 {
		t.Fatal("Expected failure to be logged at warn level")
	}

	logger.SetLevel(adapters.ErrorLevel)
	if logger.GetLevel() != adapters.ErrorLevel {
		t.Errorf("GetLevel() = %v", logger.GetLevel())
	}
	buf.Reset()
	_ = logger.LogAuthFailure(ctx, "mallory", "", "", "bad token")
	if buf.Len() != 0 {
		t.Errorf("Expected nothing at error level, got %s", buf.String())
	}
}

func TestLogAuth(t *testing.T) {
	logger, buf := newBufferLogger(FormatJSON, adapters.DebugLevel)
	ctx := context.Background()

	_ = logger.LogAuthFailure(ctx, "mallory", "10.0.0.9", "req-1", "invalid token")
	_ = logger.LogAuthSuccess(ctx, "alice", "header", "10.0.0.1", "req-2")

	records := decodeLines(t, buf)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0]["event_type"] != "AUTH_FAILURE" || records[0]["result"] != "FAILURE" {
		t.Errorf("unexpected failure record: %v", records[0])
	}
	if records[1]["event_type"] != "AUTH_SUCCESS" || records[1]["method"] != "header" {
		t.Errorf("unexpected success record: %v", records[1])
	}
}

func TestLogSession(t *testing.T) {
	logger, buf := newBufferLogger(FormatJSON, adapters.InfoLevel)
	ctx := context.Background()

	_ = logger.LogSession(ctx, EventSessionOpened, "alice", "sess-9", "", "", ResultSuccess, nil)
	_ = logger.LogSession(ctx, EventSessionClosed, "alice", "sess-9", "", "", ResultSuccess, nil)

	records := decodeLines(t, buf)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0]["action"] != "connect" || records[1]["action"] != "disconnect" {
		t.Errorf("actions = %v, %v", records[0]["action"], records[1]["action"])
	}
	if records[1]["session_id"] != "sess-9" {
		t.Errorf("session_id = %v", records[1]["session_id"])
	}
}

func TestLogPathMutation(t *testing.T) {
	tests := []struct {
		eventType EventType
		action    string
	}{
		{EventPathCreated, "create"},
		{EventPathDeleted, "unlink"},
		{EventPathRenamed, "rename"},
		{EventAttributesChanged, "set_attributes"},
		{EventStreamIO, "modify"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			logger, buf := newBufferLogger(FormatJSON, adapters.InfoLevel)
			err := logger.LogPathMutation(context.Background(), tt.eventType, "alice", "s", "/a", "/b", "", "", ResultSuccess, nil)
			if err != nil {
				t.Fatal(err)
			}
			record := decodeLines(t, buf)[0]
			if record["action"] != tt.action {
				t.Errorf("action = %v, want %s", record["action"], tt.action)
			}
			if record["event_type"] != string(tt.eventType) {
				t.Errorf("event_type = %v", record["event_type"])
			}
		})
	}
}

func TestTextFormat(t *testing.T) {
	logger, buf := newBufferLogger(FormatText, adapters.InfoLevel)
	_ = logger.LogPathMutation(context.Background(), EventPathCreated, "alice", "s", "/home/alice/x", "", "", "", ResultSuccess, nil)

	output := buf.String()
	if !strings.Contains(output, "event_type=PATH_CREATED") {
		t.Errorf("Expected text output with event type, got %s", output)
	}
	if !strings.Contains(output, "path=/home/alice/x") {
		t.Errorf("Expected text output with path, got %s", output)
	}
}

func TestDisabledLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLogger(&Config{Enabled: false, Output: &buf})
	ctx := context.Background()

	_ = logger.LogAuthFailure(ctx, "u", "", "", "x")
	_ = logger.LogPathAccess(ctx, "u", "", "/", "", "", ResultSuccess, nil)
	if buf.Len() != 0 {
		t.Errorf("Expected no output from disabled logger, got %s", buf.String())
	}
}

func TestNoOpAuditLogger(t *testing.T) {
	logger := NewNoOpAuditLogger()
	ctx := context.Background()

	if err := logger.LogEvent(ctx, &AuditEvent{}); err != nil {
		t.Errorf("LogEvent: %v", err)
	}
	if err := logger.LogAuthFailure(ctx, "", "", "", ""); err != nil {
		t.Errorf("LogAuthFailure: %v", err)
	}
	if err := logger.LogAuthSuccess(ctx, "", "", "", ""); err != nil {
		t.Errorf("LogAuthSuccess: %v", err)
	}
	if err := logger.LogSession(ctx, EventSessionOpened, "", "", "", "", ResultSuccess, nil); err != nil {
		t.Errorf("LogSession: %v", err)
	}
	if err := logger.LogPathAccess(ctx, "", "", "", "", "", ResultSuccess, nil); err != nil {
		t.Errorf("LogPathAccess: %v", err)
	}
	if err := logger.LogPathMutation(ctx, EventPathDeleted, "", "", "", "", "", "", ResultSuccess, nil); err != nil {
		t.Errorf("LogPathMutation: %v", err)
	}

	logger.SetLevel(adapters.DebugLevel)
	if logger.GetLevel() != adapters.DebugLevel {
		t.Errorf("GetLevel() = %v", logger.GetLevel())
	}
}

func TestAuditEventJSON(t *testing.T) {
	event := AuditEvent{
		EventType: EventDirectoryListed,
		Path:      "/data",
		Action:    "list",
		Result:    ResultSuccess,
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	output := string(data)
	if !strings.Contains(output, `"event_type":"DIRECTORY_LISTED"`) {
		t.Errorf("unexpected JSON: %s", output)
	}
	if strings.Contains(output, "session_id") {
		t.Errorf("Expected empty session_id to be omitted: %s", output)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if !config.Enabled {
		t.Error("Expected enabled by default")
	}
	if config.Format != FormatJSON {
		t.Errorf("Format = %s", config.Format)
	}
	if config.Level != adapters.InfoLevel {
		t.Errorf("Level = %v", config.Level)
	}
	if config.Output == nil {
		t.Error("Expected default output")
	}
}
