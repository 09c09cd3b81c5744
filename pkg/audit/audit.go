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

// Package audit records who did what to which Redfish path.
package audit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
)

// EventType represents the type of audit event
type EventType string

const (
	// EventAuthFailure indicates an authentication failure
	EventAuthFailure EventType = "AUTH_FAILURE"

	// EventAuthSuccess indicates successful authentication
	EventAuthSuccess EventType = "AUTH_SUCCESS"

	// EventSessionOpened indicates a client connected a session
	EventSessionOpened EventType = "SESSION_OPENED"

	// EventSessionClosed indicates a session was disconnected
	EventSessionClosed EventType = "SESSION_CLOSED"

	// EventPathCreated indicates a file or directory was created
	EventPathCreated EventType = "PATH_CREATED"

	// EventPathDeleted indicates a path was unlinked
	EventPathDeleted EventType = "PATH_DELETED"

	// EventPathRenamed indicates a path was moved
	EventPathRenamed EventType = "PATH_RENAMED"

	// EventPathAccessed indicates a path was opened or inspected
	EventPathAccessed EventType = "PATH_ACCESSED"

	// EventAttributesChanged indicates mode, ownership or times were modified
	EventAttributesChanged EventType = "PATH_ATTRIBUTES_CHANGED"

	// EventDirectoryListed indicates a directory was listed
	EventDirectoryListed EventType = "DIRECTORY_LISTED"

	// EventStreamIO indicates data moved through an open handle
	EventStreamIO EventType = "STREAM_IO"

	// EventAdminAccess indicates a request to the admin HTTP server
	EventAdminAccess EventType = "ADMIN_ACCESS"
)

// Result represents the outcome of an audited operation
type Result string

const (
	// ResultSuccess indicates the operation succeeded
	ResultSuccess Result = "SUCCESS"

	// ResultFailure indicates the operation failed
	ResultFailure Result = "FAILURE"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`

	// User is the Redfish user the operation ran as
	User string `json:"user,omitempty"`

	// SessionID identifies the server-side session, if any
	SessionID string `json:"session_id,omitempty"`

	// Path is the path operated on
	Path string `json:"path,omitempty"`

	// Target is the destination of a rename
	Target string `json:"target,omitempty"`

	Action           string        `json:"action"`
	Result           Result        `json:"result"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	IPAddress        string        `json:"ip_address,omitempty"`
	RequestID        string        `json:"request_id,omitempty"`
	Method           string        `json:"method,omitempty"`
	StatusCode       int           `json:"status_code,omitempty"`
	BytesTransferred int64         `json:"bytes_transferred,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
}

// AuditLogger defines the interface for audit logging
type AuditLogger interface {
	// LogEvent logs a generic audit event
	LogEvent(ctx context.Context, event *AuditEvent) error

	// LogAuthFailure logs authentication failures
	LogAuthFailure(ctx context.Context, user, ipAddress, requestID, reason string) error

	// LogAuthSuccess logs successful authentication
	LogAuthSuccess(ctx context.Context, user, method, ipAddress, requestID string) error

	// LogSession logs session open and close
	LogSession(ctx context.Context, eventType EventType, user, sessionID, ipAddress, requestID string, result Result, err error) error

	// LogPathAccess logs read-only path operations
	LogPathAccess(ctx context.Context, user, sessionID, path, ipAddress, requestID string, result Result, err error) error

	// LogPathMutation logs create, delete, rename and attribute changes
	LogPathMutation(ctx context.Context, eventType EventType, user, sessionID, path, target, ipAddress, requestID string, result Result, err error) error

	SetLevel(level adapters.LogLevel)
	GetLevel() adapters.LogLevel
}

// OutputFormat specifies the format for audit log output
type OutputFormat string

const (
	// FormatJSON outputs audit logs in JSON format
	FormatJSON OutputFormat = "json"

	// FormatText outputs audit logs in human-readable text format
	FormatText OutputFormat = "text"
)

// Config holds configuration for the audit logger
type Config struct {
	// Enabled determines if audit logging is active
	Enabled bool

	// Format specifies the output format (JSON or text)
	Format OutputFormat

	// Level drops events below it. Successful operations are logged at
	// info, failures at warn.
	Level adapters.LogLevel

	// Output specifies where to write logs (defaults to stdout)
	Output io.Writer
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Format:  FormatJSON,
		Level:   adapters.InfoLevel,
		Output:  os.Stdout,
	}
}

// DefaultAuditLogger implements AuditLogger using slog
type DefaultAuditLogger struct {
	config *Config
	logger *slog.Logger
	level  atomic.Int32
}

// NewDefaultAuditLogger creates a new audit logger with default configuration
func NewDefaultAuditLogger() AuditLogger {
	return NewAuditLogger(DefaultConfig())
}

// NewAuditLogger creates a new audit logger with the specified configuration
func NewAuditLogger(config *Config) AuditLogger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(config.Output, opts)
	default:
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	a := &DefaultAuditLogger{
		config: config,
		logger: slog.New(handler),
	}
	a.level.Store(int32(config.Level))
	return a
}

// LogEvent logs a generic audit event
func (a *DefaultAuditLogger) LogEvent(ctx context.Context, event *AuditEvent) error {
	if !a.config.Enabled || event == nil {
		return nil
	}

	level, slevel := adapters.InfoLevel, slog.LevelInfo
	if event.Result == ResultFailure {
		level, slevel = adapters.WarnLevel, slog.LevelWarn
	}
	if level < a.GetLevel() {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []slog.Attr{
		slog.Time("timestamp", event.Timestamp),
		slog.String("event_type", string(event.EventType)),
		slog.String("action", event.Action),
		slog.String("result", string(event.Result)),
	}
	str := func(key, value string) {
		if value != "" {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	str("user", event.User)
	str("session_id", event.SessionID)
	str("path", event.Path)
	str("target", event.Target)
	str("error", event.ErrorMessage)
	str("ip_address", event.IPAddress)
	str("request_id", event.RequestID)
	str("method", event.Method)
	if event.StatusCode > 0 {
		attrs = append(attrs, slog.Int("status_code", event.StatusCode))
	}
	if event.BytesTransferred > 0 {
		attrs = append(attrs, slog.Int64("bytes_transferred", event.BytesTransferred))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}

	a.logger.LogAttrs(ctx, slevel, "Audit event: "+event.Action, attrs...)
	return nil
}

// LogAuthFailure logs authentication failures
func (a *DefaultAuditLogger) LogAuthFailure(ctx context.Context, user, ipAddress, requestID, reason string) error {
	return a.LogEvent(ctx, &AuditEvent{
		EventType:    EventAuthFailure,
		User:         user,
		Action:       "authenticate",
		Result:       ResultFailure,
		ErrorMessage: reason,
		IPAddress:    ipAddress,
		RequestID:    requestID,
	})
}

// LogAuthSuccess logs successful authentication
func (a *DefaultAuditLogger) LogAuthSuccess(ctx context.Context, user, method, ipAddress, requestID string) error {
	return a.LogEvent(ctx, &AuditEvent{
		EventType: EventAuthSuccess,
		User:      user,
		Action:    "authenticate",
		Result:    ResultSuccess,
		IPAddress: ipAddress,
		RequestID: requestID,
		Method:    method,
	})
}

// LogSession logs session open and close
func (a *DefaultAuditLogger) LogSession(ctx context.Context, eventType EventType, user, sessionID, ipAddress, requestID string, result Result, err error) error {
	action := "connect"
	if eventType == EventSessionClosed {
		action = "disconnect"
	}
	event := &AuditEvent{
		EventType: eventType,
		User:      user,
		SessionID: sessionID,
		Action:    action,
		Result:    result,
		IPAddress: ipAddress,
		RequestID: requestID,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	return a.LogEvent(ctx, event)
}

// LogPathAccess logs read-only path operations
func (a *DefaultAuditLogger) LogPathAccess(ctx context.Context, user, sessionID, path, ipAddress, requestID string, result Result, err error) error {
	event := &AuditEvent{
		EventType: EventPathAccessed,
		User:      user,
		SessionID: sessionID,
		Path:      path,
		Action:    "open",
		Result:    result,
		IPAddress: ipAddress,
		RequestID: requestID,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	return a.LogEvent(ctx, event)
}

// LogPathMutation logs create, delete, rename and attribute changes
func (a *DefaultAuditLogger) LogPathMutation(ctx context.Context, eventType EventType, user, sessionID, path, target, ipAddress, requestID string, result Result, err error) error {
	action := "modify"
	switch eventType {
	case EventPathCreated:
		action = "create"
	case EventPathDeleted:
		action = "unlink"
	case EventPathRenamed:
		action = "rename"
	case EventAttributesChanged:
		action = "set_attributes"
	}

	event := &AuditEvent{
		EventType: eventType,
		User:      user,
		SessionID: sessionID,
		Path:      path,
		Target:    target,
		Action:    action,
		Result:    result,
		IPAddress: ipAddress,
		RequestID: requestID,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	return a.LogEvent(ctx, event)
}

// SetLevel sets the minimum audit level
func (a *DefaultAuditLogger) SetLevel(level adapters.LogLevel) {
	a.level.Store(int32(level))
}

// GetLevel returns the current audit level
func (a *DefaultAuditLogger) GetLevel() adapters.LogLevel {
	return adapters.LogLevel(a.level.Load())
}

// NoOpAuditLogger is an audit logger that discards all events
type NoOpAuditLogger struct {
	level adapters.LogLevel
}

// NewNoOpAuditLogger creates a new no-op audit logger
func NewNoOpAuditLogger() AuditLogger {
	return &NoOpAuditLogger{level: adapters.InfoLevel}
}

func (n *NoOpAuditLogger) LogEvent(ctx context.Context, event *AuditEvent) error { return nil }

func (n *NoOpAuditLogger) LogAuthFailure(ctx context.Context, user, ipAddress, requestID, reason string) error {
	return nil
}

func (n *NoOpAuditLogger) LogAuthSuccess(ctx context.Context, user, method, ipAddress, requestID string) error {
	return nil
}

func (n *NoOpAuditLogger) LogSession(ctx context.Context, eventType EventType, user, sessionID, ipAddress, requestID string, result Result, err error) error {
	return nil
}

func (n *NoOpAuditLogger) LogPathAccess(ctx context.Context, user, sessionID, path, ipAddress, requestID string, result Result, err error) error {
	return nil
}

func (n *NoOpAuditLogger) LogPathMutation(ctx context.Context, eventType EventType, user, sessionID, path, target, ipAddress, requestID string, result Result, err error) error {
	return nil
}

func (n *NoOpAuditLogger) SetLevel(level adapters.LogLevel) { n.level = level }

func (n *NoOpAuditLogger) GetLevel() adapters.LogLevel { return n.level }
