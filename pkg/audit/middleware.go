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
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/protocol"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type contextKey string

const (
	// AuditLoggerKey is the context key for the audit logger
	AuditLoggerKey contextKey = "audit_logger"

	// RequestIDKey is the context key for the request ID
	RequestIDKey contextKey = "request_id"

	requestIDMetadataKey = "x-request-id"
)

// GetAuditLogger retrieves the audit logger from the context
func GetAuditLogger(ctx context.Context) AuditLogger {
	if logger, ok := ctx.Value(AuditLoggerKey).(AuditLogger); ok {
		return logger
	}
	return NewNoOpAuditLogger()
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// AuditMiddleware creates a Gin middleware that audits admin requests.
func AuditMiddleware(auditLogger AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-ID", requestID)
		}

		startTime := time.Now()
		ctx := context.WithValue(c.Request.Context(), AuditLoggerKey, auditLogger)
		c.Request = c.Request.WithContext(context.WithValue(ctx, RequestIDKey, requestID))

		c.Next()

		path := c.Request.URL.Path
		if !shouldAuditRequest(path) {
			return
		}

		statusCode := c.Writer.Status()
		result := ResultSuccess
		errorMessage := ""
		if statusCode >= http.StatusBadRequest {
			result = ResultFailure
			if len(c.Errors) > 0 {
				errorMessage = c.Errors.Last().Error()
			}
		}

		user := ""
		if value, ok := c.Get("principal"); ok {
			if p, ok := value.(*adapters.Principal); ok {
				user = p.User
			}
		}

		_ = auditLogger.LogEvent(c.Request.Context(), &AuditEvent{ // #nosec G104 -- audit failures must not fail the request
			Timestamp:    startTime,
			EventType:    EventAdminAccess,
			User:         user,
			Path:         path,
			Action:       c.Request.Method + " " + path,
			Result:       result,
			ErrorMessage: errorMessage,
			IPAddress:    c.ClientIP(),
			RequestID:    requestID,
			Method:       c.Request.Method,
			StatusCode:   statusCode,
			Duration:     time.Since(startTime),
		})
	}
}

// AuditUnaryInterceptor creates a gRPC unary interceptor that audits
// metadata service calls.
func AuditUnaryInterceptor(auditLogger AuditLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, requestID := withRequestContext(ctx, auditLogger)
		startTime := time.Now()

		resp, err := handler(ctx, req)

		if !shouldAuditGRPCMethod(info.FullMethod) {
			return resp, err
		}

		event := &AuditEvent{
			Timestamp: startTime,
			EventType: determineGRPCEventType(info.FullMethod),
			User:      extractUser(ctx),
			Action:    methodName(info.FullMethod),
			Result:    ResultSuccess,
			IPAddress: extractClientIP(ctx),
			RequestID: requestID,
			Method:    info.FullMethod,
			Duration:  time.Since(startTime),
		}
		event.SessionID, event.Path, event.Target = extractGRPCResourceInfo(req)
		event.BytesTransferred = bytesTransferred(req, resp)
		if connected, ok := resp.(*protocol.ConnectResponse); ok && connected != nil {
			event.SessionID = connected.SessionID
			event.User = connected.User
		}
		if err != nil {
			event.Result = ResultFailure
			event.ErrorMessage = err.Error()
			if st, ok := status.FromError(err); ok {
				event.StatusCode = int(st.Code())
			}
		}

		_ = auditLogger.LogEvent(ctx, event) // #nosec G104 -- audit failures must not fail the call
		return resp, err
	}
}

// AuditStreamInterceptor creates a gRPC stream interceptor for audit logging
func AuditStreamInterceptor(auditLogger AuditLogger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, requestID := withRequestContext(ss.Context(), auditLogger)
		startTime := time.Now()

		err := handler(srv, &auditServerStream{ServerStream: ss, ctx: ctx})

		if !shouldAuditGRPCMethod(info.FullMethod) {
			return err
		}

		event := &AuditEvent{
			Timestamp: startTime,
			EventType: determineGRPCEventType(info.FullMethod),
			User:      extractUser(ctx),
			Action:    methodName(info.FullMethod),
			Result:    ResultSuccess,
			IPAddress: extractClientIP(ctx),
			RequestID: requestID,
			Method:    info.FullMethod,
			Duration:  time.Since(startTime),
		}
		if err != nil {
			event.Result = ResultFailure
			event.ErrorMessage = err.Error()
			if st, ok := status.FromError(err); ok {
				event.StatusCode = int(st.Code())
			}
		}

		_ = auditLogger.LogEvent(ctx, event) // #nosec G104 -- audit failures must not fail the call
		return err
	}
}

// auditServerStream wraps grpc.ServerStream to provide a custom context
type auditServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *auditServerStream) Context() context.Context {
	return s.ctx
}

func withRequestContext(ctx context.Context, auditLogger AuditLogger) (context.Context, string) {
	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(requestIDMetadataKey); len(ids) > 0 {
			requestID = ids[0]
		}
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = context.WithValue(ctx, AuditLoggerKey, auditLogger)
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	return ctx, requestID
}

var grpcEventTypes = map[string]EventType{
	protocol.MethodConnect:           EventSessionOpened,
	protocol.MethodDisconnect:        EventSessionClosed,
	protocol.MethodCreate:            EventPathCreated,
	protocol.MethodMkdirs:            EventPathCreated,
	protocol.MethodOpen:              EventPathAccessed,
	protocol.MethodGetPathStatus:     EventPathAccessed,
	protocol.MethodGetBlockLocations: EventPathAccessed,
	protocol.MethodListDirectory:     EventDirectoryListed,
	protocol.MethodUnlink:            EventPathDeleted,
	protocol.MethodUnlinkTree:        EventPathDeleted,
	protocol.MethodRename:            EventPathRenamed,
	protocol.MethodChmod:             EventAttributesChanged,
	protocol.MethodChown:             EventAttributesChanged,
	protocol.MethodSetTimes:          EventAttributesChanged,
}

func methodName(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}

func determineGRPCEventType(fullMethod string) EventType {
	if eventType, ok := grpcEventTypes[methodName(fullMethod)]; ok {
		return eventType
	}
	return EventStreamIO
}

func extractGRPCResourceInfo(req any) (sessionID, path, target string) {
	if g, ok := req.(interface{ GetSessionID() string }); ok {
		sessionID = g.GetSessionID()
	}
	if g, ok := req.(interface{ GetPath() string }); ok {
		path = g.GetPath()
	}
	if g, ok := req.(interface{ GetTarget() string }); ok {
		target = g.GetTarget()
	}
	return sessionID, path, target
}

func bytesTransferred(req, resp any) int64 {
	if w, ok := req.(*protocol.WriteRequest); ok && w != nil {
		return int64(len(w.Data))
	}
	if r, ok := resp.(*protocol.ReadResponse); ok && r != nil {
		return int64(len(r.Data))
	}
	return 0
}

// extractUser prefers an authenticated principal and falls back to the
// user the client claimed.
func extractUser(ctx context.Context) string {
	if p, ok := adapters.PrincipalFromContext(ctx); ok {
		return p.User
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if users := md.Get(adapters.UserMetadataKey); len(users) > 0 {
			return users[0]
		}
	}
	return ""
}

func extractClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ips := md.Get("x-forwarded-for"); len(ips) > 0 {
			return strings.TrimSpace(strings.Split(ips[0], ",")[0])
		}
		if ips := md.Get("x-real-ip"); len(ips) > 0 {
			return ips[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

func shouldAuditRequest(path string) bool {
	return path != "/health" && path != "/metrics" && path != "/ping"
}

// shouldAuditGRPCMethod skips health checks and cursor queries that
// neither move data nor change state.
func shouldAuditGRPCMethod(fullMethod string) bool {
	if strings.Contains(fullMethod, "grpc.health") {
		return false
	}
	switch methodName(fullMethod) {
	case protocol.MethodTell, protocol.MethodAvailable, protocol.MethodSeek:
		return false
	}
	return true
}
