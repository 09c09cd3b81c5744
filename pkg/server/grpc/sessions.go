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

package grpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errTooManySessions = status.Error(codes.ResourceExhausted, "too many sessions")
	errTooManyHandles  = status.Error(codes.ResourceExhausted, "too many open handles")
)

// remoteSession is a backend session owned by one client connection.
type remoteSession struct {
	id      string
	user    string
	session common.Session
	metrics *MetricsCollector

	lastUsed atomic.Int64

	mu      sync.Mutex
	handles map[string]any
}

func (rs *remoteSession) touch(now time.Time) {
	rs.lastUsed.Store(now.UnixNano())
}

func (rs *remoteSession) addHandle(h any, limit int) (string, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if limit > 0 && len(rs.handles) >= limit {
		return "", errTooManyHandles
	}
	id := uuid.NewString()
	rs.handles[id] = h
	rs.metrics.openHandles.Add(1)
	return id, nil
}

// handle returns an open handle. Unknown IDs belong to streams that were
// already closed.
func (rs *remoteSession) handle(id string) (any, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	h, ok := rs.handles[id]
	if !ok {
		return nil, common.ErrClosedStream
	}
	return h, nil
}

func (rs *remoteSession) removeHandle(id string) (any, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	h, ok := rs.handles[id]
	if ok {
		delete(rs.handles, id)
		rs.metrics.openHandles.Add(-1)
	}
	return h, ok
}

// close disconnects the backend session, which also releases any handle
// the client left open.
func (rs *remoteSession) close(ctx context.Context) error {
	rs.mu.Lock()
	rs.metrics.openHandles.Add(-int64(len(rs.handles)))
	rs.handles = map[string]any{}
	rs.mu.Unlock()
	return rs.session.Disconnect(ctx)
}

// sessionTable tracks the sessions connected through the server.
type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*remoteSession
	limit    int
	metrics  *MetricsCollector
	now      func() time.Time
}

func newSessionTable(limit int, metrics *MetricsCollector) *sessionTable {
	return &sessionTable{
		sessions: make(map[string]*remoteSession),
		limit:    limit,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (t *sessionTable) add(user string, session common.Session) (*remoteSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit > 0 && len(t.sessions) >= t.limit {
		return nil, errTooManySessions
	}
	rs := &remoteSession{
		id:      uuid.NewString(),
		user:    user,
		session: session,
		metrics: t.metrics,
		handles: make(map[string]any),
	}
	rs.touch(t.now())
	t.sessions[rs.id] = rs
	t.metrics.activeSessions.Add(1)
	return rs, nil
}

// lookup returns the session for id after checking that the caller is its
// owner.
func (t *sessionTable) lookup(ctx context.Context, id string) (*remoteSession, error) {
	t.mu.RLock()
	rs, ok := t.sessions[id]
	t.mu.RUnlock()
	if !ok {
		return nil, common.ErrNotConnected
	}
	if p, ok := adapters.PrincipalFromContext(ctx); ok && p.User != rs.user && !anonymous(p) {
		return nil, common.ErrPermission
	}
	rs.touch(t.now())
	return rs, nil
}

// anonymous reports a header principal that named no user. Such callers
// act as whichever user connected the session.
func anonymous(p *adapters.Principal) bool {
	return p.Method == "header" && p.User == adapters.AnonymousUser
}

func (t *sessionTable) remove(id string) (*remoteSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rs, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
		t.metrics.activeSessions.Add(-1)
	}
	return rs, ok
}

func (t *sessionTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// idle removes and returns the sessions unused since before cutoff.
func (t *sessionTable) idle(cutoff time.Time) []*remoteSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	var stale []*remoteSession
	for id, rs := range t.sessions {
		if rs.lastUsed.Load() < cutoff.UnixNano() {
			delete(t.sessions, id)
			t.metrics.activeSessions.Add(-1)
			stale = append(stale, rs)
		}
	}
	return stale
}

// drain removes every session.
func (t *sessionTable) drain() []*remoteSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	all := make([]*remoteSession, 0, len(t.sessions))
	for id, rs := range t.sessions {
		delete(t.sessions, id)
		all = append(all, rs)
	}
	t.metrics.activeSessions.Add(-int64(len(all)))
	return all
}

func closeAll(ctx context.Context, sessions []*remoteSession) error {
	var errs []error
	for _, rs := range sessions {
		if err := rs.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
