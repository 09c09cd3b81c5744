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

package protocol

import (
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// ChunkSize is the largest payload a client puts in a single Read or Write.
// JSON carries payloads as base64, so a full chunk stays well under the
// default gRPC message limit.
const ChunkSize = 1 << 20

// Empty is sent where an RPC has nothing to say.
type Empty struct{}

// ConnectRequest opens a server-side session for the authenticated user.
type ConnectRequest struct {
	// User is the name the client asked for. The server may replace it
	// with the authenticated principal.
	User string `json:"user"`
}

// ConnectResponse names the new session.
type ConnectResponse struct {
	SessionID string `json:"session_id"`
	User      string `json:"user"`
}

// SessionRequest addresses a session.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// PathRequest addresses one path within a session.
type PathRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
}

// CreateRequest creates a file.
type CreateRequest struct {
	SessionID string               `json:"session_id"`
	Path      string               `json:"path"`
	Options   common.CreateOptions `json:"options"`
}

// MkdirsRequest creates a directory and its ancestors.
type MkdirsRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Mode      uint32 `json:"mode"`
}

// BlockLocationsRequest asks for the replicas of a byte range.
type BlockLocationsRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Start     int64  `json:"start"`
	Length    int64  `json:"length"`
}

// RenameRequest moves a path.
type RenameRequest struct {
	SessionID string `json:"session_id"`
	Src       string `json:"src"`
	Dst       string `json:"dst"`
}

// ChmodRequest replaces permission bits.
type ChmodRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Mode      uint32 `json:"mode"`
}

// ChownRequest changes owner and group.
type ChownRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Owner     string `json:"owner"`
	Group     string `json:"group"`
}

// SetTimesRequest changes timestamps. Zero times are left unchanged.
type SetTimesRequest struct {
	SessionID  string    `json:"session_id"`
	Path       string    `json:"path"`
	ModTime    time.Time `json:"mtime"`
	AccessTime time.Time `json:"atime"`
}

// HandleRequest addresses an open handle.
type HandleRequest struct {
	SessionID string `json:"session_id"`
	Handle    string `json:"handle"`
}

// WriteRequest appends bytes through a write handle.
type WriteRequest struct {
	SessionID string `json:"session_id"`
	Handle    string `json:"handle"`
	Data      []byte `json:"data"`
}

// ReadRequest reads through a read handle. Positioned reads use Offset and
// leave the cursor alone.
type ReadRequest struct {
	SessionID  string `json:"session_id"`
	Handle     string `json:"handle"`
	Length     int    `json:"length"`
	Offset     int64  `json:"offset"`
	Positioned bool   `json:"positioned"`
}

// SeekRequest moves a read cursor.
type SeekRequest struct {
	SessionID string `json:"session_id"`
	Handle    string `json:"handle"`
	Offset    int64  `json:"offset"`
}

// HandleResponse names a newly opened handle.
type HandleResponse struct {
	Handle string `json:"handle"`
}

// BoolResponse carries a yes/no result.
type BoolResponse struct {
	Value bool `json:"value"`
}

// CountResponse carries a byte count or offset.
type CountResponse struct {
	N int64 `json:"n"`
}

// ReadResponse carries read bytes. EOF is set when the read started at or
// beyond the end of the file.
type ReadResponse struct {
	Data []byte `json:"data"`
	EOF  bool   `json:"eof"`
}

// StatusResponse carries one path status.
type StatusResponse struct {
	Status common.FileStatus `json:"status"`
}

// ListResponse carries a directory listing.
type ListResponse struct {
	Entries []common.FileStatus `json:"entries"`
}

// BlockLocationsResponse carries replica locations.
type BlockLocationsResponse struct {
	Locations []common.BlockLocation `json:"locations"`
}

func (r *SessionRequest) GetSessionID() string        { return r.SessionID }
func (r *PathRequest) GetSessionID() string           { return r.SessionID }
func (r *CreateRequest) GetSessionID() string         { return r.SessionID }
func (r *MkdirsRequest) GetSessionID() string         { return r.SessionID }
func (r *BlockLocationsRequest) GetSessionID() string { return r.SessionID }
func (r *RenameRequest) GetSessionID() string         { return r.SessionID }
func (r *ChmodRequest) GetSessionID() string          { return r.SessionID }
func (r *ChownRequest) GetSessionID() string          { return r.SessionID }
func (r *SetTimesRequest) GetSessionID() string       { return r.SessionID }
func (r *HandleRequest) GetSessionID() string         { return r.SessionID }
func (r *WriteRequest) GetSessionID() string          { return r.SessionID }
func (r *ReadRequest) GetSessionID() string           { return r.SessionID }
func (r *SeekRequest) GetSessionID() string           { return r.SessionID }

func (r *PathRequest) GetPath() string           { return r.Path }
func (r *CreateRequest) GetPath() string         { return r.Path }
func (r *MkdirsRequest) GetPath() string         { return r.Path }
func (r *BlockLocationsRequest) GetPath() string { return r.Path }
func (r *ChmodRequest) GetPath() string          { return r.Path }
func (r *ChownRequest) GetPath() string          { return r.Path }
func (r *SetTimesRequest) GetPath() string       { return r.Path }

// GetPath returns the source of the rename.
func (r *RenameRequest) GetPath() string { return r.Src }

// GetTarget returns the destination of the rename.
func (r *RenameRequest) GetTarget() string { return r.Dst }
