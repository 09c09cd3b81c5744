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

package stream

import "sync/atomic"

// Statistics counts the I/O of every stream that reports to it. It is safe
// for concurrent use.
type Statistics struct {
	bytesRead    atomic.Int64
	readOps      atomic.Int64
	bytesWritten atomic.Int64
	writeOps     atomic.Int64
}

// StatisticsSnapshot is a point-in-time copy of Statistics.
type StatisticsSnapshot struct {
	BytesRead    int64 `json:"bytes_read"`
	ReadOps      int64 `json:"read_ops"`
	BytesWritten int64 `json:"bytes_written"`
	WriteOps     int64 `json:"write_ops"`
}

func (s *Statistics) addRead(n int) {
	s.readOps.Add(1)
	s.bytesRead.Add(int64(n))
}

func (s *Statistics) addWrite(n int) {
	s.writeOps.Add(1)
	s.bytesWritten.Add(int64(n))
}

// BytesRead returns the bytes returned by reads.
func (s *Statistics) BytesRead() int64 { return s.bytesRead.Load() }

// ReadOps returns the number of read calls that reached a session.
func (s *Statistics) ReadOps() int64 { return s.readOps.Load() }

// BytesWritten returns the bytes accepted by writes.
func (s *Statistics) BytesWritten() int64 { return s.bytesWritten.Load() }

// WriteOps returns the number of write calls that reached a session.
func (s *Statistics) WriteOps() int64 { return s.writeOps.Load() }

// Snapshot copies the counters.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		BytesRead:    s.BytesRead(),
		ReadOps:      s.ReadOps(),
		BytesWritten: s.BytesWritten(),
		WriteOps:     s.WriteOps(),
	}
}

// Reset zeroes the counters.
func (s *Statistics) Reset() {
	s.bytesRead.Store(0)
	s.readOps.Store(0)
	s.bytesWritten.Store(0)
	s.writeOps.Store(0)
}
