// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package pipeline holds the data model and filesystem-queue primitives
// shared by every stage daemon (planner, retriever, transferrer, reaper,
// finisher). Nothing in this package talks to hsi, globus, or any stage's
// business logic; it is the durable substrate all five stages build on.
package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SyncRequest is the user-facing unit of work: a source base path and glob
// pattern that fans out into zero or more WorkUnits. Immutable once
// created; retired by the Finisher once no derived WorkUnit remains.
type SyncRequest struct {
	RequestId   uuid.UUID `json:"request_id"`
	DateCreated time.Time `json:"date_created"`
	Source      string    `json:"source"`
	Dest        string    `json:"dest"`
	Pattern     string    `json:"pattern"`
}

// WorkFile is a single tape-archived file within a WorkUnit.
type WorkFile struct {
	FileName   string `json:"file_name"`
	HpssPath   string `json:"hpss_path"`
	Size       int64  `json:"size"`
	TapeNum    int64  `json:"tape_num"`
	TapeOffset int64  `json:"tape_offset"`
	// GlobusTaskId is absent until the Transferrer submits a transfer for
	// this file; its presence marks the file as having left state NO_TASK.
	GlobusTaskId string `json:"globus_task_id,omitempty"`
}

// WorkUnit is the per-tape batch of files that is atomically scheduled,
// staged, transferred and reaped. Created by the Planner; mutated only by
// the Transferrer (stamping per-file Globus task IDs); destroyed by the
// Reaper once its staged bytes are removed.
type WorkUnit struct {
	WorkId      uuid.UUID  `json:"work_id"`
	DateCreated time.Time  `json:"date_created"`
	Tape        string     `json:"tape"`
	Size        int64      `json:"size"`
	RequestId   uuid.UUID  `json:"request_id"`
	Files       []WorkFile `json:"files"`
	// TransferId is reserved for a unit-level Globus task grouping; unused
	// by the current per-file transfer model but carried for forward
	// compatibility with a future batched-transfer submission.
	TransferId *uuid.UUID `json:"transfer_id,omitempty"`
}

// Boolify converts a truthy/falsy environment-variable style string into
// a bool: case-insensitively, true/t/yes/y/1 are true; everything else --
// including false/f/no/n/0 and garbage -- is false.
func Boolify(s string) bool {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1":
		return true
	default:
		return false
	}
}
