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

// Package reaper removes a finished WorkUnit's staged directory, restoring
// the disk capacity the Retriever's backpressure check depends on.
package reaper

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wipac/tacc-sync/journal"
	"github.com/wipac/tacc-sync/pipeline"
)

// Config bundles the staging directory and optional audit journal a
// Reaper cycle needs.
type Config struct {
	TransferDir string
	// Journal is optional; when non-nil, every reaped WorkUnit is
	// recorded there for operator querying.
	Journal *journal.Journal
}

// Reap removes TransferDir/<work_id>/ recursively.
func Reap(cfg Config, unit pipeline.WorkUnit) error {
	stagedDir := filepath.Join(cfg.TransferDir, unit.WorkId.String())
	if err := os.RemoveAll(stagedDir); err != nil {
		return fmt.Errorf("couldn't remove staged directory %s: %w", stagedDir, err)
	}
	slog.Info("reaped work unit", "work_id", unit.WorkId, "tape", unit.Tape)

	if cfg.Journal != nil {
		if err := cfg.Journal.Record(journal.Entry{
			WorkId:    unit.WorkId,
			RequestId: unit.RequestId,
			Tape:      unit.Tape,
			Size:      unit.Size,
			NumFiles:  len(unit.Files),
			Status:    journal.StatusReaped,
		}); err != nil {
			slog.Warn("couldn't record reaped work unit in journal", "work_id", unit.WorkId, "error", err)
		}
	}
	return nil
}
