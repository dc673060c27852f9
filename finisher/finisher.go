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

// Package finisher detects when a SyncRequest has no work left anywhere
// in the pipeline and retires it. A request that can't yet be proven
// finished is simply left in its inbox for the next cycle; only a request
// file that can't be parsed is quarantined.
package finisher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wipac/tacc-sync/pipeline"
)

// Config is the set of directories Finisher scans for WorkUnits still in
// flight for a given request, in addition to its own inbox/outbox
// (handled by pipeline.RunLoop).
type Config struct {
	// WatchDirs are the directories representing "work still in flight":
	// nominally the Retriever inbox (HPSS_DIR), the Transferrer inbox
	// (GLOBUS_DIR), and the Reaper inbox (REAPER_DIR), though the exact
	// set is operator-configured.
	WatchDirs []string
}

// Scan reports whether requestId has no matching in-flight WorkUnit
// across every directory in cfg.WatchDirs. A loading error anywhere (a
// file renamed out from under the scan by another stage, an I/O error, a
// malformed WorkUnit) is treated conservatively: it means "can't rule
// this one out as a match", so Scan returns false rather than risk
// retiring a request with work still in transit.
func (cfg Config) Scan(requestId string) bool {
	for _, dir := range cfg.WatchDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			slog.Warn("couldn't scan watch directory; deferring termination decision", "dir", dir, "error", err)
			return false
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			unit, err := pipeline.LoadJSON[pipeline.WorkUnit](path)
			if err != nil {
				// the file may have been renamed out from under us by its
				// owning stage mid-scan, or be genuinely malformed; either
				// way we can't rule it out as a match.
				slog.Warn("couldn't load work unit during termination scan; deferring", "path", path, "error", err)
				return false
			}
			if unit.RequestId.String() == requestId {
				return false
			}
		}
	}
	return true
}
