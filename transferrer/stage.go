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

package transferrer

import (
	"context"
	"log/slog"

	"github.com/wipac/tacc-sync/journal"
	"github.com/wipac/tacc-sync/pipeline"
)

// ProcessOne parses one WorkUnit JSON file and advances its transfer
// state machine by one cycle. A parse failure or a *QuarantineError
// quarantines the unit; otherwise the unit is forwarded only once every
// file has reached SUCCEEDED, and left in place (already rewritten in
// place by ProcessUnit if anything changed) to be revisited next cycle.
func ProcessOne(ctx context.Context, cfg Config) pipeline.ProcessFunc {
	return func(path string) (pipeline.Outcome, error) {
		unit, err := pipeline.LoadJSON[pipeline.WorkUnit](path)
		if err != nil {
			return pipeline.OutcomeQuarantine, err
		}
		finished, err := ProcessUnit(ctx, cfg, &unit)
		if err != nil {
			if _, ok := err.(*pipeline.FatalError); ok {
				return pipeline.OutcomeDefer, err
			}
			recordQuarantine(cfg, unit)
			return pipeline.OutcomeQuarantine, err
		}
		if finished {
			return pipeline.OutcomeForward, nil
		}
		return pipeline.OutcomeDefer, nil
	}
}

func recordQuarantine(cfg Config, unit pipeline.WorkUnit) {
	if cfg.Journal == nil {
		return
	}
	if err := cfg.Journal.Record(journal.Entry{
		WorkId:    unit.WorkId,
		RequestId: unit.RequestId,
		Tape:      unit.Tape,
		Size:      unit.Size,
		NumFiles:  len(unit.Files),
		Status:    journal.StatusQuarantined,
	}); err != nil {
		slog.Warn("couldn't record quarantined work unit in journal", "work_id", unit.WorkId, "error", err)
	}
}
