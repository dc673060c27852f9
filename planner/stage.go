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

package planner

import (
	"context"
	"log/slog"

	"github.com/wipac/tacc-sync/pipeline"
)

// ProcessOne parses one SyncRequest JSON file and plans it, returning the
// Outcome RunLoop should apply to it: a parse failure or any planning
// error is a quarantine; success always forwards the originating request
// on to the Finisher's inbox, since the Planner's happy-path contract is
// "plan it, then hand the request off" regardless of how many WorkUnits
// (zero or more) resulted.
func ProcessOne(ctx context.Context, cfg Config) pipeline.ProcessFunc {
	return func(path string) (pipeline.Outcome, error) {
		request, err := pipeline.LoadJSON[pipeline.SyncRequest](path)
		if err != nil {
			return pipeline.OutcomeQuarantine, err
		}
		numUnits, err := Plan(ctx, cfg, request)
		if err != nil {
			return pipeline.OutcomeQuarantine, err
		}
		slog.Info("planned request", "request_id", request.RequestId, "work_units", numUnits)
		return pipeline.OutcomeForward, nil
	}
}
