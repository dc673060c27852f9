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

package retriever

import (
	"context"
	"errors"

	"github.com/wipac/tacc-sync/pipeline"
)

// ProcessOne parses one WorkUnit JSON file and retrieves it, returning
// the Outcome RunLoop should apply: a parse failure or retrieval error
// quarantines the unit, except ErrQuotaExceeded, which stops the rest of
// the cycle while leaving this unit and everything after it in the inbox
// untouched.
func ProcessOne(ctx context.Context, cfg Config) pipeline.ProcessFunc {
	return func(path string) (pipeline.Outcome, error) {
		unit, err := pipeline.LoadJSON[pipeline.WorkUnit](path)
		if err != nil {
			return pipeline.OutcomeQuarantine, err
		}
		if err := Retrieve(ctx, cfg, unit); err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				return pipeline.OutcomeStopCycle, nil
			}
			return pipeline.OutcomeQuarantine, err
		}
		return pipeline.OutcomeForward, nil
	}
}
