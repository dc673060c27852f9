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

package finisher

import (
	"github.com/wipac/tacc-sync/pipeline"
)

// ProcessOne parses one SyncRequest JSON file and retires it iff no
// in-flight WorkUnit anywhere in cfg.WatchDirs still carries its
// request_id. A request that can't be parsed is quarantined like any
// other inbox item; the conservative never-quarantine rule applies only
// to the WorkUnit files Scan reads out of other stages' directories.
func ProcessOne(cfg Config) pipeline.ProcessFunc {
	return func(path string) (pipeline.Outcome, error) {
		request, err := pipeline.LoadJSON[pipeline.SyncRequest](path)
		if err != nil {
			return pipeline.OutcomeQuarantine, err
		}
		if cfg.Scan(request.RequestId.String()) {
			return pipeline.OutcomeForward, nil
		}
		return pipeline.OutcomeDefer, nil
	}
}
