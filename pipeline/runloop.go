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

package pipeline

import (
	"log/slog"
	"time"
)

// Outcome tells RunLoop what to do with an inbox item after a stage's
// process function has run on it.
type Outcome int

const (
	// OutcomeForward moves the item to the stage's outbox: processing
	// succeeded and the next stage should pick it up.
	OutcomeForward Outcome = iota
	// OutcomeQuarantine moves the item to the quarantine directory:
	// parsing or processing failed in a way that is not fatal to the
	// pipeline but leaves this item unable to progress automatically.
	OutcomeQuarantine
	// OutcomeDefer leaves the item exactly where it is. Used by stages
	// that mutate an item in place (the Transferrer) or that decide "not
	// yet" (the Finisher waiting on in-flight work).
	OutcomeDefer
	// OutcomeStopCycle aborts the remainder of the current cycle without
	// touching the item that produced it, leaving it and everything
	// after it in the inbox for the next cycle. Used by the Retriever's
	// quota backpressure: a unit that doesn't fit must not let smaller,
	// later units in the same cycle jump the queue.
	OutcomeStopCycle
)

// LoopConfig is the set of directories and timing parameters shared by
// every stage's processing loop.
type LoopConfig struct {
	InboxDir      string
	OutboxDir     string
	QuarantineDir string
	// SleepSeconds is how long to sleep between cycles when not running
	// in RunOnceAndDie mode.
	SleepSeconds int
	// RunOnceAndDie causes RunLoop to return after a single cycle instead
	// of looping forever -- used by the test harness and cron-driven
	// deployments.
	RunOnceAndDie bool
}

// ProcessFunc processes one inbox item (identified by its path) and
// reports what should happen to it next. A non-nil error is logged
// alongside an OutcomeQuarantine outcome to explain why the item could
// not proceed; it is ignored for other outcomes, except that a
// *FatalError makes RunLoop return it whatever the outcome.
type ProcessFunc func(path string) (Outcome, error)

// RunLoop implements the processing loop shared by every stage daemon:
// list pending items, process each one in turn, forward or quarantine or
// defer it, then either exit (RunOnceAndDie) or sleep and repeat. A
// failure to rename an item between directories is fatal to the
// pipeline's durability guarantee, so RunLoop returns immediately with
// the *FatalError it received from Forward (or from process) -- the caller (a stage's
// main) is expected to log it and os.Exit(1).
//
// The loop processes exactly one item at a time, in whatever order the
// directory listing returns, with no worker pool; parallelism belongs to
// the pipeline's separate stage processes, not to any one of them.
func RunLoop(cfg LoopConfig, process ProcessFunc) error {
	for {
		items := ListPending(cfg.InboxDir)
	cycle:
		for _, path := range items {
			outcome, err := process(path)
			if fatal, ok := err.(*FatalError); ok {
				return fatal
			}
			switch outcome {
			case OutcomeForward:
				if ferr := Forward(path, cfg.OutboxDir); ferr != nil {
					return ferr
				}
			case OutcomeQuarantine:
				slog.Error("quarantining item", "path", path, "error", err)
				if ferr := Forward(path, cfg.QuarantineDir); ferr != nil {
					return ferr
				}
			case OutcomeDefer:
				// left in place; picked up again next cycle
			case OutcomeStopCycle:
				slog.Info("stopping cycle early", "path", path)
				break cycle
			}
		}
		if cfg.RunOnceAndDie {
			return nil
		}
		time.Sleep(time.Duration(cfg.SleepSeconds) * time.Second)
	}
}
