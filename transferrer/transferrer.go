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

// Package transferrer drives each WorkFile through its Globus transfer
// state machine and is the only stage that mutates a WorkUnit in place.
// It is restart-safe: re-invoking it after a crash never submits a
// duplicate transfer for a file that already has a globus_task_id.
package transferrer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/wipac/tacc-sync/globus"
	"github.com/wipac/tacc-sync/journal"
	"github.com/wipac/tacc-sync/pipeline"
)

// Config bundles the endpoints, path prefixes, and directories a
// Transferrer cycle needs.
type Config struct {
	SourceEndpoint string
	DestEndpoint   string
	HpssBasePath   string
	TaccBasePath   string
	TransferDir    string
	InboxDir       string
	Globus         globus.Client
	// Journal is optional; when non-nil, a unit quarantined by this stage
	// is recorded there alongside the Reaper's successful entries.
	Journal *journal.Journal
}

// QuarantineError wraps a per-unit processing failure that should send
// the WorkUnit to quarantine rather than abort the process -- a
// terminal FAILED Globus status, a rejected transfer submission, or the
// HPSS_BASE_PATH prefix invariant being violated.
type QuarantineError struct {
	Message string
}

func (e *QuarantineError) Error() string {
	return e.Message
}

// ProcessUnit advances every WorkFile in unit by one state-machine step,
// rewrites the WorkUnit in place if any file was updated this cycle, and
// reports whether the unit is now finished (every file SUCCEEDED) and
// therefore ready to forward to the Reaper.
func ProcessUnit(ctx context.Context, cfg Config, unit *pipeline.WorkUnit) (finished bool, err error) {
	slog.Info("transferring work unit", "work_id", unit.WorkId, "tape", unit.Tape, "files", len(unit.Files))

	finishedCount := 0
	updated := false
	for i := range unit.Files {
		fileFinished, fileUpdated, err := processFile(ctx, cfg, unit.WorkId.String(), &unit.Files[i])
		if err != nil {
			return false, err
		}
		if fileFinished {
			finishedCount++
		}
		if fileUpdated {
			updated = true
		}
	}

	if updated {
		path := filepath.Join(cfg.InboxDir, unit.WorkId.String()+".json")
		if err := pipeline.WriteJSONAtomic(path, unit); err != nil {
			return false, &pipeline.FatalError{Message: fmt.Sprintf("couldn't rewrite work unit %s: %s", unit.WorkId, err)}
		}
	}

	if finishedCount >= len(unit.Files) {
		slog.Info("all files transferred", "work_id", unit.WorkId, "files", finishedCount)
		return true, nil
	}
	slog.Info("not all files transferred yet", "work_id", unit.WorkId, "finished", finishedCount, "total", len(unit.Files))
	return false, nil
}

// processFile implements the per-file state machine documented in the
// component design: submit a transfer if none exists yet; otherwise poll
// its status and react. ACTIVE/INACTIVE are normal waiting states
// (neither finished nor updated); SUCCEEDED marks the file finished;
// FAILED -- or any status outside the documented set, per the Open
// Question resolved in favor of treating an undocumented status as
// transient rather than immediately fatal -- is handled below.
func processFile(ctx context.Context, cfg Config, workId string, file *pipeline.WorkFile) (finished, updated bool, err error) {
	if file.GlobusTaskId == "" {
		result, err := submitTransfer(ctx, cfg, workId, file)
		if err != nil {
			return false, false, &QuarantineError{Message: err.Error()}
		}
		file.GlobusTaskId = result.TaskId
		return false, true, nil
	}

	task, err := cfg.Globus.TaskShow(ctx, file.GlobusTaskId)
	if err != nil {
		return false, false, &QuarantineError{Message: err.Error()}
	}

	switch task.Status {
	case "ACTIVE", "INACTIVE":
		slog.Debug("transfer in progress", "task_id", file.GlobusTaskId, "status", task.Status)
		return false, false, nil
	case "SUCCEEDED":
		slog.Info("transfer succeeded", "task_id", file.GlobusTaskId)
		return true, false, nil
	case "FAILED":
		return false, false, &QuarantineError{Message: fmt.Sprintf("task %s has status FAILED", file.GlobusTaskId)}
	default:
		slog.Warn("transfer has an undocumented status; treating as transient and retrying next cycle", "task_id", file.GlobusTaskId, "status", task.Status)
		return false, false, nil
	}
}

// submitTransfer reconstructs the destination path from HpssPath and
// submits a new Globus transfer. If hpss_path does not start with
// HPSS_BASE_PATH, the unit fails outright -- the destination can't be
// computed, and that's an infrastructure-level invariant violation, not
// a recoverable per-file condition.
func submitTransfer(ctx context.Context, cfg Config, workId string, file *pipeline.WorkFile) (globus.TransferResult, error) {
	if !strings.HasPrefix(file.HpssPath, cfg.HpssBasePath) {
		return globus.TransferResult{}, fmt.Errorf("%s does not start with %s", file.HpssPath, cfg.HpssBasePath)
	}
	suffix := file.HpssPath[len(cfg.HpssBasePath)+1:]
	destPath := filepath.Join(cfg.TaccBasePath, suffix)
	srcPath := filepath.Join(cfg.TransferDir, workId, file.FileName)

	return cfg.Globus.Submit(ctx, globus.TransferRequest{
		SourceEndpoint: cfg.SourceEndpoint,
		DestEndpoint:   cfg.DestEndpoint,
		SourcePath:     srcPath,
		DestPath:       destPath,
	})
}

// DestinationPath computes the Globus destination path for a WorkFile,
// exposed independently of submitTransfer so the round-trip invariant
// dest == filepath.Join(taccBasePath, hpssPath[len(hpssBasePath)+1:]) can be tested
// directly.
func DestinationPath(taccBasePath, hpssBasePath, hpssPath string) (string, error) {
	if !strings.HasPrefix(hpssPath, hpssBasePath) {
		return "", fmt.Errorf("%s does not start with %s", hpssPath, hpssBasePath)
	}
	suffix := hpssPath[len(hpssBasePath)+1:]
	return filepath.Join(taccBasePath, suffix), nil
}
