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

// Package retriever stages a WorkUnit's files off tape onto local disk,
// enforcing a bounded staging buffer as backpressure on the rest of the
// pipeline.
package retriever

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wipac/tacc-sync/hsi"
	"github.com/wipac/tacc-sync/pipeline"
)

// Config bundles the directories, quota, and HPSS client a Retriever
// cycle needs.
type Config struct {
	ScratchDir    string
	TransferDir   string
	TransferQuota int64
	Hsi           hsi.Client
}

// DirectorySize recursively sums the size of every regular file under
// dir.
func DirectorySize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("couldn't measure directory size of %s: %w", dir, err)
	}
	return total, nil
}

// ErrQuotaExceeded is returned by Retrieve when staging this unit would
// exceed the configured TransferQuota. The caller must stop processing
// the rest of the current cycle entirely rather than skip this unit and
// continue -- letting smaller, later units jump the queue would starve
// the unit at the head of an already-full buffer.
var ErrQuotaExceeded = fmt.Errorf("staging this work unit would exceed the transfer quota")

// Retrieve measures the current staging buffer usage, and if the unit
// fits within cfg.TransferQuota, creates TransferDir/<work_id>/ and
// stages every WorkFile into it via a single hsi batch-get invocation.
func Retrieve(ctx context.Context, cfg Config, unit pipeline.WorkUnit) error {
	stagedBytes, err := DirectorySize(cfg.TransferDir)
	if err != nil {
		return err
	}
	if stagedBytes+unit.Size > cfg.TransferQuota {
		slog.Info("quota exceeded, stopping cycle", "work_id", unit.WorkId, "staged_bytes", stagedBytes, "unit_size", unit.Size, "quota", cfg.TransferQuota)
		return ErrQuotaExceeded
	}

	localDir := filepath.Join(cfg.TransferDir, unit.WorkId.String())
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return fmt.Errorf("couldn't create staging directory %s: %w", localDir, err)
	}

	if err := cfg.Hsi.Stage(ctx, cfg.ScratchDir, localDir, unit.Files); err != nil {
		return fmt.Errorf("couldn't stage work unit %s: %w", unit.WorkId, err)
	}
	slog.Info("staged work unit", "work_id", unit.WorkId, "files", len(unit.Files), "size", unit.Size)
	return nil
}
