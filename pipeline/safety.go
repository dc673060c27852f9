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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const safetySuffix = ".safety"

// WriteJSONAtomic rewrites the WorkUnit JSON document at path in place,
// using the Transferrer's durable two-step rewrite protocol:
//  1. rename the current file to path+".safety" (atomic)
//  2. create and write the new file at path
//  3. remove the .safety copy
//
// A crash between (1) and (2) leaves a .safety file with no canonical
// file next to it -- SweepSafetyFiles recovers this on the next startup
// by renaming .safety back into place. A crash between (2) and (3) leaves
// both; the canonical file is already correct and the orphaned .safety is
// harmless, cleaned up by the same sweep.
func WriteJSONAtomic(path string, value any) error {
	safetyPath := path + safetySuffix
	if err := os.Rename(path, safetyPath); err != nil {
		return fmt.Errorf("couldn't create safety copy of %s: %w", path, err)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("couldn't marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("couldn't write %s (safety copy preserved at %s): %w", path, safetyPath, err)
	}
	if err := os.Remove(safetyPath); err != nil {
		slog.Warn("couldn't remove orphaned safety copy", "path", safetyPath, "error", err)
	}
	return nil
}

// SweepSafetyFiles scans dir for leftover "*.json.safety" files and, for
// each one whose canonical ".json" counterpart is missing, renames the
// safety copy back into place -- the crash-recovery half of the rewrite
// protocol in WriteJSONAtomic. Safety files whose canonical counterpart
// already exists are orphans from a crash between steps (2) and (3) and
// are simply removed. Called once at stage-daemon startup, before the
// first processing cycle.
func SweepSafetyFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("couldn't scan %s for safety files: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), safetySuffix) {
			continue
		}
		safetyPath := filepath.Join(dir, entry.Name())
		canonicalPath := strings.TrimSuffix(safetyPath, safetySuffix)
		if _, err := os.Stat(canonicalPath); os.IsNotExist(err) {
			slog.Warn("recovering safety copy left by a crashed rewrite", "safety", safetyPath, "canonical", canonicalPath)
			if err := os.Rename(safetyPath, canonicalPath); err != nil {
				return fmt.Errorf("couldn't recover safety copy %s: %w", safetyPath, err)
			}
		} else {
			slog.Warn("removing orphaned safety copy", "safety", safetyPath)
			if err := os.Remove(safetyPath); err != nil {
				return fmt.Errorf("couldn't remove orphaned safety copy %s: %w", safetyPath, err)
			}
		}
	}
	return nil
}
