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
)

// FatalError marks a failure that the pipeline's durability guarantee
// requires to abort the owning process rather than be recovered from --
// primarily a failed rename between stage directories. Stage mains check
// for this type and os.Exit on it; the library itself never calls
// os.Exit, which keeps Forward and friends testable.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	return e.Message
}

// ListPending returns the absolute paths of every *.json entry directly
// inside dir. A directory read error is logged and treated as "no work
// found this cycle" rather than fatal, per the queue primitive's
// non-fatal-on-read-error contract -- the directory may simply not exist
// yet on a freshly deployed stage.
func ListPending(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("couldn't list pending items", "dir", dir, "error", err)
		return nil
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".json" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths
}

// Forward moves path to destDir/<basename of path> via a single atomic
// rename on the same filesystem. Failure here is fatal to the pipeline's
// durability argument (an item could vanish between directories), so the
// caller is expected to treat a non-nil, *FatalError-typed result as
// grounds for immediate process abort.
func Forward(path, destDir string) error {
	destPath := filepath.Join(destDir, filepath.Base(path))
	if err := os.Rename(path, destPath); err != nil {
		return &FatalError{Message: fmt.Sprintf("unable to move %s to %s: %s", path, destPath, err)}
	}
	slog.Info("moved item", "from", path, "to", destPath)
	return nil
}

// LoadJSON reads and unmarshals the JSON document at path into a fresh
// value of type T.
func LoadJSON[T any](path string) (T, error) {
	var value T
	data, err := os.ReadFile(path)
	if err != nil {
		return value, fmt.Errorf("couldn't read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("couldn't parse %s: %w", path, err)
	}
	return value, nil
}

// WriteJSON pretty-prints value as JSON to a newly created file at path.
// It does not overwrite an existing file -- callers performing an in-place
// update must go through WriteJSONAtomic (see safety.go) instead.
func WriteJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("couldn't marshal %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("couldn't create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("couldn't write %s: %w", path, err)
	}
	return nil
}
