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

// Package planner expands a SyncRequest into per-tape WorkUnits: it lists
// the archive, filters by the request's glob pattern, fetches tape
// metadata for the survivors, sorts and groups them by tape, and emits
// one WorkUnit per tape into the retriever's inbox.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/wipac/tacc-sync/hsi"
	"github.com/wipac/tacc-sync/pipeline"
)

// Config bundles the directories and HPSS archive client a Planner cycle
// needs.
type Config struct {
	HsiBasePath string
	ScratchDir  string
	WorkDir     string
	Hsi         hsi.Client
}

// Plan runs the full per-request planning algorithm described in the
// component design: enumerate, filter, fetch metadata, sort, group, and
// emit one WorkUnit per tape into cfg.WorkDir. It returns the number of
// WorkUnits emitted.
func Plan(ctx context.Context, cfg Config, request pipeline.SyncRequest) (int, error) {
	allPaths, err := cfg.Hsi.ListArchive(ctx, cfg.HsiBasePath)
	if err != nil {
		return 0, fmt.Errorf("couldn't enumerate archive: %w", err)
	}

	matched, err := filterByPattern(allPaths, request.Pattern)
	if err != nil {
		return 0, fmt.Errorf("couldn't filter archive listing: %w", err)
	}
	slog.Info("filtered archive listing", "total", len(allPaths), "matched", len(matched), "pattern", request.Pattern)

	metadata, err := cfg.Hsi.QueryMetadata(ctx, cfg.ScratchDir, matched)
	if err != nil {
		return 0, fmt.Errorf("couldn't query tape metadata: %w", err)
	}

	sortByTapePosition(metadata)
	groups := groupByTape(metadata)

	for _, group := range groups {
		unit := newWorkUnit(request.RequestId, group)
		path := fmt.Sprintf("%s/%s.json", cfg.WorkDir, unit.WorkId)
		if err := pipeline.WriteJSON(path, unit); err != nil {
			return 0, fmt.Errorf("couldn't write work unit: %w", err)
		}
		slog.Info("emitted work unit", "work_id", unit.WorkId, "tape", unit.Tape, "files", len(unit.Files), "size", unit.Size)
	}
	return len(groups), nil
}

// filterByPattern keeps the paths matching pattern, a POSIX-style glob
// supporting *, ?, [...] and **.
func filterByPattern(paths []string, pattern string) ([]string, error) {
	var matched []string
	for _, path := range paths {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if ok {
			matched = append(matched, path)
		}
	}
	return matched, nil
}

// sortByTapePosition imposes the total order (tape, tape_num, tape_offset,
// hpss_path) required before grouping: tape primary so all files on one
// cartridge are contiguous, then tape-seek order so downstream retrieval
// moves the tape head monotonically, then hpss_path to break ties
// deterministically.
func sortByTapePosition(files []hsi.HpssFileMeta) {
	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Tape != b.Tape {
			return a.Tape < b.Tape
		}
		if a.TapeNum != b.TapeNum {
			return a.TapeNum < b.TapeNum
		}
		if a.TapeOffset != b.TapeOffset {
			return a.TapeOffset < b.TapeOffset
		}
		return a.HpssPath < b.HpssPath
	})
}

// groupByTape partitions an already-sorted slice into maximal contiguous
// runs sharing the same tape label. Each run becomes one WorkUnit's file
// list, in ascending tape-label order (a side effect of the prior sort).
func groupByTape(files []hsi.HpssFileMeta) [][]hsi.HpssFileMeta {
	var groups [][]hsi.HpssFileMeta
	var current []hsi.HpssFileMeta
	for _, f := range files {
		if len(current) > 0 && current[0].Tape != f.Tape {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, f)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func newWorkUnit(requestId uuid.UUID, group []hsi.HpssFileMeta) pipeline.WorkUnit {
	files := make([]pipeline.WorkFile, len(group))
	var size int64
	for i, f := range group {
		files[i] = pipeline.WorkFile{
			FileName:   baseName(f.HpssPath),
			HpssPath:   f.HpssPath,
			Size:       f.Size,
			TapeNum:    f.TapeNum,
			TapeOffset: f.TapeOffset,
		}
		size += f.Size
	}
	return pipeline.WorkUnit{
		WorkId:      uuid.New(),
		DateCreated: time.Now().UTC(),
		Tape:        group[0].Tape,
		Size:        size,
		RequestId:   requestId,
		Files:       files,
	}
}

// baseName extracts the final path component, matching the basename used
// as a WorkFile's FileName and as the local staged file's name.
func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
