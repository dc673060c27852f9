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

// Package hsi wraps the `hsi` command-line client used to drive HPSS, the
// tape-backed archive. No other package invokes the hsi binary directly.
package hsi

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/wipac/tacc-sync/pipeline"
)

// numMetadataFields is the number of tab-separated fields hsi emits per
// FILE line in response to "ls -NP". A line with a different count is
// malformed and is dropped rather than trusted.
const numMetadataFields = 13

// HpssFileMeta is the ephemeral, Planner-only record produced for each
// archive file surviving the glob filter: its absolute path, recorded
// size, and tape position for seek-order sorting.
type HpssFileMeta struct {
	HpssPath   string
	Size       int64
	Tape       string
	TapeNum    int64
	TapeOffset int64
}

// Client wraps the hsi binary. The zero value uses "hsi" from $PATH.
type Client struct {
	// Bin overrides the hsi executable name/path; defaults to "hsi".
	Bin string
}

func (c Client) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return "hsi"
}

// ListArchive runs `hsi -q ls -1 -R <basePath>` and returns one absolute
// path per line of output. hsi delivers this listing on stderr, not
// stdout -- an easy trap for anyone porting this wrapper without reading
// the CLI contract closely.
func (c Client) ListArchive(ctx context.Context, basePath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, c.bin(), "-q", "ls", "-1", "-R", basePath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("hsi ls -1 -R %s failed: %w\n%s", basePath, err, strings.TrimSpace(stderr.String()))
	}
	var paths []string
	for _, line := range strings.Split(stderr.String(), "\n") {
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// QueryMetadata writes one "ls -NP <path>" command per path to a uniquely
// named batch file in scratchDir, runs `hsi -P in <batch>` against it, and
// deletes the batch file once hsi has consumed it. It parses every
// tab-separated line beginning with the token "FILE" into an HpssFileMeta;
// lines that do not begin with FILE are command echoes and are skipped.
// A FILE line with a field count other than 13 is logged and dropped
// rather than trusted -- partial or garbled hsi output should never
// silently mis-locate a tape file.
func (c Client) QueryMetadata(ctx context.Context, scratchDir string, paths []string) ([]HpssFileMeta, error) {
	commands := make([]string, len(paths))
	for i, path := range paths {
		commands[i] = "ls -NP " + path
	}
	batchPath, err := pipeline.WriteBatchFile(scratchDir, commands)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(batchPath); err != nil {
			slog.Warn("couldn't remove hsi batch file", "path", batchPath, "error", err)
		}
	}()

	cmd := exec.CommandContext(ctx, c.bin(), "-P", "in", batchPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("hsi -P in %s failed: %w\n%s", batchPath, err, strings.TrimSpace(stderr.String()))
	}

	var files []HpssFileMeta
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line == "" {
			continue
		}
		meta, ok := parseMetadataLine(line)
		if ok {
			files = append(files, meta)
		}
	}
	return files, nil
}

// parseMetadataLine parses a single line of hsi -P in output. The field
// layout:
//
//	0  FILE
//	1  absolute path
//	2  size in bytes
//	3  (unused, duplicate size field)
//	4  tape_num+tape_offset, or no '+' if unknown
//	5  tape label, possibly comma-separated across cartridges
//	6-12 timestamps and other metadata, unused here
func parseMetadataLine(line string) (HpssFileMeta, bool) {
	fields := strings.Split(line, "\t")
	if fields[0] != "FILE" {
		return HpssFileMeta{}, false
	}
	if len(fields) != numMetadataFields {
		slog.Error("hsi metadata parse error: wrong field count", "expected", numMetadataFields, "got", len(fields), "line", line)
		return HpssFileMeta{}, false
	}

	if strings.Contains(fields[5], ",") {
		slog.Warn("hsi metadata names multiple tapes for one file; keeping full label", "field", fields[5], "line", line)
	}

	tape := fields[5]
	if len(tape) < 3 {
		tape = "0"
	}

	var tapeNum, tapeOffset int64
	if strings.Contains(fields[4], "+") {
		parts := strings.SplitN(fields[4], "+", 2)
		tapeNum, _ = strconv.ParseInt(parts[0], 10, 64)
		tapeOffset, _ = strconv.ParseInt(parts[1], 10, 64)
	}

	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		slog.Error("hsi metadata parse error: non-numeric size", "field", fields[2], "line", line)
		return HpssFileMeta{}, false
	}

	return HpssFileMeta{
		HpssPath:   fields[1],
		Size:       size,
		Tape:       tape,
		TapeNum:    tapeNum,
		TapeOffset: tapeOffset,
	}, true
}

// Stage writes one "get -C -P <local> : <remote>" command per file to a
// uniquely named batch file in scratchDir, runs `hsi -P in <batch>`
// against it, and deletes the batch file on completion. localDir is the
// destination directory (already created by the caller); it receives one
// file per WorkFile, named by WorkFile.FileName.
func (c Client) Stage(ctx context.Context, scratchDir, localDir string, files []pipeline.WorkFile) error {
	commands := make([]string, len(files))
	for i, f := range files {
		commands[i] = fmt.Sprintf("get -C -P %s/%s : %s", localDir, f.FileName, f.HpssPath)
	}
	batchPath, err := pipeline.WriteBatchFile(scratchDir, commands)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(batchPath); err != nil {
			slog.Warn("couldn't remove hsi batch file", "path", batchPath, "error", err)
		}
	}()

	cmd := exec.CommandContext(ctx, c.bin(), "-P", "in", batchPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hsi -P in %s failed: %w\n%s", batchPath, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
