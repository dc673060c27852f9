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

// Package globus wraps the `globus` command-line client used to submit
// and poll wide-area transfers. No other package invokes the globus
// binary directly.
package globus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Task is the task metadata returned by `globus task show --format json`.
type Task struct {
	TaskId string `json:"task_id"`
	// Status is one of ACTIVE, INACTIVE, SUCCEEDED, FAILED, or an
	// undocumented value the API may emit transiently.
	Status string `json:"status"`
}

// TransferResult is the response to `globus transfer --format json`.
type TransferResult struct {
	DataType     string `json:"DATA_TYPE"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	RequestId    string `json:"request_id"`
	Resource     string `json:"resource"`
	SubmissionId string `json:"submission_id"`
	TaskId       string `json:"task_id"`
}

// Client wraps the globus binary. The zero value uses "globus" from
// $PATH.
type Client struct {
	// Bin overrides the globus executable name/path; defaults to "globus".
	Bin string
}

func (c Client) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return "globus"
}

// TransferRequest is the information needed to submit one file transfer.
type TransferRequest struct {
	// SourceEndpoint and DestEndpoint are Globus endpoint identifiers
	// (UUID or collection name); Client prepends them with a colon to
	// form "<endpoint>:<path>" source/destination arguments.
	SourceEndpoint string
	DestEndpoint   string
	SourcePath     string
	DestPath       string
}

// Submit runs `globus transfer --sync-level mtime --preserve-mtime
// --verify-checksum --format json <src> <dst>` and returns the parsed
// response, validating that the returned code is "Accepted" -- any other
// code means the transfer was not actually queued and the caller should
// treat the whole work unit as failed.
func (c Client) Submit(ctx context.Context, req TransferRequest) (TransferResult, error) {
	src := fmt.Sprintf("%s:%s", req.SourceEndpoint, req.SourcePath)
	dst := fmt.Sprintf("%s:%s", req.DestEndpoint, req.DestPath)

	cmd := exec.CommandContext(ctx, c.bin(), "transfer",
		"--sync-level", "mtime",
		"--preserve-mtime",
		"--verify-checksum",
		"--format", "json",
		src, dst,
	)
	out, err := cmd.Output()
	if err != nil {
		return TransferResult{}, fmt.Errorf("globus transfer %s %s failed: %w\n%s", src, dst, err, stderrOf(err))
	}

	var result TransferResult
	if err := json.Unmarshal(out, &result); err != nil {
		return TransferResult{}, fmt.Errorf("couldn't parse globus transfer response: %w\n%s", err, out)
	}
	if result.Code != "Accepted" {
		return result, fmt.Errorf("globus transfer was not accepted: code=%s message=%s", result.Code, result.Message)
	}
	return result, nil
}

// TaskShow runs `globus task show --format json <taskId>` and returns the
// parsed task status, validating that the returned task_id matches the
// one requested -- a sanity guard against the CLI somehow answering about
// the wrong task.
func (c Client) TaskShow(ctx context.Context, taskId string) (Task, error) {
	cmd := exec.CommandContext(ctx, c.bin(), "task", "show", "--format", "json", taskId)
	out, err := cmd.Output()
	if err != nil {
		return Task{}, fmt.Errorf("globus task show %s failed: %w\n%s", taskId, err, stderrOf(err))
	}

	var task Task
	if err := json.Unmarshal(out, &task); err != nil {
		return Task{}, fmt.Errorf("couldn't parse globus task show response: %w\n%s", err, out)
	}
	if task.TaskId != taskId {
		return Task{}, fmt.Errorf("asked globus about task %s but got task %s back instead", taskId, task.TaskId)
	}
	return task, nil
}

func stderrOf(err error) string {
	var buf bytes.Buffer
	if ee, ok := err.(*exec.ExitError); ok {
		buf.Write(ee.Stderr)
	}
	return strings.TrimSpace(buf.String())
}
