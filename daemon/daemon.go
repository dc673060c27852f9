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

// Package daemon holds the process-lifecycle scaffolding shared by the
// five stage binaries: PID file management, JSON structured logging, and
// graceful-shutdown signal handling.
package daemon

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
)

// EnableLogging installs a JSON slog handler on os.Stdout, toggling
// debug level when debug is true.
func EnableLogging(debug bool) {
	level := new(slog.LevelVar)
	if debug {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	slog.Debug("debug logging enabled")
}

// WritePidFile writes the current process ID to path, truncating any
// existing file.
func WritePidFile(path string) error {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid), 0644); err != nil {
		return fmt.Errorf("couldn't write pid file %s: %w", path, err)
	}
	return nil
}

// CleanUpAndExit removes pidPath, logging (but not failing) if it
// can't, and exits the process with code.
func CleanUpAndExit(pidPath string, code int) {
	slog.Info("removing pid file", "path", pidPath)
	if err := os.Remove(pidPath); err != nil {
		slog.Error("failed to remove pid file", "path", pidPath, "error", err)
	}
	os.Exit(code)
}

// NotifyShutdown installs a handler for SIGINT, SIGHUP, SIGTERM and
// SIGQUIT and returns a channel that receives a value when one arrives.
// SIGKILL remains the operator's hard-abort path; these signals give a
// routine restart a chance to remove the PID file on the way out.
func NotifyShutdown() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	return sigChan
}
