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

package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/wipac/tacc-sync/config"
	"github.com/wipac/tacc-sync/daemon"
	"github.com/wipac/tacc-sync/journal"
	"github.com/wipac/tacc-sync/pipeline"
	"github.com/wipac/tacc-sync/reaper"
)

var envSpec = config.EnvSpec{
	{Name: "INBOX_DIR", Required: true},
	{Name: "OUTBOX_DIR", Required: true},
	{Name: "QUARANTINE_DIR", Required: true},
	{Name: "PID_PATH", Required: true},
	{Name: "WORK_SLEEP_SECONDS", Required: true},
	{Name: "RUN_ONCE_AND_DIE", Required: false, Default: "false"},
	{Name: "TRANSFER_DIR", Required: true},
	{Name: "JOURNAL_PATH", Required: false},
	{Name: "DEBUG", Required: false, Default: "false"},
}

func main() {
	if overlay := os.Getenv("CONFIG_FILE"); overlay != "" {
		if err := config.LoadOverlay(overlay); err != nil {
			log.Fatalf("couldn't load config overlay: %s", err)
		}
	}
	values, err := config.Load(envSpec)
	if err != nil {
		log.Fatalf("couldn't load configuration: %s", err)
	}

	daemon.EnableLogging(pipeline.Boolify(values["DEBUG"]))
	slog.Info("tacc-sync reaper starting")

	if err := daemon.WritePidFile(values["PID_PATH"]); err != nil {
		log.Fatalf("%s", err)
	}

	sleepSeconds, err := strconv.Atoi(values["WORK_SLEEP_SECONDS"])
	if err != nil {
		log.Fatalf("WORK_SLEEP_SECONDS must be an integer: %s", err)
	}

	var jrnl *journal.Journal
	if path := values["JOURNAL_PATH"]; path != "" {
		jrnl, err = journal.Open(path)
		if err != nil {
			log.Fatalf("couldn't open journal: %s", err)
		}
		defer jrnl.Close()
	}

	reaperCfg := reaper.Config{
		TransferDir: values["TRANSFER_DIR"],
		Journal:     jrnl,
	}
	loopCfg := pipeline.LoopConfig{
		InboxDir:      values["INBOX_DIR"],
		OutboxDir:     values["OUTBOX_DIR"],
		QuarantineDir: values["QUARANTINE_DIR"],
		SleepSeconds:  sleepSeconds,
		RunOnceAndDie: pipeline.Boolify(values["RUN_ONCE_AND_DIE"]),
	}

	sigChan := daemon.NotifyShutdown()
	done := make(chan error, 1)
	go func() {
		done <- pipeline.RunLoop(loopCfg, reaper.ProcessOne(reaperCfg))
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("reaper aborting", "error", err)
			daemon.CleanUpAndExit(values["PID_PATH"], 1)
		}
		daemon.CleanUpAndExit(values["PID_PATH"], 0)
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		daemon.CleanUpAndExit(values["PID_PATH"], 0)
	}
}
