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

// Command finisher runs the termination-detector daemon: it retires a
// SyncRequest once no WorkUnit derived from it remains anywhere in the
// request-to-work pipeline. It runs in parallel to the four work-unit
// stages and shares no inbox with any of them.
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/wipac/tacc-sync/config"
	"github.com/wipac/tacc-sync/daemon"
	"github.com/wipac/tacc-sync/finisher"
	"github.com/wipac/tacc-sync/pipeline"
)

var envSpec = config.EnvSpec{
	{Name: "INBOX_DIR", Required: true},
	{Name: "OUTBOX_DIR", Required: true},
	{Name: "QUARANTINE_DIR", Required: true},
	{Name: "PID_PATH", Required: true},
	{Name: "WORK_SLEEP_SECONDS", Required: true},
	{Name: "RUN_ONCE_AND_DIE", Required: false, Default: "false"},
	{Name: "HPSS_DIR", Required: true},
	{Name: "GLOBUS_DIR", Required: true},
	{Name: "REAPER_DIR", Required: true},
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
	slog.Info("tacc-sync finisher starting")

	if err := daemon.WritePidFile(values["PID_PATH"]); err != nil {
		log.Fatalf("%s", err)
	}

	sleepSeconds, err := strconv.Atoi(values["WORK_SLEEP_SECONDS"])
	if err != nil {
		log.Fatalf("WORK_SLEEP_SECONDS must be an integer: %s", err)
	}

	finisherCfg := finisher.Config{
		WatchDirs: []string{values["HPSS_DIR"], values["GLOBUS_DIR"], values["REAPER_DIR"]},
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
		done <- pipeline.RunLoop(loopCfg, finisher.ProcessOne(finisherCfg))
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("finisher aborting", "error", err)
			daemon.CleanUpAndExit(values["PID_PATH"], 1)
		}
		daemon.CleanUpAndExit(values["PID_PATH"], 0)
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		daemon.CleanUpAndExit(values["PID_PATH"], 0)
	}
}
