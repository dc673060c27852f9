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
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/wipac/tacc-sync/config"
	"github.com/wipac/tacc-sync/daemon"
	"github.com/wipac/tacc-sync/hsi"
	"github.com/wipac/tacc-sync/pipeline"
	"github.com/wipac/tacc-sync/retriever"
)

var envSpec = config.EnvSpec{
	{Name: "INBOX_DIR", Required: true},
	{Name: "OUTBOX_DIR", Required: true},
	{Name: "QUARANTINE_DIR", Required: true},
	{Name: "PID_PATH", Required: true},
	{Name: "WORK_SLEEP_SECONDS", Required: true},
	{Name: "RUN_ONCE_AND_DIE", Required: false, Default: "false"},
	{Name: "SEMAPHORE_DIR", Required: true},
	{Name: "TRANSFER_DIR", Required: true},
	{Name: "TRANSFER_QUOTA", Required: true},
	{Name: "HSI_BIN", Required: false, Default: "hsi"},
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
	slog.Info("tacc-sync retriever starting")

	if err := daemon.WritePidFile(values["PID_PATH"]); err != nil {
		log.Fatalf("%s", err)
	}

	sleepSeconds, err := strconv.Atoi(values["WORK_SLEEP_SECONDS"])
	if err != nil {
		log.Fatalf("WORK_SLEEP_SECONDS must be an integer: %s", err)
	}
	quota, err := strconv.ParseInt(values["TRANSFER_QUOTA"], 10, 64)
	if err != nil {
		log.Fatalf("TRANSFER_QUOTA must be an integer: %s", err)
	}

	retrieverCfg := retriever.Config{
		ScratchDir:    values["SEMAPHORE_DIR"],
		TransferDir:   values["TRANSFER_DIR"],
		TransferQuota: quota,
		Hsi:           hsi.Client{Bin: values["HSI_BIN"]},
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
		done <- pipeline.RunLoop(loopCfg, retriever.ProcessOne(context.Background(), retrieverCfg))
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("retriever aborting", "error", err)
			daemon.CleanUpAndExit(values["PID_PATH"], 1)
		}
		daemon.CleanUpAndExit(values["PID_PATH"], 0)
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		daemon.CleanUpAndExit(values["PID_PATH"], 0)
	}
}
