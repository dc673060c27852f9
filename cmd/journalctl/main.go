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

// Command journalctl is an operator CLI for querying the audit journal
// the Transferrer and Reaper record to: every WorkUnit that left the
// pipeline, reaped or quarantined, within a time window.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wipac/tacc-sync/journal"
)

func main() {
	journalPath := flag.String("journal", os.Getenv("JOURNAL_PATH"), "path to the journal database")
	since := flag.String("since", "", "RFC3339 timestamp; defaults to 24 hours before -until")
	until := flag.String("until", "", "RFC3339 timestamp; defaults to now")
	flag.Parse()

	if *journalPath == "" {
		log.Fatal("-journal (or JOURNAL_PATH) is required")
	}

	stop := time.Now().UTC()
	if *until != "" {
		parsed, err := time.Parse(time.RFC3339, *until)
		if err != nil {
			log.Fatalf("-until must be RFC3339: %s", err)
		}
		stop = parsed
	}
	start := stop.Add(-24 * time.Hour)
	if *since != "" {
		parsed, err := time.Parse(time.RFC3339, *since)
		if err != nil {
			log.Fatalf("-since must be RFC3339: %s", err)
		}
		start = parsed
	}

	j, err := journal.Open(*journalPath)
	if err != nil {
		log.Fatalf("couldn't open journal: %s", err)
	}
	defer j.Close()

	entries, err := j.Entries(start, stop)
	if err != nil {
		log.Fatalf("couldn't query journal: %s", err)
	}

	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\ttape=%s\tsize=%d\tfiles=%d\trequest=%s\n",
			e.RecordedAt.Format(time.RFC3339), e.Status, e.WorkId, e.Tape, e.Size, e.NumFiles, e.RequestId)
	}
}
