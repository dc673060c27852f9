package reaper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wipac/tacc-sync/journal"
	"github.com/wipac/tacc-sync/pipeline"
)

func TestReapRemovesStagedDirectory(t *testing.T) {
	transferDir := t.TempDir()
	unit := pipeline.WorkUnit{WorkId: uuid.New(), RequestId: uuid.New(), Tape: "AU03180"}
	stagedDir := filepath.Join(transferDir, unit.WorkId.String())
	require.NoError(t, os.MkdirAll(filepath.Join(stagedDir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(stagedDir, "sub", "a.zip"), []byte("x"), 0644))

	cfg := Config{TransferDir: transferDir}
	require.NoError(t, Reap(cfg, unit))

	_, err := os.Stat(stagedDir)
	assert.True(t, os.IsNotExist(err))
}

func TestReapTolerantOfAlreadyMissingDirectory(t *testing.T) {
	cfg := Config{TransferDir: t.TempDir()}
	unit := pipeline.WorkUnit{WorkId: uuid.New(), RequestId: uuid.New(), Tape: "AU03180"}
	require.NoError(t, Reap(cfg, unit))
}

func TestReapRecordsJournalEntry(t *testing.T) {
	transferDir := t.TempDir()
	unit := pipeline.WorkUnit{
		WorkId:    uuid.New(),
		RequestId: uuid.New(),
		Tape:      "AU03180",
		Size:      2048,
		Files:     []pipeline.WorkFile{{FileName: "a.zip"}, {FileName: "b.zip"}},
	}
	stagedDir := filepath.Join(transferDir, unit.WorkId.String())
	require.NoError(t, os.MkdirAll(stagedDir, 0755))

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	cfg := Config{TransferDir: transferDir, Journal: j}
	require.NoError(t, Reap(cfg, unit))

	entries, err := j.Entries(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, unit.WorkId, entries[0].WorkId)
	assert.Equal(t, journal.StatusReaped, entries[0].Status)
	assert.Equal(t, 2, entries[0].NumFiles)
}

func TestReapWithoutJournalConfiguredSucceeds(t *testing.T) {
	transferDir := t.TempDir()
	unit := pipeline.WorkUnit{WorkId: uuid.New(), RequestId: uuid.New(), Tape: "AU03180"}
	stagedDir := filepath.Join(transferDir, unit.WorkId.String())
	require.NoError(t, os.MkdirAll(stagedDir, 0755))

	cfg := Config{TransferDir: transferDir}
	require.NoError(t, Reap(cfg, unit))
}

func TestProcessOneQuarantinesOnMalformedWorkUnit(t *testing.T) {
	inboxDir := t.TempDir()
	path := filepath.Join(inboxDir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	cfg := Config{TransferDir: t.TempDir()}
	outcome, err := ProcessOne(cfg)(path)
	assert.Error(t, err)
	assert.Equal(t, pipeline.OutcomeQuarantine, outcome)
}

func TestProcessOneForwardsOnSuccess(t *testing.T) {
	transferDir := t.TempDir()
	inboxDir := t.TempDir()
	unit := pipeline.WorkUnit{WorkId: uuid.New(), RequestId: uuid.New(), Tape: "AU03180"}
	require.NoError(t, os.MkdirAll(filepath.Join(transferDir, unit.WorkId.String()), 0755))
	path := filepath.Join(inboxDir, unit.WorkId.String()+".json")
	require.NoError(t, pipeline.WriteJSON(path, unit))

	cfg := Config{TransferDir: transferDir}
	outcome, err := ProcessOne(cfg)(path)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeForward, outcome)
}
