package retriever

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wipac/tacc-sync/hsi"
	"github.com/wipac/tacc-sync/pipeline"
)

func writeFakeHsi(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hsi")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestDirectorySizeSumsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), make([]byte, 100), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.zip"), make([]byte, 50), 0644))

	size, err := DirectorySize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(150), size)
}

func TestRetrieveStagesWithinQuota(t *testing.T) {
	bin := writeFakeHsi(t, "exit 0")
	transferDir := t.TempDir()
	cfg := Config{ScratchDir: t.TempDir(), TransferDir: transferDir, TransferQuota: 1000, Hsi: hsi.Client{Bin: bin}}
	unit := pipeline.WorkUnit{
		WorkId: uuid.New(),
		Size:   50,
		Files:  []pipeline.WorkFile{{FileName: "a.zip", HpssPath: "/hpss/a.zip", Size: 50}},
	}

	err := Retrieve(context.Background(), cfg, unit)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(transferDir, unit.WorkId.String()))
	assert.NoError(t, err)
}

func TestRetrieveStopsCycleOnQuotaExceeded(t *testing.T) {
	bin := writeFakeHsi(t, "exit 0")
	transferDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(transferDir, "already-staged"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(transferDir, "already-staged", "x.zip"), make([]byte, 80), 0644))

	cfg := Config{ScratchDir: t.TempDir(), TransferDir: transferDir, TransferQuota: 100, Hsi: hsi.Client{Bin: bin}}
	unit := pipeline.WorkUnit{WorkId: uuid.New(), Size: 50}

	err := Retrieve(context.Background(), cfg, unit)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	_, err = os.Stat(filepath.Join(transferDir, unit.WorkId.String()))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessOneStopsCycleOnQuota(t *testing.T) {
	bin := writeFakeHsi(t, "exit 0")
	dir := t.TempDir()
	transferDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(transferDir, "already-staged"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(transferDir, "already-staged", "x.zip"), make([]byte, 80), 0644))

	unit := pipeline.WorkUnit{WorkId: uuid.New(), Size: 50}
	path := filepath.Join(dir, unit.WorkId.String()+".json")
	require.NoError(t, pipeline.WriteJSON(path, unit))

	cfg := Config{ScratchDir: t.TempDir(), TransferDir: transferDir, TransferQuota: 100, Hsi: hsi.Client{Bin: bin}}
	process := ProcessOne(context.Background(), cfg)
	outcome, err := process(path)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeStopCycle, outcome)
}
