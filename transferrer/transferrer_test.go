package transferrer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wipac/tacc-sync/globus"
	"github.com/wipac/tacc-sync/pipeline"
)

func writeFakeGlobus(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "globus")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestDestinationPathRoundTrip(t *testing.T) {
	path, err := DestinationPath("/tacc/project", "/hpss/project", "/hpss/project/2009/a.zip")
	require.NoError(t, err)
	assert.Equal(t, "/tacc/project/2009/a.zip", path)
}

func TestDestinationPathRejectsWrongPrefix(t *testing.T) {
	_, err := DestinationPath("/tacc/project", "/hpss/project", "/other/2009/a.zip")
	require.Error(t, err)
}

func TestProcessUnitSubmitsNewTransfers(t *testing.T) {
	bin := writeFakeGlobus(t, `cat <<'EOF'
{"code":"Accepted","task_id":"11111111-1111-1111-1111-111111111111"}
EOF`)
	cfg := Config{
		SourceEndpoint: "src-ep", DestEndpoint: "dst-ep",
		HpssBasePath: "/hpss/project", TaccBasePath: "/tacc/project",
		TransferDir: t.TempDir(), InboxDir: t.TempDir(),
		Globus: globus.Client{Bin: bin},
	}
	unit := pipeline.WorkUnit{
		WorkId: uuid.New(),
		Files:  []pipeline.WorkFile{{FileName: "a.zip", HpssPath: "/hpss/project/2009/a.zip"}},
	}
	path := filepath.Join(cfg.InboxDir, unit.WorkId.String()+".json")
	require.NoError(t, pipeline.WriteJSON(path, unit))

	finished, err := ProcessUnit(context.Background(), cfg, &unit)
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", unit.Files[0].GlobusTaskId)

	got, err := pipeline.LoadJSON[pipeline.WorkUnit](path)
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", got.Files[0].GlobusTaskId)
}

func TestProcessUnitFinishesWhenAllSucceeded(t *testing.T) {
	bin := writeFakeGlobus(t, `echo '{"task_id":"11111111-1111-1111-1111-111111111111","status":"SUCCEEDED"}'`)
	cfg := Config{
		HpssBasePath: "/hpss/project", TaccBasePath: "/tacc/project",
		TransferDir: t.TempDir(), InboxDir: t.TempDir(),
		Globus: globus.Client{Bin: bin},
	}
	unit := pipeline.WorkUnit{
		WorkId: uuid.New(),
		Files:  []pipeline.WorkFile{{FileName: "a.zip", HpssPath: "/hpss/project/a.zip", GlobusTaskId: "11111111-1111-1111-1111-111111111111"}},
	}
	path := filepath.Join(cfg.InboxDir, unit.WorkId.String()+".json")
	require.NoError(t, pipeline.WriteJSON(path, unit))

	finished, err := ProcessUnit(context.Background(), cfg, &unit)
	require.NoError(t, err)
	assert.True(t, finished)
}

func TestProcessUnitFailedStatusQuarantines(t *testing.T) {
	bin := writeFakeGlobus(t, `echo '{"task_id":"11111111-1111-1111-1111-111111111111","status":"FAILED"}'`)
	cfg := Config{
		HpssBasePath: "/hpss/project", TaccBasePath: "/tacc/project",
		TransferDir: t.TempDir(), InboxDir: t.TempDir(),
		Globus: globus.Client{Bin: bin},
	}
	unit := pipeline.WorkUnit{
		WorkId: uuid.New(),
		Files:  []pipeline.WorkFile{{FileName: "a.zip", HpssPath: "/hpss/project/a.zip", GlobusTaskId: "11111111-1111-1111-1111-111111111111"}},
	}
	path := filepath.Join(cfg.InboxDir, unit.WorkId.String()+".json")
	require.NoError(t, pipeline.WriteJSON(path, unit))

	_, err := ProcessUnit(context.Background(), cfg, &unit)
	require.Error(t, err)
	var qe *QuarantineError
	assert.ErrorAs(t, err, &qe)
}

func TestProcessUnitUndocumentedStatusTreatedAsTransient(t *testing.T) {
	bin := writeFakeGlobus(t, `echo '{"task_id":"11111111-1111-1111-1111-111111111111","status":"WEIRD_NEW_STATUS"}'`)
	cfg := Config{
		HpssBasePath: "/hpss/project", TaccBasePath: "/tacc/project",
		TransferDir: t.TempDir(), InboxDir: t.TempDir(),
		Globus: globus.Client{Bin: bin},
	}
	unit := pipeline.WorkUnit{
		WorkId: uuid.New(),
		Files:  []pipeline.WorkFile{{FileName: "a.zip", HpssPath: "/hpss/project/a.zip", GlobusTaskId: "11111111-1111-1111-1111-111111111111"}},
	}
	path := filepath.Join(cfg.InboxDir, unit.WorkId.String()+".json")
	require.NoError(t, pipeline.WriteJSON(path, unit))

	finished, err := ProcessUnit(context.Background(), cfg, &unit)
	require.NoError(t, err)
	assert.False(t, finished)
}

func TestProcessUnitRestartSafetyDoesNotResubmit(t *testing.T) {
	bin := writeFakeGlobus(t, `echo '{"task_id":"11111111-1111-1111-1111-111111111111","status":"ACTIVE"}'`)
	cfg := Config{
		HpssBasePath: "/hpss/project", TaccBasePath: "/tacc/project",
		TransferDir: t.TempDir(), InboxDir: t.TempDir(),
		Globus: globus.Client{Bin: bin},
	}
	// a file that already has a globus_task_id (as if a prior crashed
	// cycle had submitted it) must only be polled, never resubmitted --
	// submitTransfer would error here since the fake globus reply carries
	// no "Accepted" code, so a successful poll-only result proves no
	// submission was attempted.
	unit := pipeline.WorkUnit{
		WorkId: uuid.New(),
		Files:  []pipeline.WorkFile{{FileName: "a.zip", HpssPath: "/hpss/project/a.zip", GlobusTaskId: "11111111-1111-1111-1111-111111111111"}},
	}
	path := filepath.Join(cfg.InboxDir, unit.WorkId.String()+".json")
	require.NoError(t, pipeline.WriteJSON(path, unit))

	finished, err := ProcessUnit(context.Background(), cfg, &unit)
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", unit.Files[0].GlobusTaskId)
}
