package globus

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeGlobus(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake globus script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "globus")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestSubmitAccepted(t *testing.T) {
	bin := writeFakeGlobus(t, `cat <<'EOF'
{"DATA_TYPE":"transfer_result","code":"Accepted","message":"ok","request_id":"r1","resource":"/transfer","submission_id":"s1","task_id":"11111111-1111-1111-1111-111111111111"}
EOF`)
	c := Client{Bin: bin}
	result, err := c.Submit(context.Background(), TransferRequest{
		SourceEndpoint: "src-ep", DestEndpoint: "dst-ep",
		SourcePath: "/transfer/work1/a.zip", DestPath: "/tacc/a.zip",
	})
	require.NoError(t, err)
	assert.Equal(t, "Accepted", result.Code)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", result.TaskId)
}

func TestSubmitRejectedCode(t *testing.T) {
	bin := writeFakeGlobus(t, `cat <<'EOF'
{"code":"ConsentRequired","message":"nope","task_id":"00000000-0000-0000-0000-000000000000"}
EOF`)
	c := Client{Bin: bin}
	_, err := c.Submit(context.Background(), TransferRequest{SourceEndpoint: "s", DestEndpoint: "d"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ConsentRequired")
}

func TestSubmitCommandFailure(t *testing.T) {
	bin := writeFakeGlobus(t, `echo "auth expired" 1>&2; exit 1`)
	c := Client{Bin: bin}
	_, err := c.Submit(context.Background(), TransferRequest{SourceEndpoint: "s", DestEndpoint: "d"})
	require.Error(t, err)
}

func TestTaskShowSucceeded(t *testing.T) {
	bin := writeFakeGlobus(t, `echo '{"task_id":"11111111-1111-1111-1111-111111111111","status":"SUCCEEDED"}'`)
	c := Client{Bin: bin}
	task, err := c.TaskShow(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Equal(t, "SUCCEEDED", task.Status)
}

func TestTaskShowMismatchedIdIsSanityError(t *testing.T) {
	bin := writeFakeGlobus(t, `echo '{"task_id":"22222222-2222-2222-2222-222222222222","status":"ACTIVE"}'`)
	c := Client{Bin: bin}
	_, err := c.TaskShow(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "11111111-1111-1111-1111-111111111111")
}
