package hsi

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wipac/tacc-sync/pipeline"
)

// writeFakeHsi writes a shell script standing in for the real hsi binary
// and returns its path. body is the script's command body; it receives
// hsi's usual argv ($1, $2, ...).
func writeFakeHsi(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake hsi script requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "hsi")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestListArchiveReadsStderr(t *testing.T) {
	bin := writeFakeHsi(t, `echo "/hpss/a.zip" 1>&2; echo "/hpss/b.zip" 1>&2`)
	c := Client{Bin: bin}
	paths, err := c.ListArchive(context.Background(), "/hpss")
	require.NoError(t, err)
	assert.Equal(t, []string{"/hpss/a.zip", "/hpss/b.zip"}, paths)
}

func TestListArchiveFailure(t *testing.T) {
	bin := writeFakeHsi(t, `echo "boom" 1>&2; exit 1`)
	c := Client{Bin: bin}
	_, err := c.ListArchive(context.Background(), "/hpss")
	require.Error(t, err)
}

func TestQueryMetadataParsesFileLines(t *testing.T) {
	bin := writeFakeHsi(t, `cat <<'EOF'
FILE	/hpss/project/2009/a.zip	12345	12345	840+0	AG084600	5	0	1	03/01/2021	11:15:47	03/01/2021	11:30:52
EOF`)
	scratch := t.TempDir()
	c := Client{Bin: bin}
	files, err := c.QueryMetadata(context.Background(), scratch, []string{"/hpss/project/2009/a.zip"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "/hpss/project/2009/a.zip", files[0].HpssPath)
	assert.Equal(t, int64(12345), files[0].Size)
	assert.Equal(t, "AG084600", files[0].Tape)
	assert.Equal(t, int64(840), files[0].TapeNum)
	assert.Equal(t, int64(0), files[0].TapeOffset)

	// the batch file must be cleaned up
	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQueryMetadataSkipsNonFileLines(t *testing.T) {
	bin := writeFakeHsi(t, `cat <<'EOF'
ls -NP /hpss/project/2009/a.zip
FILE	/hpss/project/2009/a.zip	12345	12345	840+0	AG084600	5	0	1	03/01/2021	11:15:47	03/01/2021	11:30:52
EOF`)
	c := Client{Bin: bin}
	files, err := c.QueryMetadata(context.Background(), t.TempDir(), []string{"/hpss/project/2009/a.zip"})
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestQueryMetadataDropsWrongFieldCount(t *testing.T) {
	bin := writeFakeHsi(t, `cat <<'EOF'
FILE	/hpss/a.zip	12345
EOF`)
	c := Client{Bin: bin}
	files, err := c.QueryMetadata(context.Background(), t.TempDir(), []string{"/hpss/a.zip"})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestQueryMetadataShortTapeLabelCoercedToZero(t *testing.T) {
	bin := writeFakeHsi(t, `cat <<'EOF'
FILE	/hpss/a.zip	1	1	0+0		5	0	1	03/01/2021	11:15:47	03/01/2021	11:30:52
EOF`)
	c := Client{Bin: bin}
	files, err := c.QueryMetadata(context.Background(), t.TempDir(), []string{"/hpss/a.zip"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "0", files[0].Tape)
}

func TestQueryMetadataMultiTapeKeepsFullLabel(t *testing.T) {
	bin := writeFakeHsi(t, `cat <<'EOF'
FILE	/hpss/a.zip	1	1	119+558936243566	AU031800,AU031900	12	0	1	04/07/2017	02:19:14	04/07/2017	03:07:47
EOF`)
	c := Client{Bin: bin}
	files, err := c.QueryMetadata(context.Background(), t.TempDir(), []string{"/hpss/a.zip"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "AU031800,AU031900", files[0].Tape)
	assert.Equal(t, int64(119), files[0].TapeNum)
	assert.Equal(t, int64(558936243566), files[0].TapeOffset)
}

func TestStageWritesGetCommandsAndCleansUp(t *testing.T) {
	bin := writeFakeHsi(t, `exit 0`)
	c := Client{Bin: bin}
	scratch := t.TempDir()
	files := []pipeline.WorkFile{
		{FileName: "a.zip", HpssPath: "/hpss/a.zip"},
		{FileName: "b.zip", HpssPath: "/hpss/b.zip"},
	}
	err := c.Stage(context.Background(), scratch, "/transfer/work1", files)
	require.NoError(t, err)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageFailure(t *testing.T) {
	bin := writeFakeHsi(t, `echo "tape jam" 1>&2; exit 1`)
	c := Client{Bin: bin}
	err := c.Stage(context.Background(), t.TempDir(), "/transfer/work1", []pipeline.WorkFile{{FileName: "a.zip", HpssPath: "/hpss/a.zip"}})
	require.Error(t, err)
}
