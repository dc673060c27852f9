package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndQueryRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	entry := Entry{
		WorkId:    uuid.New(),
		RequestId: uuid.New(),
		Tape:      "AU03180",
		Size:      4096,
		NumFiles:  3,
		Status:    StatusReaped,
	}
	require.NoError(t, j.Record(entry))

	got, err := j.Entries(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry.WorkId, got[0].WorkId)
	assert.Equal(t, entry.RequestId, got[0].RequestId)
	assert.Equal(t, entry.Tape, got[0].Tape)
	assert.Equal(t, entry.Size, got[0].Size)
	assert.Equal(t, entry.NumFiles, got[0].NumFiles)
	assert.Equal(t, StatusReaped, got[0].Status)
}

func TestRecordReplacesExistingWorkId(t *testing.T) {
	j := openTestJournal(t)
	workId := uuid.New()
	requestId := uuid.New()
	require.NoError(t, j.Record(Entry{
		WorkId: workId, RequestId: requestId, Tape: "AU03180",
		Size: 100, NumFiles: 1, Status: StatusQuarantined,
	}))
	require.NoError(t, j.Record(Entry{
		WorkId: workId, RequestId: requestId, Tape: "AU03180",
		Size: 100, NumFiles: 1, Status: StatusReaped,
	}))

	got, err := j.Entries(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusReaped, got[0].Status)
}

func TestEntriesFiltersByTimeRange(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Record(Entry{
		WorkId: uuid.New(), RequestId: uuid.New(), Tape: "AU03180",
		Size: 1, NumFiles: 1, Status: StatusReaped,
		RecordedAt: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, j.Record(Entry{
		WorkId: uuid.New(), RequestId: uuid.New(), Tape: "AU03180",
		Size: 1, NumFiles: 1, Status: StatusReaped,
	}))

	got, err := j.Entries(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j1, err := Open(path)
	require.NoError(t, err)
	workId := uuid.New()
	require.NoError(t, j1.Record(Entry{
		WorkId: workId, RequestId: uuid.New(), Tape: "AU03180",
		Size: 1, NumFiles: 1, Status: StatusReaped,
	}))
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()
	got, err := j2.Entries(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, workId, got[0].WorkId)
}
