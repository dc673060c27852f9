package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePidFileWritesCurrentPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.pid")
	require.NoError(t, WritePidFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestNotifyShutdownReturnsChannel(t *testing.T) {
	ch := NotifyShutdown()
	assert.NotNil(t, ch)
}
