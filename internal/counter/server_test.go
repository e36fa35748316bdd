package counter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerIncMergeAndGetGlobal(t *testing.T) {
	srv, err := NewServer(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, srv.IncMerge(map[string]map[string]Value{
		"global": {"pages": NewNumber(3)},
	}))
	require.NoError(t, srv.IncMerge(map[string]map[string]Value{
		"global": {"pages": NewNumber(2)},
	}))

	global := srv.GetGlobal()
	assert.Equal(t, 5.0, global["pages"].Number)
}

func TestServerGetGlobalNeverReadsMergeCounter(t *testing.T) {
	srv, err := NewServer(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, srv.AccMerge(map[string]map[string]Value{
		"global": {"errs": NewSet(NewNumber(1))},
	}))

	global := srv.GetGlobal()
	_, ok := global["errs"]
	assert.False(t, ok, "get_global must read only the increment counter's global row")
}

// TestServerPersistenceRoundTrip is S6: perform an inc_merge, shut down,
// restart a fresh server over the same directory, confirm get_global
// survives.
func TestServerPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	srv, err := NewServer(dir)
	require.NoError(t, err)
	require.NoError(t, srv.IncMerge(map[string]map[string]Value{
		"global": {"pages": NewNumber(5)},
	}))
	require.NoError(t, srv.Shutdown())

	restarted, err := NewServer(dir)
	require.NoError(t, err)
	assert.Equal(t, 5.0, restarted.GetGlobal()["pages"].Number)

	assert.FileExists(t, filepath.Join(dir, statusFileName))
}

func TestServerFreshStartWithNoExistingStatus(t *testing.T) {
	srv, err := NewServer(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, srv.GetGlobal())
}
