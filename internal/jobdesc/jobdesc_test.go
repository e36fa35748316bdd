package jobdesc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDescriptorIsZeroValue(t *testing.T) {
	desc, err := Load(t.TempDir(), nil)
	require.NoError(t, err)
	assert.False(t, desc.Clear)
	assert.Empty(t, desc.Settings)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	content := "clear: true\nsettings:\n  concurrency: \"4\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.yaml"), []byte(content), 0644))

	desc, err := Load(dir, nil)
	require.NoError(t, err)
	assert.True(t, desc.Clear)
	assert.Equal(t, "4", desc.Settings["concurrency"])
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	content := "settings:\n  concurrency: \"4\"\n  retries: \"1\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.yaml"), []byte(content), 0644))

	desc, err := Load(dir, map[string]string{"concurrency": "8"})
	require.NoError(t, err)
	assert.Equal(t, "8", desc.Settings["concurrency"])
	assert.Equal(t, "1", desc.Settings["retries"])
}
