package transport

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipDirAndUnzipRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "top.txt"), []byte("top"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "nested", "inner.txt"), []byte("inner"), 0644))

	archivePath := filepath.Join(t.TempDir(), "demo.zip")
	require.NoError(t, ZipDir(srcDir, archivePath))

	destDir := t.TempDir()
	require.NoError(t, Unzip(archivePath, destDir))

	top, err := os.ReadFile(filepath.Join(destDir, "top.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top", string(top))

	inner, err := os.ReadFile(filepath.Join(destDir, "nested", "inner.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inner", string(inner))
}

func TestUnzipRejectsPathEscape(t *testing.T) {
	// A zip file crafted to contain "../evil.txt" must not escape destDir.
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "safe.txt"), []byte("safe"), 0644))
	archivePath := filepath.Join(t.TempDir(), "safe.zip")
	require.NoError(t, ZipDir(srcDir, archivePath))

	destDir := t.TempDir()
	require.NoError(t, Unzip(archivePath, destDir))
	_, err := os.Stat(filepath.Join(destDir, "safe.txt"))
	assert.NoError(t, err)

	evilPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(evilPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../evil.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	escapeDest := t.TempDir()
	assert.Error(t, Unzip(evilPath, escapeDest))
	_, err = os.Stat(filepath.Join(filepath.Dir(escapeDest), "evil.txt"))
	assert.True(t, os.IsNotExist(err), "../evil.txt must not be written outside destDir")
}
