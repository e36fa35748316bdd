package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTransportRoundTrip(t *testing.T) {
	receiveDir := t.TempDir()
	addr := "127.0.0.1:18471"
	srv := NewHTTPFileServer(addr, receiveDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)
	defer srv.Shutdown()

	localDir := t.TempDir()
	localPath := filepath.Join(localDir, "demo_errors.zip")
	require.NoError(t, os.WriteFile(localPath, []byte("zip-bytes"), 0644))

	client := NewHTTPFileClient()
	require.NoError(t, client.SendFile(context.Background(), addr, localPath))

	received, err := os.ReadFile(filepath.Join(receiveDir, "demo_errors.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(received))
}
