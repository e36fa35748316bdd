// ============================================================================
// Fleetd Transport - File Push Transport
// ============================================================================
//
// Package: internal/transport
// File: filetransport.go
// Purpose: the file-transport pair spec.md §1/§6 scopes out as external:
// "push a file to a remote directory by name". Built on net/http — a plain
// PUT of the file body to /files/<name>, written to the receive directory
// under that basename.
//
// ============================================================================

package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HTTPFileServer implements FileTransportServer: it accepts PUT requests at
// /files/<name> and writes the body into receiveDir/<name>.
type HTTPFileServer struct {
	addr       string
	receiveDir string
	srv        *http.Server
}

// NewHTTPFileServer builds a file-push receiver bound to addr, landing
// pushed files in receiveDir (the worker's "zip" directory, per spec.md's
// on-disk layout).
func NewHTTPFileServer(addr, receiveDir string) *HTTPFileServer {
	return &HTTPFileServer{addr: addr, receiveDir: receiveDir}
}

func (s *HTTPFileServer) ReceiveDir() string { return s.receiveDir }

func (s *HTTPFileServer) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/", s.handlePush)
	s.srv = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *HTTPFileServer) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/files/")
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}

	dst := filepath.Join(s.receiveDir, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if _, err := io.Copy(f, r.Body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPFileServer) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

// HTTPFileClient implements FileTransportClient via a plain HTTP PUT.
type HTTPFileClient struct {
	client *http.Client
}

func NewHTTPFileClient() *HTTPFileClient {
	return &HTTPFileClient{client: &http.Client{}}
}

// SendFile uploads localPath to targetAddr, naming it by its basename on
// arrival, per spec.md §6's "send_file(target_addr, local_path)".
func (c *HTTPFileClient) SendFile(ctx context.Context, targetAddr, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("transport: open %s: %w", localPath, err)
	}
	defer f.Close()

	name := filepath.Base(localPath)
	url := fmt.Sprintf("http://%s/files/%s", targetAddr, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return fmt.Errorf("transport: build request for %s: %w", url, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: send %s to %s: %w", localPath, targetAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("transport: push %s rejected with status %s", name, resp.Status)
	}
	return nil
}
