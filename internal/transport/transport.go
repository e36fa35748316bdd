// ============================================================================
// Fleetd Transport - Dispatch Table Contract
// ============================================================================
//
// Package: internal/transport
// File: transport.go
// Purpose: the RPC transport contract spec.md §1 scopes out as "external,
// specified-contract-only": request/response over TCP, function registration
// by name, and prefix-namespaced registration (SPEC_FULL §9's "Dynamic RPC
// dispatch" design note: "reimplement as an explicit dispatch table name ->
// handler(args); prefix support is a simple string-concatenation decoration").
//
// A concrete implementation (rpc.go, built on net/rpc) is shipped so the
// system is runnable end-to-end; callers only depend on these interfaces.
//
// ============================================================================

package transport

import "context"

// HandlerFunc answers one named RPC. Payload and the returned bytes are
// JSON — every handler in this repo unmarshals its own argument shape and
// marshals its own result, keeping the dispatch table itself payload-agnostic.
type HandlerFunc func(payload []byte) ([]byte, error)

// Server is the registration side of the transport contract: handlers are
// registered by name (optionally namespaced with a prefix), then dispatched
// by name as requests arrive.
type Server interface {
	// Register binds name to handler in the default (unprefixed) namespace.
	Register(name string, handler HandlerFunc)
	// RegisterWithPrefix binds prefix+name, matching the original's
	// per-application RPC namespacing (spec.md §4.3 "prefixed per
	// application").
	RegisterWithPrefix(prefix, name string, handler HandlerFunc)
	// Serve starts accepting connections; blocks until Shutdown is called
	// or ctx is cancelled.
	Serve(ctx context.Context) error
	// Shutdown stops accepting new connections and waits for Serve to
	// return; calls already in flight are not waited for.
	Shutdown() error
}

// Client is the calling side of the transport contract.
type Client interface {
	// Call invokes the named remote handler with a JSON-marshaled args
	// value, unmarshaling the JSON result into reply.
	Call(ctx context.Context, name string, args, reply any) error
	// Close releases any underlying connection.
	Close() error
}

// FileTransportServer accepts a single pushed file into a fixed receive
// directory, per spec.md §6 "File transport / Server side".
type FileTransportServer interface {
	// ReceiveDir returns the directory new pushes land in.
	ReceiveDir() string
	// Serve starts accepting file pushes; blocks until ctx is cancelled.
	Serve(ctx context.Context) error
	Shutdown() error
}

// FileTransportClient pushes one local file to a remote worker/master,
// named by its basename on arrival, per spec.md §6 "File transport / Client
// side: send_file(target_addr, local_path)".
type FileTransportClient interface {
	SendFile(ctx context.Context, targetAddr, localPath string) error
}
