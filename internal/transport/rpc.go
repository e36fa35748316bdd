// ============================================================================
// Fleetd Transport - net/rpc Concrete Implementation
// ============================================================================
//
// Package: internal/transport
// File: rpc.go
// Purpose: a real TCP request/response transport satisfying Server/Client.
//
// The teacher's equivalent (internal/raft/transport.go) dials a generated
// grpc client (pb.FalconQueueServiceClient) produced from api/proto/v1 — a
// package absent from the retrieval pack, and not worth hand-writing stub
// code for. spec.md §1 explicitly scopes "the RPC transport itself" out to
// "a specified contract only", so the requirement is a working contract, not
// a specific wire protocol. net/rpc supplies that over the same
// request/response-over-TCP shape the teacher's grpc transport used, with a
// single exported service method (Dispatch.Call) standing in for the
// generated client's many methods — the dispatch table below does the
// function-registration-by-name work grpc's generated stubs would otherwise
// do. See DESIGN.md for the full justification.
//
// The teacher's per-peer connection cache (internal/raft/transport.go's
// GrpcTransport.conns map[string]*grpc.ClientConn) is reused here as
// Client's single persistent net/rpc.Client per dialed address.
//
// ============================================================================

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"sync"
)

// CallArgs is the single wire envelope every RPC carries: a handler name
// and a JSON-encoded argument blob.
type CallArgs struct {
	Name    string
	Payload []byte
}

// CallReply is the single wire envelope every RPC reply carries.
type CallReply struct {
	Payload []byte
}

// ErrHandlerNotFound is returned by the dispatch service when no handler is
// registered under the requested name.
var ErrHandlerNotFound = errors.New("transport: no handler registered for name")

// dispatchService is the one net/rpc-exported receiver; its single method
// forwards to whichever HandlerFunc is registered under args.Name.
type dispatchService struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func newDispatchService() *dispatchService {
	return &dispatchService{handlers: make(map[string]HandlerFunc)}
}

func (d *dispatchService) register(name string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Call is the sole net/rpc-exported method: net/rpc requires the
// (args, *reply) error signature, so every registered handler is
// multiplexed through it by name.
func (d *dispatchService) Call(args *CallArgs, reply *CallReply) error {
	d.mu.RLock()
	h, ok := d.handlers[args.Name]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, args.Name)
	}
	out, err := h(args.Payload)
	if err != nil {
		return err
	}
	reply.Payload = out
	return nil
}

// RPCServer is the net/rpc-backed Server implementation.
type RPCServer struct {
	addr     string
	svc      *dispatchService
	rpcSrv   *rpc.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewRPCServer builds a server bound to addr (not yet listening).
func NewRPCServer(addr string) *RPCServer {
	svc := newDispatchService()
	rpcSrv := rpc.NewServer()
	return &RPCServer{addr: addr, svc: svc, rpcSrv: rpcSrv}
}

func (s *RPCServer) Register(name string, handler HandlerFunc) {
	s.svc.register(name, handler)
}

func (s *RPCServer) RegisterWithPrefix(prefix, name string, handler HandlerFunc) {
	s.svc.register(prefix+name, handler)
}

// Serve starts listening and accepting connections; it blocks until Shutdown
// is called or ctx is cancelled.
func (s *RPCServer) Serve(ctx context.Context) error {
	if err := s.rpcSrv.RegisterName("Dispatch", s.svc); err != nil {
		return fmt.Errorf("transport: registering dispatch service: %w", err)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.addr, err)
	}
	s.listener = ln

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()

	s.wg.Add(1)
	defer s.wg.Done()
	s.rpcSrv.Accept(ln)
	close(done)
	return nil
}

// Shutdown stops accepting new connections; in-flight calls already
// dispatched by net/rpc's Accept loop are allowed to finish naturally.
func (s *RPCServer) Shutdown() error {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	}
	s.wg.Wait()
	return nil
}

// RPCClient is the net/rpc-backed Client implementation, caching one
// persistent connection per dialed address (the teacher's peer-connection
// cache idiom, adapted from internal/raft/transport.go's GrpcTransport).
type RPCClient struct {
	addr string
	mu   sync.Mutex
	conn *rpc.Client
}

// NewRPCClient builds a client that dials addr lazily on first Call.
func NewRPCClient(addr string) *RPCClient {
	return &RPCClient{addr: addr}
}

func (c *RPCClient) connect() (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := rpc.Dial("tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", c.addr, err)
	}
	c.conn = conn
	return conn, nil
}

// Call marshals args to JSON, sends it under name, and unmarshals the JSON
// reply into reply. ctx cancellation is honored by racing the synchronous
// net/rpc call against ctx.Done() on a background goroutine; net/rpc has no
// native context support.
func (c *RPCClient) Call(ctx context.Context, name string, args, reply any) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}

	payload, err := marshalArgs(args)
	if err != nil {
		return fmt.Errorf("transport: marshal args for %s: %w", name, err)
	}

	callArgs := &CallArgs{Name: name, Payload: payload}
	var callReply CallReply

	call := conn.Go("Dispatch.Call", callArgs, &callReply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result := <-call.Done:
		if result.Error != nil {
			return fmt.Errorf("transport: call %s: %w", name, result.Error)
		}
	}

	return unmarshalReply(callReply.Payload, reply)
}

func (c *RPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
