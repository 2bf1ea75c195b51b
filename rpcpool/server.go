// Package rpcpool exposes a salloc.Engine over net/rpc, serializing
// concurrent RPC connections down to the single-threaded engine with one
// mutex per server -- a concurrency boundary around the engine, not
// thread-safety inside it.
package rpcpool

import (
	"net"
	"net/rpc"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/shenjiangwei/segalloc/salloc"
	"github.com/shenjiangwei/segalloc/stats"
)

// Server wraps an *salloc.Engine for remote callers.
type Server struct {
	engine *salloc.Engine
	log    *zap.SugaredLogger
	mu     sync.Mutex
	rpcs   *rpc.Server
}

// AllocRequest is the Allocate RPC's argument.
type AllocRequest struct {
	Size uint64
}

// AllocResponse is the Allocate RPC's result.
type AllocResponse struct {
	Offset uint64
	Error  string
}

// FreeRequest is the Free RPC's argument.
type FreeRequest struct {
	Offset uint64
}

// FreeResponse is the Free RPC's result; Free never fails, so this is
// only present for symmetry with the other calls' wire shape.
type FreeResponse struct{}

// ReallocateRequest is the Reallocate RPC's argument.
type ReallocateRequest struct {
	Offset uint64
	Size   uint64
}

// ReallocateResponse is the Reallocate RPC's result.
type ReallocateResponse struct {
	Offset uint64
	Error  string
}

// CheckHeapResponse is the CheckHeap RPC's result.
type CheckHeapResponse struct {
	Error string
}

// StatsResponse is the Stats RPC's result.
type StatsResponse struct {
	Counters stats.Counters
}

// NewServer constructs a Server around a freshly initialized engine and
// registers it under the name "Server" with a net/rpc server of its own, so
// several Servers can run in one process.
func NewServer(cfg salloc.Config, opts ...salloc.Option) (*Server, error) {
	engine, err := salloc.NewEngine(cfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "rpcpool: new engine")
	}
	s := &Server{engine: engine, log: zap.NewNop().Sugar(), rpcs: rpc.NewServer()}
	if err := s.rpcs.Register(s); err != nil {
		return nil, errors.Wrap(err, "rpcpool: register server")
	}
	return s, nil
}

// Serve listens on address and serves connections until Accept fails,
// returning the wrapped Accept error.
func (s *Server) Serve(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "rpcpool: listen on %s", address)
	}
	defer listener.Close()

	s.log.Infow("rpcpool server listening", "address", address)
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.log.Errorw("accept failed", "error", err)
			return errors.Wrap(err, "rpcpool: accept")
		}
		go s.rpcs.ServeConn(conn)
	}
}

func (s *Server) Allocate(req *AllocRequest, resp *AllocResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	off, err := s.engine.Allocate(req.Size)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}
	resp.Offset = uint64(off)
	return nil
}

func (s *Server) Free(req *FreeRequest, resp *FreeResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Free(salloc.Offset(req.Offset))
	return nil
}

func (s *Server) Reallocate(req *ReallocateRequest, resp *ReallocateResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	off, err := s.engine.Reallocate(salloc.Offset(req.Offset), req.Size)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}
	resp.Offset = uint64(off)
	return nil
}

func (s *Server) CheckHeap(_ *struct{}, resp *CheckHeapResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.CheckHeap(); err != nil {
		resp.Error = err.Error()
	}
	return nil
}

func (s *Server) Stats(_ *struct{}, resp *StatsResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp.Counters = s.engine.Stats()
	return nil
}
