// Package net serves chunk execution over QUIC.
package net

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	gnet "net"

	"github.com/Heliodex/minilua/bench"
	. "github.com/Heliodex/minilua/types"
	"github.com/Heliodex/minilua/vm"
	"github.com/Heliodex/minilua/vm/compile"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/quic-go/quic-go"
	"github.com/tliron/commonlog"
	"golang.org/x/crypto/blake2b"
)

var log = commonlog.GetLogger("minilua.net")

const (
	DefaultAddr          = "localhost:2505"
	DefaultMaxIterations = 10_000_000
	DefaultMaxSteps      = 1_000_000_000
	DefaultCacheSize     = 4096

	// how many steps between checks for the server closing
	checkEvery = 1 << 12
)

// ErrStepLimit is reported when a request executes more than Server.MaxSteps instructions.
var ErrStepLimit = errors.New("step limit reached")

// Server runs chunks sent by clients, one request per stream.
// Execution is deterministic, so successful responses are cached by chunk and iteration count.
type Server struct {
	MaxIterations int
	// over all iterations of one request
	MaxSteps int

	tr          *quic.Transport
	ln          *quic.Listener
	fingerprint [32]byte
	cache       *lru.Cache[[32]byte, RunResponse]

	// cancelled by Close, stops anything still running
	ctx    context.Context
	cancel context.CancelFunc
}

func newServer(cacheSize int) (*Server, error) {
	cache, err := lru.New[[32]byte, RunResponse](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		MaxIterations: DefaultMaxIterations,
		MaxSteps:      DefaultMaxSteps,
		cache:         cache,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// NewServer starts listening on addr. Call Serve to handle connections.
func NewServer(addr string) (*Server, error) {
	ua, err := gnet.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}

	s, err := newServer(DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	conn, err := gnet.ListenUDP("udp", ua)
	if err != nil {
		return nil, fmt.Errorf("failed to start UDP server: %w", err)
	}

	tlsConf, err := serverTLS()
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.fingerprint = blake2b.Sum256(tlsConf.Certificates[0].Certificate[0])

	s.tr = &quic.Transport{Conn: conn}
	if s.ln, err = s.tr.Listen(tlsConf, &quic.Config{}); err != nil {
		s.tr.Close()
		return nil, fmt.Errorf("failed to start QUIC server: %w", err)
	}
	return s, nil
}

func (s *Server) Addr() gnet.Addr {
	return s.ln.Addr()
}

// Fingerprint is the BLAKE2b-256 hash of the server's certificate, for Client.Pin.
func (s *Server) Fingerprint() [32]byte {
	return s.fingerprint
}

func (s *Server) Close() error {
	s.cancel()
	if s.ln == nil {
		return nil
	}
	s.ln.Close()
	return s.tr.Close()
}

func cacheKey(req *RunRequest) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write(req.Chunk)
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(req.Iterations)))

	var k [32]byte
	h.Sum(k[:0])
	return k
}

// limit wraps vm.Step, stopping after MaxSteps instructions or once the server is closed
func (s *Server) limit() vm.StepFunc {
	var steps int
	return func(st *vm.State, i Inst, op OpCode, k []Val) (int, error) {
		steps++
		if steps > s.MaxSteps {
			return 0, fmt.Errorf("%w (%d)", ErrStepLimit, s.MaxSteps)
		} else if steps%checkEvery == 0 {
			if err := s.ctx.Err(); err != nil {
				return 0, fmt.Errorf("server closing: %w", err)
			}
		}
		return vm.Step(st, i, op, k)
	}
}

func (s *Server) run(req *RunRequest) (res RunResponse) {
	res.Hash = blake2b.Sum256(req.Chunk)

	p, err := compile.Deserialise(req.Chunk)
	if err != nil {
		res.Error = err.Error()
		return
	}

	r, err := bench.RunStep("remote", p, req.Iterations, s.limit())
	if err != nil {
		res.Error = err.Error()
		return
	}

	res.Elapsed = r.Elapsed.Nanoseconds()
	for _, v := range r.Returns {
		res.Returns = append(res.Returns, FromVal(v))
	}
	return
}

// Handle answers a single request.
func (s *Server) Handle(req *RunRequest) *RunResponse {
	if req.Iterations == 0 {
		req.Iterations = 1
	}
	if req.Iterations < 0 || req.Iterations > s.MaxIterations {
		return &RunResponse{
			Hash:  blake2b.Sum256(req.Chunk),
			Error: fmt.Sprintf("iteration count %d outside 1..%d", req.Iterations, s.MaxIterations),
		}
	}

	key := cacheKey(req)
	if res, ok := s.cache.Get(key); ok {
		res.Cached = true
		return &res
	}

	res := s.run(req)
	// only successes: step limits and closing are not properties of the chunk
	if res.Error == "" {
		s.cache.Add(key, res)
	}
	return &res
}

func (s *Server) handleStream(stream *quic.Stream) {
	defer stream.Close()

	b, err := readFrame(stream)
	if err != nil {
		log.Warningf("reading request: %v", err)
		return
	}

	req, err := UnmarshalRequest(b)
	if err != nil {
		log.Warningf("%v", err)
		return
	}

	var res *RunResponse
	if req.Chunk, err = decompress(req.Chunk); err != nil {
		res = &RunResponse{Error: err.Error()}
	} else {
		res = s.Handle(req)
	}
	log.Infof("ran %x (%d iterations, cached %t)", res.Hash[:8], req.Iterations, res.Cached)

	if b, err = MarshalResponse(res); err != nil {
		log.Errorf("marshal run response: %v", err)
		return
	}
	if err = writeFrame(stream, b); err != nil {
		log.Warningf("writing response: %v", err)
	}
}

func (s *Server) handleConn(ctx context.Context, qc *quic.Conn) {
	for {
		stream, err := qc.AcceptStream(ctx)
		if err != nil {
			return // connection closed
		}
		go s.handleStream(stream)
	}
}

// Serve accepts connections until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	log.Noticef("execution server listening on %s", s.Addr())

	for {
		qc, err := s.ln.Accept(ctx)
		if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
			return nil
		} else if err != nil {
			return fmt.Errorf("error accepting connection: %w", err)
		}

		log.Debugf("accepted connection from %s", qc.RemoteAddr())
		go s.handleConn(ctx, qc)
	}
}
