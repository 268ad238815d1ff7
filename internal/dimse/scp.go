package dimse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aurabx/harmony/internal/observability"
)

// QueryProvider answers the three DIMSE operations an SCP dispatches to
// (spec.md §4.6.4). The pipeline-backed implementation lives in
// internal/dimseadapter; DefaultQueryProvider below is the package's own
// directory-backed stand-in for tests and for a DIMSE endpoint with no
// pipeline configured.
type QueryProvider interface {
	Find(ctx context.Context, level QueryLevel, params map[string]string, maxResults int) ([]*DatasetStream, error)
	Locate(ctx context.Context, level QueryLevel, params map[string]string) ([]*DatasetStream, error)
	Store(ctx context.Context, dataset *DatasetStream) error
}

// CommandDecoder turns bytes on an accepted association into the next
// DimseRequest. The concrete DICOM Upper Layer PDU state machine (PDU
// framing, A-ASSOCIATE/A-RELEASE/A-ABORT) is out of scope here exactly as
// it is in original_source's crates/dimse/src/scp.rs, whose own
// handle_association_inner is an acknowledged stub ("TODO: Implement
// actual DICOM UL association handling"). CommandDecoder names the seam
// a real UL implementation plugs into; stubCommandDecoder below preserves
// the teacher's own stub behavior (no commands, association closes
// immediately) so DimseScp is exercisable without one.
type CommandDecoder interface {
	ReadCommand(ctx context.Context, conn net.Conn) (*DimseRequest, error)
}

type stubCommandDecoder struct{}

func (stubCommandDecoder) ReadCommand(context.Context, net.Conn) (*DimseRequest, error) {
	return nil, io.EOF
}

// DimseScp is the DIMSE acceptor: one TCP listener, a QueryProvider to
// dispatch commands to, and an active-association counter bounding
// concurrency. Grounded on crates/dimse/src/scp.rs's DimseScp.
type DimseScp struct {
	Config   DimseConfig
	Provider QueryProvider
	Router   *RouterReceiver
	Decoder  CommandDecoder
	Logger   observability.Logger

	mu     sync.Mutex
	active int
}

// NewDimseScp builds an SCP. provider and router may both be nil only in
// tests that exercise the accept loop alone; a real deployment always
// supplies a provider.
func NewDimseScp(cfg DimseConfig, provider QueryProvider, logger observability.Logger) *DimseScp {
	if logger == nil {
		logger = observability.NewLogger("info")
	}
	return &DimseScp{Config: cfg.WithDefaults(), Provider: provider, Decoder: stubCommandDecoder{}, Logger: logger}
}

func (s *DimseScp) decoder() CommandDecoder {
	if s.Decoder == nil {
		return stubCommandDecoder{}
	}
	return s.Decoder
}

// ActiveAssociations reports the current association count.
func (s *DimseScp) ActiveAssociations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Run listens on Config.Addr() and serves associations until ctx is
// cancelled, then closes the listener and returns nil. Grounded on
// spec.md §4.6.2's accept loop and §5's single-cancellation-token model.
func (s *DimseScp) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Config.Addr())
	if err != nil {
		return fmt.Errorf("dimse: listening on %s: %w", s.Config.Addr(), err)
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Logger.Warn("dimse: accept failed", "error", err.Error())
			continue
		}

		s.mu.Lock()
		if s.active >= s.Config.MaxAssociations {
			s.mu.Unlock()
			s.Logger.Warn("dimse: association limit reached, dropping connection",
				"remote", conn.RemoteAddr().String(), "max", s.Config.MaxAssociations)
			_ = conn.Close()
			continue
		}
		s.active++
		s.mu.Unlock()

		go s.handleAssociation(ctx, conn)
	}
}

func (s *DimseScp) handleAssociation(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	for {
		req, err := s.decoder().ReadCommand(ctx, conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Logger.Warn("dimse: association read error", "error", err.Error())
			}
			return
		}
		s.dispatch(ctx, req)
	}
}

func (s *DimseScp) dispatch(ctx context.Context, req *DimseRequest) {
	switch req.Command {
	case CommandEcho:
		s.dispatchEcho(req)
	case CommandFind:
		s.dispatchFind(ctx, req)
	case CommandMove:
		s.dispatchMove(ctx, req)
	case CommandStore:
		s.dispatchStore(ctx, req)
	default:
		s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusUnrecognizedOperation, IsFinal: true})
	}
}

func (s *DimseScp) dispatchEcho(req *DimseRequest) {
	if !s.Config.EnableEcho {
		s.reply(context.Background(), req, &DimseResponse{ID: req.ID, Status: StatusProcessingFailure, IsFinal: true, Err: fmt.Errorf("dimse: echo disabled on this endpoint")})
		return
	}
	s.reply(context.Background(), req, &DimseResponse{ID: req.ID, Status: StatusSuccess, IsFinal: true})
}

func (s *DimseScp) dispatchFind(ctx context.Context, req *DimseRequest) {
	if !s.Config.EnableFind || s.Provider == nil {
		s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusProcessingFailure, IsFinal: true, Err: fmt.Errorf("dimse: find disabled on this endpoint")})
		return
	}
	results, err := s.Provider.Find(ctx, req.Level, req.Params, req.MaxResults)
	if err != nil {
		s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusProcessingFailure, IsFinal: true, Err: err})
		return
	}
	for _, ds := range results {
		s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusPending, IsFinal: false, Dataset: ds})
	}
	s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusSuccess, IsFinal: true})
}

func (s *DimseScp) dispatchMove(ctx context.Context, req *DimseRequest) {
	if !s.Config.EnableMove || s.Provider == nil {
		s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusProcessingFailure, IsFinal: true, Err: fmt.Errorf("dimse: move disabled on this endpoint")})
		return
	}
	results, err := s.Provider.Locate(ctx, req.Level, req.Params)
	counters := &MoveCounters{}
	if err != nil {
		counters.Failed = 1
		s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusProcessingFailure, IsFinal: true, Counters: counters, Err: err})
		return
	}
	counters.Completed = len(results)
	s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusSuccess, IsFinal: true, Counters: counters})
}

func (s *DimseScp) dispatchStore(ctx context.Context, req *DimseRequest) {
	if !s.Config.EnableStore || s.Provider == nil {
		s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusProcessingFailure, IsFinal: true, Err: fmt.Errorf("dimse: store disabled on this endpoint")})
		return
	}
	if err := s.Provider.Store(ctx, req.Dataset); err != nil {
		s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusProcessingFailure, IsFinal: true, Err: err})
		return
	}
	s.reply(ctx, req, &DimseResponse{ID: req.ID, Status: StatusSuccess, IsFinal: true})
}

// reply routes resp via the request's own channel(s) if it has them,
// falling back to the Router, matching spec.md §4.6.2 item 3. A
// streaming channel is closed once the final response is sent so the
// Sender's range loop terminates.
func (s *DimseScp) reply(ctx context.Context, req *DimseRequest, resp *DimseResponse) {
	switch {
	case req.StreamTx != nil:
		select {
		case req.StreamTx <- resp:
		case <-ctx.Done():
			return
		}
		if resp.IsFinal {
			close(req.StreamTx)
		}
	case req.ResponseTx != nil:
		select {
		case req.ResponseTx <- resp:
		case <-ctx.Done():
		}
	case s.Router != nil:
		if err := s.Router.SendResponse(ctx, resp); err != nil {
			s.Logger.Error("dimse: send_response fallback failed", "error", err.Error())
		}
	default:
		s.Logger.Error("dimse: response has no route", "request_id", req.ID)
	}
}

// WaitReady polls addr for up to attempts*interval, used by orchestration
// code that needs a synchronous "the SCP is accepting connections"
// guarantee (spec.md §4.6.2: "poll a TCP connect to the bound port for
// up to ~40 × 25ms"). attempts<=0 or interval<=0 fall back to those
// defaults.
func WaitReady(addr string, attempts int, interval time.Duration) error {
	if attempts <= 0 {
		attempts = 40
	}
	if interval <= 0 {
		interval = 25 * time.Millisecond
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := net.DialTimeout("tcp", addr, interval)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err
		time.Sleep(interval)
	}
	return fmt.Errorf("dimse: %s not ready after %d attempts: %w", addr, attempts, lastErr)
}

// DefaultQueryProvider is a minimal directory-backed QueryProvider: Store
// writes datasets under Dir, Find/Locate always report zero matches. It
// stands in for a pipeline-backed provider in tests and for a DIMSE
// endpoint not wired to one, mirroring scp.rs's own DefaultQueryProvider
// (test_default_query_provider).
type DefaultQueryProvider struct {
	Dir string
}

// NewDefaultQueryProvider returns a provider storing to dir (created if
// missing); an empty dir falls back to DefaultStoreDir.
func NewDefaultQueryProvider(dir string) *DefaultQueryProvider {
	if dir == "" {
		dir = DefaultStoreDir
	}
	return &DefaultQueryProvider{Dir: dir}
}

func (p *DefaultQueryProvider) Find(context.Context, QueryLevel, map[string]string, int) ([]*DatasetStream, error) {
	return nil, nil
}

func (p *DefaultQueryProvider) Locate(context.Context, QueryLevel, map[string]string) ([]*DatasetStream, error) {
	return nil, nil
}

func (p *DefaultQueryProvider) Store(_ context.Context, dataset *DatasetStream) error {
	if dataset == nil {
		return fmt.Errorf("dimse: store called with no dataset")
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("dimse: creating store dir %s: %w", p.Dir, err)
	}
	name := dataset.Meta.SOPInstanceUID
	if name == "" {
		name = uuid.NewString()
	}
	dest := filepath.Join(p.Dir, name+".dcm")

	switch {
	case dataset.Bytes() != nil:
		return os.WriteFile(dest, dataset.Bytes(), 0o644)
	case dataset.IsFile():
		data, err := os.ReadFile(dataset.Path())
		if err != nil {
			return fmt.Errorf("dimse: reading source dataset %s: %w", dataset.Path(), err)
		}
		return os.WriteFile(dest, data, 0o644)
	default:
		return fmt.Errorf("dimse: default query provider cannot store an Object-variant dataset")
	}
}
