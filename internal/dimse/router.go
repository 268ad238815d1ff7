package dimse

import (
	"context"
	"errors"
	"fmt"
)

// ErrWrongHalf is returned by a Sender/Receiver half when a caller
// invokes the method belonging to the other half, per spec.md §4.6.1:
// "calling the wrong half MUST return an operation-error."
var ErrWrongHalf = errors.New("dimse: operation not supported on this router half")

// DimseRequest is one DIMSE command crossing the Router, carrying the
// reply channel(s) the SCP side writes its response(s) to. ResponseTx is
// used for single-reply commands (Echo, Store); StreamTx for
// multi-reply commands (Find, Move), closed by the SCP side after the
// final response is sent.
type DimseRequest struct {
	ID          string
	Command     DimseCommand
	Level       QueryLevel
	Params      map[string]string
	MaxResults  int
	Destination string
	Priority    MovePriority
	Dataset     *DatasetStream

	ResponseTx chan *DimseResponse
	StreamTx   chan *DimseResponse
}

// DimseResponse is one reply to a DimseRequest. IsFinal marks the last
// response of a streamed exchange (spec.md §4.6.1: "the sequence MUST be
// finite, driven only by the is_final signal").
type DimseResponse struct {
	ID       string
	Status   DimseStatus
	IsFinal  bool
	Dataset  *DatasetStream
	Counters *MoveCounters
	Err      error
}

// Router is the DIMSE transport abstraction spec.md §4.6.1 names: a
// bidirectional queue between the SCU-facing (Sender) side and the
// SCP-facing (Receiver) side. Split() yields each half so a caller can
// only invoke the methods that make sense for its role.
type Router interface {
	SendRequest(ctx context.Context, req *DimseRequest) (*DimseResponse, error)
	SendStreamingRequest(ctx context.Context, req *DimseRequest) (<-chan *DimseResponse, error)
	NextRequest(ctx context.Context) (*DimseRequest, error)
	SendResponse(ctx context.Context, resp *DimseResponse) error
}

// InMemoryRouter is the reference Router: a pair of bounded queues, the
// request channel sized by DimseConfig.RequestBuffer (default 1000) and
// each streaming reply sized by StreamBuffer (default 100). Grounded on
// crates/dimse/src/router.rs's InMemoryRouter/split.
type InMemoryRouter struct {
	reqCh        chan *DimseRequest
	streamBuffer int
}

// NewInMemoryRouter builds a router with the given request queue depth
// and per-request streaming channel depth; zero values fall back to the
// spec defaults (1000, 100).
func NewInMemoryRouter(requestBuffer, streamBuffer int) *InMemoryRouter {
	if requestBuffer <= 0 {
		requestBuffer = DefaultRequestBuffer
	}
	if streamBuffer <= 0 {
		streamBuffer = DefaultStreamBuffer
	}
	return &InMemoryRouter{
		reqCh:        make(chan *DimseRequest, requestBuffer),
		streamBuffer: streamBuffer,
	}
}

// Split returns the Sender half (HTTP/SCU-facing) and Receiver half
// (SCP-facing) of the router.
func (r *InMemoryRouter) Split() (*RouterSender, *RouterReceiver) {
	return &RouterSender{r: r}, &RouterReceiver{r: r}
}

// RouterSender is the half of an InMemoryRouter an SCU/HTTP-facing caller
// uses: it may send requests and must not attempt to consume them.
type RouterSender struct{ r *InMemoryRouter }

// SendRequest installs a single-reply channel on req, enqueues it, and
// blocks for the one response (or ctx cancellation).
func (s *RouterSender) SendRequest(ctx context.Context, req *DimseRequest) (*DimseResponse, error) {
	req.ResponseTx = make(chan *DimseResponse, 1)
	select {
	case s.r.reqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-req.ResponseTx:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendStreamingRequest installs a bounded streaming channel on req,
// enqueues it, and returns the channel for the caller to range over
// until a response with IsFinal=true arrives, at which point the SCP
// side closes it.
func (s *RouterSender) SendStreamingRequest(ctx context.Context, req *DimseRequest) (<-chan *DimseResponse, error) {
	req.StreamTx = make(chan *DimseResponse, s.r.streamBuffer)
	select {
	case s.r.reqCh <- req:
		return req.StreamTx, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NextRequest is the Receiver-only half of Router; calling it on Sender
// is an error.
func (s *RouterSender) NextRequest(context.Context) (*DimseRequest, error) {
	return nil, fmt.Errorf("%w: NextRequest is a receiver operation", ErrWrongHalf)
}

// SendResponse is the Receiver-only half of Router; calling it on Sender
// is an error.
func (s *RouterSender) SendResponse(context.Context, *DimseResponse) error {
	return fmt.Errorf("%w: SendResponse is a receiver operation", ErrWrongHalf)
}

// RouterReceiver is the half of an InMemoryRouter an SCP uses: it may
// consume requests and emit responses, but must not originate requests.
type RouterReceiver struct{ r *InMemoryRouter }

// NextRequest blocks until a request is available or ctx is done.
func (rc *RouterReceiver) NextRequest(ctx context.Context) (*DimseRequest, error) {
	select {
	case req := <-rc.r.reqCh:
		return req, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendResponse is the fallback emission path spec.md §4.6.2 names for
// when neither request.response_tx nor request.stream_tx is set. The
// in-memory router has no side channel to deliver such a response
// through — every request it carries was installed with one or the
// other by RouterSender — so this always reports the no-route error;
// a Router implementation with an out-of-band reply path (e.g. a
// network transport keyed by association ID) would override this.
func (rc *RouterReceiver) SendResponse(_ context.Context, resp *DimseResponse) error {
	return fmt.Errorf("dimse: no route for response %s", resp.ID)
}

// SendRequest is the Sender-only half of Router; calling it on Receiver
// is an error.
func (rc *RouterReceiver) SendRequest(context.Context, *DimseRequest) (*DimseResponse, error) {
	return nil, fmt.Errorf("%w: SendRequest is a sender operation", ErrWrongHalf)
}

// SendStreamingRequest is the Sender-only half of Router; calling it on
// Receiver is an error.
func (rc *RouterReceiver) SendStreamingRequest(context.Context, *DimseRequest) (<-chan *DimseResponse, error) {
	return nil, fmt.Errorf("%w: SendStreamingRequest is a sender operation", ErrWrongHalf)
}

var (
	_ Router = (*RouterSender)(nil)
	_ Router = (*RouterReceiver)(nil)
)
