package dimse

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/aurabx/harmony/internal/observability"
)

// ErrNotSupported is returned by DimseScu operations that have no
// wire-level DICOM Upper Layer implementation to carry out, mirroring
// scu.rs's DimseError::NotSupported("C-ECHO requires feature 'dcmtk_cli'
// or a native UL implementation").
var ErrNotSupported = errors.New("dimse: operation requires an external DIMSE transport")

// DimseScu is the DIMSE Service Class User: outbound Echo/Find/Move/Store
// against a RemoteNode. Grounded on crates/dimse/src/scu.rs's DimseScu.
// Real DIMSE association handling is out of scope here exactly as it is
// in the source (scu.rs's find/move_request/store are explicit,
// acknowledged stubs — "TODO: Implement actual DICOM association and
// C-FIND"); Echo alone has a real implementation path, gated on an
// external echoscu-equivalent binary, translating scu.rs's
// `#[cfg(feature = "dcmtk_cli")]` build-time gate into a Go runtime
// config gate (EchoBinPath).
type DimseScu struct {
	Config      DimseConfig
	EchoBinPath string
	Logger      observability.Logger
}

// NewDimseScu builds an SCU from cfg; echoBinPath may be empty, in which
// case Echo always returns ErrNotSupported.
func NewDimseScu(cfg DimseConfig, echoBinPath string, logger observability.Logger) *DimseScu {
	if logger == nil {
		logger = observability.NewLogger("info")
	}
	return &DimseScu{Config: cfg.WithDefaults(), EchoBinPath: echoBinPath, Logger: logger}
}

// Echo sends a C-ECHO to node. With no EchoBinPath configured this
// reports ErrNotSupported; with one configured, it shells out to it
// (the same DCMTK echoscu command line scu.rs's dcmtk_cli feature
// builds), honoring the node's effective connect timeout.
func (s *DimseScu) Echo(ctx context.Context, node RemoteNode) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if s.EchoBinPath == "" {
		return fmt.Errorf("%w: no echo binary configured", ErrNotSupported)
	}

	timeout := node.EffectiveConnectTimeout(s.Config)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, s.EchoBinPath,
		"-aet", s.Config.LocalAET,
		"-aec", node.AETitle,
		node.Host, fmt.Sprintf("%d", node.Port),
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		s.Logger.Error("dimse: echo failed", "node", node.addr(), "output", string(out), "error", err.Error())
		return fmt.Errorf("dimse: echoscu against %s: %w", node.addr(), err)
	}
	s.Logger.Info("dimse: echo succeeded", "node", node.addr())
	return nil
}

// Find sends a C-FIND to node. Stub, grounded on scu.rs's find: no
// association is actually opened; the call simulates the round-trip
// delay and reports zero matches, same as the source does.
func (s *DimseScu) Find(ctx context.Context, node RemoteNode, query FindQuery) ([]*DatasetStream, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}
	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, nil
}

// Move sends a C-MOVE to node. Stub, grounded on scu.rs's move_request:
// simulates the round-trip delay and reports an empty (no sub-operation)
// result.
func (s *DimseScu) Move(ctx context.Context, node RemoteNode, query MoveQuery) (*MoveCounters, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &MoveCounters{}, nil
}

// Store sends a C-STORE to node. Stub, grounded on scu.rs's store:
// simulates the round-trip delay and reports success without
// transmitting dataset bytes anywhere.
func (s *DimseScu) Store(ctx context.Context, node RemoteNode, dataset *DatasetStream) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if dataset == nil {
		return fmt.Errorf("dimse: store requires a dataset")
	}
	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// TestConnection retries Echo against node up to maxRetries times with
// exponential backoff (1<<attempt seconds), aborting immediately on a
// non-recoverable error (bad node config or ErrNotSupported), matching
// scu.rs's test_connection.
func (s *DimseScu) TestConnection(ctx context.Context, node RemoteNode, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := s.Echo(ctx, node)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRecoverable(err) {
			return err
		}
		s.Logger.Warn("dimse: connection test retry", "node", node.addr(), "attempt", attempt+1, "error", err.Error())
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dimse: connection test failed after %d retries", maxRetries)
	}
	return lastErr
}

// isRecoverable reports whether err represents a transient
// connectivity failure worth retrying, as opposed to a configuration
// problem (bad node, unsupported operation) that will never succeed on
// retry regardless of backoff.
func isRecoverable(err error) bool {
	if errors.Is(err, ErrNotSupported) || errors.Is(err, ErrInvalidNode) {
		return false
	}
	return true
}

// ScuBuilder builds a DimseScu step by step, grounded on scu.rs's
// ScuBuilder (local_aet/connection_timeout/max_pdu chaining methods).
type ScuBuilder struct {
	cfg         DimseConfig
	echoBinPath string
	logger      observability.Logger
}

// NewScuBuilder starts a builder with zero-valued config; call
// WithLocalAET at minimum before Build.
func NewScuBuilder() *ScuBuilder {
	return &ScuBuilder{}
}

func (b *ScuBuilder) WithLocalAET(aet string) *ScuBuilder {
	b.cfg.LocalAET = aet
	return b
}

func (b *ScuBuilder) WithConnectTimeout(timeout time.Duration) *ScuBuilder {
	b.cfg.ConnectTimeout = timeout
	return b
}

func (b *ScuBuilder) WithMaxPDU(size int) *ScuBuilder {
	b.cfg.MaxPDU = size
	return b
}

func (b *ScuBuilder) WithEchoBinPath(path string) *ScuBuilder {
	b.echoBinPath = path
	return b
}

func (b *ScuBuilder) WithLogger(logger observability.Logger) *ScuBuilder {
	b.logger = logger
	return b
}

// Build validates the accumulated config and returns a DimseScu.
func (b *ScuBuilder) Build() (*DimseScu, error) {
	cfg := b.cfg.WithDefaults()
	if cfg.LocalAET == "" {
		return nil, fmt.Errorf("dimse: scu requires a local AE title")
	}
	return NewDimseScu(cfg, b.echoBinPath, b.logger), nil
}
