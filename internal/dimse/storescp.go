package dimse

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/aurabx/harmony/internal/observability"
)

// RunFallback spawns the given DCMTK storescp binary, piping its
// stdout/stderr into logger at debug level, and sends on the returned
// channel exactly once when the process exits: nil for a clean Wait,
// the error otherwise. Grounded on spec.md §9 Open Question #3 ("a
// spawned storescp (DCMTK) child process whose death triggers the
// internal SCP"), formalized in SPEC_FULL.md §4.6.6 as this exact
// contract — no equivalent function exists in original_source, since the
// source never implements this fallback itself, only names it as a
// design option.
func RunFallback(ctx context.Context, binPath string, args []string, logger observability.Logger) (<-chan error, error) {
	if logger == nil {
		logger = observability.NewLogger("info")
	}
	cmd := exec.CommandContext(ctx, binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("dimse: attaching stdout to %s: %w", binPath, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("dimse: attaching stderr to %s: %w", binPath, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("dimse: starting %s: %w", binPath, err)
	}

	pipeLines := func(r io.Reader, stream string) {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			logger.Debug("dimse: storescp output", "stream", stream, "line", scanner.Text())
		}
	}
	go pipeLines(stdout, "stdout")
	go pipeLines(stderr, "stderr")

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	return done, nil
}
