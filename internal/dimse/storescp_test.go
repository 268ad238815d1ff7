package dimse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFallbackSendsOnExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done, err := RunFallback(ctx, "true", nil, testLogger())
	require.NoError(t, err)

	select {
	case exitErr := <-done:
		assert.NoError(t, exitErr)
	case <-time.After(2 * time.Second):
		t.Fatal("RunFallback did not report process exit")
	}
}

func TestRunFallbackReportsNonZeroExit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done, err := RunFallback(ctx, "false", nil, testLogger())
	require.NoError(t, err)

	select {
	case exitErr := <-done:
		assert.Error(t, exitErr)
	case <-time.After(2 * time.Second):
		t.Fatal("RunFallback did not report process exit")
	}
}

func TestRunFallbackMissingBinaryErrors(t *testing.T) {
	_, err := RunFallback(context.Background(), "/no/such/storescp-binary", nil, testLogger())
	assert.Error(t, err)
}
