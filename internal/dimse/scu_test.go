package dimse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScuCreation(t *testing.T) {
	scu, err := NewScuBuilder().WithLocalAET("TEST_SCU").Build()
	require.NoError(t, err)
	assert.Equal(t, "TEST_SCU", scu.Config.LocalAET)
	assert.Equal(t, DefaultMaxPDU, scu.Config.MaxPDU)
}

func TestScuBuilderRejectsMissingLocalAET(t *testing.T) {
	_, err := NewScuBuilder().Build()
	assert.Error(t, err)
}

func TestEchoWithoutBinPathIsNotSupported(t *testing.T) {
	scu := NewDimseScu(DimseConfig{LocalAET: "TEST_SCU"}, "", testLogger())
	node := RemoteNode{AETitle: "REMOTE", Host: "localhost", Port: 11112}

	err := scu.Echo(context.Background(), node)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestFindStubReturnsNoResults(t *testing.T) {
	scu := NewDimseScu(DimseConfig{LocalAET: "TEST_SCU"}, "", testLogger())
	node := RemoteNode{AETitle: "REMOTE", Host: "localhost", Port: 11112}

	results, err := scu.Find(context.Background(), node, NewFindQuery(LevelPatient).WithParam("PatientID", "12345"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMoveStubReturnsZeroCounters(t *testing.T) {
	scu := NewDimseScu(DimseConfig{LocalAET: "TEST_SCU"}, "", testLogger())
	node := RemoteNode{AETitle: "REMOTE", Host: "localhost", Port: 11112}

	counters, err := scu.Move(context.Background(), node, NewMoveQuery(LevelPatient, "DEST_AET"))
	require.NoError(t, err)
	assert.Equal(t, &MoveCounters{}, counters)
}

func TestConnectionTimeoutSelection(t *testing.T) {
	override := 2 * time.Second
	node := RemoteNode{AETitle: "REMOTE", Host: "localhost", Port: 11112, ConnectTimeout: &override}
	cfg := DimseConfig{ConnectTimeout: 5 * time.Second}

	assert.Equal(t, override, node.EffectiveConnectTimeout(cfg))

	plain := RemoteNode{AETitle: "REMOTE", Host: "localhost", Port: 11112}
	assert.Equal(t, cfg.ConnectTimeout, plain.EffectiveConnectTimeout(cfg))
}

func TestInvalidConfigValidation(t *testing.T) {
	assert.Error(t, DimseConfig{Port: 104}.Validate())
	assert.Error(t, DimseConfig{LocalAET: "TEST", Port: 0}.Validate())
	assert.NoError(t, DimseConfig{LocalAET: "TEST", Port: 104}.Validate())

	assert.ErrorIs(t, RemoteNode{}.Validate(), ErrInvalidNode)
}

func TestTestConnectionAbortsOnNotSupported(t *testing.T) {
	scu := NewDimseScu(DimseConfig{LocalAET: "TEST_SCU"}, "", testLogger())
	node := RemoteNode{AETitle: "REMOTE", Host: "localhost", Port: 11112}

	err := scu.TestConnection(context.Background(), node, 3)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestTestConnectionAbortsOnInvalidNode(t *testing.T) {
	scu := NewDimseScu(DimseConfig{LocalAET: "TEST_SCU"}, "", testLogger())

	err := scu.TestConnection(context.Background(), RemoteNode{}, 3)
	assert.ErrorIs(t, err, ErrInvalidNode)
}
