package dimse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterEcho(t *testing.T) {
	router := NewInMemoryRouter(0, 0)
	sender, receiver := router.Split()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		req, err := receiver.NextRequest(ctx)
		require.NoError(t, err)
		req.ResponseTx <- &DimseResponse{ID: req.ID, Status: StatusSuccess, IsFinal: true}
	}()

	req := &DimseRequest{ID: "req-1", Command: CommandEcho}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := sender.SendRequest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.True(t, resp.IsFinal)

	<-done
}

func TestRouterStreamingRequestEndsOnFinal(t *testing.T) {
	router := NewInMemoryRouter(0, 0)
	sender, receiver := router.Split()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		req, err := receiver.NextRequest(ctx)
		require.NoError(t, err)
		req.StreamTx <- &DimseResponse{ID: req.ID, Status: StatusPending, IsFinal: false}
		req.StreamTx <- &DimseResponse{ID: req.ID, Status: StatusSuccess, IsFinal: true}
		close(req.StreamTx)
	}()

	req := &DimseRequest{ID: "req-2", Command: CommandFind, Level: LevelStudy}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stream, err := sender.SendStreamingRequest(ctx, req)
	require.NoError(t, err)

	var received []*DimseResponse
	for resp := range stream {
		received = append(received, resp)
	}
	require.Len(t, received, 2)
	assert.False(t, received[0].IsFinal)
	assert.True(t, received[1].IsFinal)
}

func TestRouterWrongHalfReturnsError(t *testing.T) {
	router := NewInMemoryRouter(0, 0)
	sender, receiver := router.Split()

	ctx := context.Background()
	_, err := sender.NextRequest(ctx)
	assert.ErrorIs(t, err, ErrWrongHalf)

	err = sender.SendResponse(ctx, &DimseResponse{})
	assert.ErrorIs(t, err, ErrWrongHalf)

	_, err = receiver.SendRequest(ctx, &DimseRequest{})
	assert.ErrorIs(t, err, ErrWrongHalf)

	_, err = receiver.SendStreamingRequest(ctx, &DimseRequest{})
	assert.ErrorIs(t, err, ErrWrongHalf)
}

func TestRouterReceiverSendResponseWithNoRouteErrors(t *testing.T) {
	router := NewInMemoryRouter(0, 0)
	_, receiver := router.Split()

	err := receiver.SendResponse(context.Background(), &DimseResponse{ID: "orphan"})
	assert.Error(t, err)
}

func TestRequestBuilders(t *testing.T) {
	findReq := &DimseRequest{Command: CommandFind, Level: LevelPatient, Params: map[string]string{"PatientID": "12345"}}
	assert.Equal(t, CommandFind, findReq.Command)

	moveReq := &DimseRequest{Command: CommandMove, Level: LevelPatient, Destination: "DEST_AET"}
	assert.Equal(t, CommandMove, moveReq.Command)
	assert.Equal(t, "DEST_AET", moveReq.Destination)

	echoReq := &DimseRequest{Command: CommandEcho}
	assert.Equal(t, CommandEcho, echoReq.Command)
}
