package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseTimeout(t *testing.T) {
	server := setupTestServer(t, nil)
	assert.Equal(t, 5*time.Second+ResponseMargin, server.ResponseTimeout())
}

func TestStart_GracefulShutdown(t *testing.T) {
	server := setupTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx, "127.0.0.1", 0)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	server := setupTestServer(t, nil)
	port := ln.Addr().(*net.TCPAddr).Port

	err = server.Start(context.Background(), "127.0.0.1", port)
	assert.Error(t, err)
}
