package rpcpool

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/segalloc/salloc"
)

func TestClientServerAllocateFree(t *testing.T) {
	server, err := NewServer(salloc.DefaultConfig())
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	listener.Close()

	go func() {
		_ = server.Serve(address)
	}()
	time.Sleep(100 * time.Millisecond)

	client, err := Dial(address)
	require.NoError(t, err)
	defer client.Close()

	off, err := client.Allocate(1024)
	require.NoError(t, err)
	require.NotEqual(t, salloc.NoPtr, off)

	require.NoError(t, client.CheckHeap())

	grown, err := client.Reallocate(off, 4096)
	require.NoError(t, err)

	require.NoError(t, client.Free(grown))

	snap, err := client.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.Mallocs)
	require.Equal(t, uint64(1), snap.Frees)
	require.Equal(t, uint64(1), snap.Reallocs)
}

func TestMultipleClientsSerialize(t *testing.T) {
	server, err := NewServer(salloc.DefaultConfig())
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	listener.Close()

	go func() {
		_ = server.Serve(address)
	}()
	time.Sleep(100 * time.Millisecond)

	const numClients = 5
	done := make(chan error, numClients)
	for i := 0; i < numClients; i++ {
		go func() {
			client, err := Dial(address)
			if err != nil {
				done <- err
				return
			}
			defer client.Close()

			off, err := client.Allocate(1024)
			if err != nil {
				done <- err
				return
			}
			done <- client.Free(off)
		}()
	}

	for i := 0; i < numClients; i++ {
		require.NoError(t, <-done)
	}
	require.NoError(t, server.CheckHeap(&struct{}{}, &CheckHeapResponse{}))
}
