package rpcpool

import (
	"net/rpc"

	"github.com/cockroachdb/errors"

	"github.com/shenjiangwei/segalloc/salloc"
	"github.com/shenjiangwei/segalloc/stats"
)

// Client is a thin net/rpc client for a remote Server.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to a Server listening at address.
func Dial(address string) (*Client, error) {
	rc, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "rpcpool: dial %s", address)
	}
	return &Client{rpc: rc}, nil
}

func (c *Client) Allocate(size uint64) (salloc.Offset, error) {
	req := &AllocRequest{Size: size}
	resp := &AllocResponse{}
	if err := c.rpc.Call("Server.Allocate", req, resp); err != nil {
		return salloc.NoPtr, errors.Wrap(err, "rpcpool: allocate call")
	}
	if resp.Error != "" {
		return salloc.NoPtr, errors.Newf("rpcpool: allocate: %s", resp.Error)
	}
	return salloc.Offset(resp.Offset), nil
}

func (c *Client) Free(off salloc.Offset) error {
	req := &FreeRequest{Offset: uint64(off)}
	resp := &FreeResponse{}
	if err := c.rpc.Call("Server.Free", req, resp); err != nil {
		return errors.Wrap(err, "rpcpool: free call")
	}
	return nil
}

func (c *Client) Reallocate(off salloc.Offset, size uint64) (salloc.Offset, error) {
	req := &ReallocateRequest{Offset: uint64(off), Size: size}
	resp := &ReallocateResponse{}
	if err := c.rpc.Call("Server.Reallocate", req, resp); err != nil {
		return salloc.NoPtr, errors.Wrap(err, "rpcpool: reallocate call")
	}
	if resp.Error != "" {
		return salloc.NoPtr, errors.Newf("rpcpool: reallocate: %s", resp.Error)
	}
	return salloc.Offset(resp.Offset), nil
}

func (c *Client) CheckHeap() error {
	resp := &CheckHeapResponse{}
	if err := c.rpc.Call("Server.CheckHeap", &struct{}{}, resp); err != nil {
		return errors.Wrap(err, "rpcpool: checkheap call")
	}
	if resp.Error != "" {
		return errors.Newf("rpcpool: checkheap: %s", resp.Error)
	}
	return nil
}

func (c *Client) Stats() (stats.Counters, error) {
	resp := &StatsResponse{}
	if err := c.rpc.Call("Server.Stats", &struct{}{}, resp); err != nil {
		return stats.Counters{}, errors.Wrap(err, "rpcpool: stats call")
	}
	return resp.Counters, nil
}

func (c *Client) Close() error {
	return c.rpc.Close()
}
