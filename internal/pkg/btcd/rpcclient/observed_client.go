// Package rpcclient wraps the btcd RPC client with call metrics.
package rpcclient

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

type (
	RPCMetrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// ObservedClient exposes the node calls the importer needs.
type ObservedClient struct {
	client     *rpcclient.Client
	rpcMetrics RPCMetrics
}

func NewObservedClient(client *rpcclient.Client, rpcMetrics RPCMetrics) *ObservedClient {
	return &ObservedClient{
		client:     client,
		rpcMetrics: rpcMetrics,
	}
}

func (r *ObservedClient) GetBlockCount() (count int64, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block_count", err, started)
	}()
	return r.client.GetBlockCount()
}

func (r *ObservedClient) GetBlockHash(blockHeight int64) (hash *chainhash.Hash, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block_hash", err, started)
	}()
	return r.client.GetBlockHash(blockHeight)
}

// GetBlock fetches the raw block, decoded into its wire form.
func (r *ObservedClient) GetBlock(blockHash *chainhash.Hash) (blk *wire.MsgBlock, err error) {
	started := time.Now()
	defer func() {
		r.rpcMetrics.Observe("get_block", err, started)
	}()
	return r.client.GetBlock(blockHash)
}

// Shutdown disconnects from the node.
func (r *ObservedClient) Shutdown() {
	r.client.Shutdown()
	r.client.WaitForShutdown()
}
