package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
)

// HasBlock reports whether a block with hash is stored on any chain.
func (r *Repository) HasBlock(ctx context.Context, hash chainhash.Hash) (_ bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("has_block", err, start)
	}()

	var count int64
	if err := r.conn(ctx).Model(&schema.Block{}).
		Where("hash = ?", schema.HashBytes(hash)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("has block %s: %w", hash, err)
	}
	return count > 0, nil
}

// BlockByHash returns the block with hash on any chain.
func (r *Repository) BlockByHash(ctx context.Context, hash chainhash.Hash) (_ *model.Block, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("block_by_hash", err, start)
	}()

	return r.loadBlock(r.conn(ctx), "hash = ?", schema.HashBytes(hash))
}

// BlockByID returns the block with the internal id.
func (r *Repository) BlockByID(ctx context.Context, id uint64) (_ *model.Block, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("block_by_id", err, start)
	}()

	return r.loadBlock(r.conn(ctx), "id = ?", id)
}

// BlockByDepth returns the MAIN chain block at depth.
func (r *Repository) BlockByDepth(ctx context.Context, depth int64) (_ *model.Block, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("block_by_depth", err, start)
	}()

	return r.loadBlock(r.conn(ctx), "chain = ? AND depth = ?", model.ChainMain, depth)
}

// BlockByPrevHash returns the MAIN chain child of the block with prev.
func (r *Repository) BlockByPrevHash(ctx context.Context, prev chainhash.Hash) (_ *model.Block, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("block_by_prev_hash", err, start)
	}()

	return r.loadBlock(r.conn(ctx), "chain = ? AND prev_hash = ?", model.ChainMain, schema.HashBytes(prev))
}

// BlockByTransaction returns a block containing the transaction, preferring
// MAIN over SIDE and ORPHAN.
func (r *Repository) BlockByTransaction(ctx context.Context, txHash chainhash.Hash) (_ *model.Block, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("block_by_transaction", err, start)
	}()

	db := r.conn(ctx).Order("chain, depth")
	return r.loadBlock(db,
		"id IN (SELECT blk_tx.blk_id FROM blk_tx JOIN tx ON tx.id = blk_tx.tx_id WHERE tx.hash = ?)",
		schema.HashBytes(txHash))
}
