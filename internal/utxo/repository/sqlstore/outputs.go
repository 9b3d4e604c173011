package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/materialize"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"gorm.io/gorm"
)

// OutputForInput returns the output an input with prevOut:index spends.
func (r *Repository) OutputForInput(ctx context.Context, prevOut chainhash.Hash, index uint32) (_ *model.TransactionOutput, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("output_for_input", err, start)
	}()

	var row schema.Output
	err = r.conn(ctx).
		Select("txout.*").
		Joins("JOIN tx ON tx.id = txout.tx_id").
		Where("tx.hash = ? AND txout.tx_idx = ?", schema.HashBytes(prevOut), index).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup output %s:%d: %w", prevOut, index, err)
	}
	out := materialize.Output(row)
	return &out, nil
}

// InputForOutput returns the first stored input spending txHash:index.
func (r *Repository) InputForOutput(ctx context.Context, txHash chainhash.Hash, index uint32) (_ *model.TransactionInput, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("input_for_output", err, start)
	}()

	var row schema.Input
	err = r.conn(ctx).
		Where("prev_out = ? AND prev_out_index = ?", schema.HashBytes(txHash), index).
		Order("id").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup input spending %s:%d: %w", txHash, index, err)
	}
	in, err := materialize.Input(row)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// OutputByID returns the output row with id, or nil.
func (r *Repository) OutputByID(ctx context.Context, id uint64) (_ *model.TransactionOutput, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("output_by_id", err, start)
	}()

	var row schema.Output
	if err := r.conn(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup output %d: %w", id, err)
	}
	out := materialize.Output(row)
	return &out, nil
}

// OutputsForScript returns every output with exactly pkScript.
func (r *Repository) OutputsForScript(ctx context.Context, pkScript []byte) (_ []model.TransactionOutput, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("outputs_for_script", err, start)
	}()

	var rows []schema.Output
	if err := r.conn(ctx).Where("pk_script = ?", pkScript).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lookup outputs for script: %w", err)
	}
	return outputs(rows), nil
}

// OutputsForHash160 returns the outputs indexed to an address. Unless
// includeUnconfirmed is set, only outputs of transactions in a MAIN block
// are returned.
func (r *Repository) OutputsForHash160(ctx context.Context, hash160 [20]byte, includeUnconfirmed bool) (_ []model.TransactionOutput, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("outputs_for_hash160", err, start)
	}()

	q := r.conn(ctx).
		Select("txout.*").
		Joins("JOIN addr_txout ON addr_txout.txout_id = txout.id").
		Joins("JOIN addr ON addr.id = addr_txout.addr_id").
		Where("addr.hash160 = ?", hash160[:])
	if !includeUnconfirmed {
		q = q.Where("EXISTS (SELECT 1 FROM blk_tx JOIN blk ON blk.id = blk_tx.blk_id WHERE blk_tx.tx_id = txout.tx_id AND blk.chain = ?)", model.ChainMain)
	}

	var rows []schema.Output
	if err := q.Order("txout.id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lookup outputs for %x: %w", hash160, err)
	}
	return outputs(rows), nil
}

func outputs(rows []schema.Output) []model.TransactionOutput {
	outs := make([]model.TransactionOutput, 0, len(rows))
	for _, row := range rows {
		outs = append(outs, materialize.Output(row))
	}
	return outs
}
