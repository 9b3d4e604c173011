package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/materialize"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/script"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// commitEffects collects what a write transaction changes outside the database.
// They are applied only after the transaction commits.
type commitEffects struct {
	head     *model.Block
	deferred []chainhash.Hash
}

// PersistBlock stores blk on chain at depth in a single transaction and returns
// the effective depth and chain. A block that is already stored only has its
// attributes updated. Orphans waiting for blk are reconnected before returning,
// up to the inline reconnect limit.
func (r *Repository) PersistBlock(ctx context.Context, blk *wire.MsgBlock, chain model.Chain, depth int64, parentWork *big.Int) (_ int64, _ model.Chain, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("persist_block", err, start)
	}()

	hash := blk.BlockHash()
	var effects commitEffects
	err = r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := r.persistBlock(tx, blk, chain, depth, parentWork)
		if err != nil {
			return err
		}
		if chain == model.ChainMain {
			if effects.head, err = materialize.Block(row, nil); err != nil {
				return err
			}
		}
		return r.reconnectOrphans(tx, []chainhash.Hash{hash}, &effects)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("persist block %s: %w", hash, err)
	}

	r.apply(ctx, effects)
	return depth, chain, nil
}

func (r *Repository) persistBlock(tx *gorm.DB, blk *wire.MsgBlock, chain model.Chain, depth int64, parentWork *big.Int) (schema.Block, error) {
	row, err := blockRow(blk, chain, depth, parentWork)
	if err != nil {
		return schema.Block{}, err
	}

	var existing schema.Block
	err = tx.Select("id").Where("hash = ?", row.Hash).First(&existing).Error
	switch {
	case err == nil:
		row.ID = existing.ID
		if err := tx.Save(&row).Error; err != nil {
			return schema.Block{}, fmt.Errorf("update block: %w", err)
		}
		r.logger.Debug("updated existing block",
			zap.Stringer("hash", blk.BlockHash()),
			zap.Int64("depth", depth),
			zap.Stringer("chain", chain),
		)
		return row, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return schema.Block{}, fmt.Errorf("lookup block: %w", err)
	}

	if err := tx.Create(&row).Error; err != nil {
		return schema.Block{}, fmt.Errorf("insert block: %w", err)
	}
	if err := r.storeBlockTransactions(tx, row.ID, blk); err != nil {
		return schema.Block{}, err
	}
	r.logger.Debug("stored block",
		zap.Stringer("hash", blk.BlockHash()),
		zap.Int64("depth", depth),
		zap.Stringer("chain", chain),
		zap.Int("txs", len(blk.Transactions)),
	)
	return row, nil
}

type newTransaction struct {
	msg      *wire.MsgTx
	hash     chainhash.Hash
	position int
}

// storeBlockTransactions inserts the transactions of blk that are not stored yet,
// indexes their outputs and links every transaction to the block in order.
func (r *Repository) storeBlockTransactions(tx *gorm.DB, blockID uint64, blk *wire.MsgBlock) error {
	hashes := make([]chainhash.Hash, len(blk.Transactions))
	for i, msg := range blk.Transactions {
		hashes[i] = msg.TxHash()
	}
	known, err := r.transactionIDs(tx, hashes)
	if err != nil {
		return err
	}

	txIDs := make([]uint64, len(hashes))
	fresh := make([]newTransaction, 0, len(hashes))
	pending := make(map[chainhash.Hash]int, len(hashes))
	duplicates := make(map[int]int)
	for i, hash := range hashes {
		if id, ok := known[hash]; ok {
			txIDs[i] = id
			continue
		}
		if first, ok := pending[hash]; ok {
			duplicates[i] = first
			continue
		}
		pending[hash] = len(fresh)
		fresh = append(fresh, newTransaction{msg: blk.Transactions[i], hash: hash, position: i})
	}

	if err := r.insertTransactions(tx, fresh, txIDs); err != nil {
		return err
	}
	for i, first := range duplicates {
		txIDs[i] = txIDs[fresh[first].position]
	}

	links := make([]schema.BlockTransaction, 0, len(txIDs))
	linked := make(map[uint64]struct{}, len(txIDs))
	for i, id := range txIDs {
		if _, ok := linked[id]; ok {
			continue
		}
		linked[id] = struct{}{}
		links = append(links, schema.BlockTransaction{BlockID: blockID, TransactionID: id, Idx: uint32(i)})
	}
	if len(links) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&links, r.batchSize).Error; err != nil {
		return fmt.Errorf("insert block transactions: %w", err)
	}
	return nil
}

// insertTransactions bulk-inserts fresh transactions with their inputs and
// outputs and records the new ids in txIDs at each transaction's block position.
func (r *Repository) insertTransactions(tx *gorm.DB, fresh []newTransaction, txIDs []uint64) error {
	if len(fresh) == 0 {
		return nil
	}

	rows := make([]schema.Transaction, 0, len(fresh))
	for _, f := range fresh {
		row, err := transactionRow(f.msg, f.hash)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := tx.CreateInBatches(&rows, r.batchSize).Error; err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	for i, f := range fresh {
		txIDs[f.position] = rows[i].ID
	}

	var inputs []schema.Input
	for i, f := range fresh {
		for idx, in := range f.msg.TxIn {
			row, err := inputRow(rows[i].ID, idx, in)
			if err != nil {
				return fmt.Errorf("tx %s: %w", f.hash, err)
			}
			inputs = append(inputs, row)
		}
	}
	if len(inputs) > 0 {
		if err := tx.CreateInBatches(&inputs, r.batchSize).Error; err != nil {
			return fmt.Errorf("insert inputs: %w", err)
		}
	}

	var (
		outputs []schema.Output
		addrs   []script.AddressRef
		names   []script.NameEvent
	)
	for i, f := range fresh {
		for idx, out := range f.msg.TxOut {
			c := r.classifier.Classify(out.PkScript, len(outputs))
			row, err := outputRow(rows[i].ID, idx, out, c.Type)
			if err != nil {
				return fmt.Errorf("tx %s: %w", f.hash, err)
			}
			outputs = append(outputs, row)
			addrs = append(addrs, c.Addresses...)
			names = append(names, c.Names...)
		}
	}
	if len(outputs) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&outputs, r.batchSize).Error; err != nil {
		return fmt.Errorf("insert outputs: %w", err)
	}

	pairs := make([]addressPair, 0, len(addrs))
	for _, a := range addrs {
		pairs = append(pairs, addressPair{OutputID: outputs[a.Position].ID, Hash160: a.Hash160})
	}
	if err := r.indexOutputs(tx, pairs); err != nil {
		return err
	}
	for _, n := range names {
		if err := r.recordNameEvent(tx, n, outputs[n.Position].ID); err != nil {
			return err
		}
	}
	return nil
}

// transactionIDs returns the ids of the stored transactions among hashes.
func (r *Repository) transactionIDs(tx *gorm.DB, hashes []chainhash.Hash) (map[chainhash.Hash]uint64, error) {
	ids := make(map[chainhash.Hash]uint64, len(hashes))
	keys := schema.HashesBytes(hashes)
	for start := 0; start < len(keys); start += r.batchSize {
		end := min(start+r.batchSize, len(keys))

		var rows []schema.Transaction
		if err := tx.Select("id", "hash").Where("hash IN ?", keys[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("lookup transactions: %w", err)
		}
		for _, row := range rows {
			hash, err := schema.BytesToHash(row.Hash)
			if err != nil {
				return nil, err
			}
			ids[hash] = row.ID
		}
	}
	return ids, nil
}

// apply publishes the side effects of a committed transaction.
func (r *Repository) apply(ctx context.Context, effects commitEffects) {
	if effects.head != nil {
		if _, inTx := boundTx(ctx); inTx {
			// the enclosing transaction has not committed yet
			r.dropHead()
		} else {
			r.setHead(effects.head)
		}
	}
	if len(effects.deferred) > 0 {
		r.deferReconnect(ctx, effects.deferred)
	}
}
