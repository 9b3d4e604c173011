package sqlstore

import (
	"errors"
	"fmt"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/materialize"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"gorm.io/gorm"
)

type transactionBlock struct {
	TxID  uint64
	BlkID uint64
}

// loadBlock loads the first block matching query with all of its
// transactions, or nil if none matches.
func (r *Repository) loadBlock(db *gorm.DB, query string, args ...any) (*model.Block, error) {
	var row schema.Block
	if err := db.Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup block: %w", err)
	}

	var links []schema.BlockTransaction
	if err := db.Session(&gorm.Session{NewDB: true}).
		Where("blk_id = ?", row.ID).Order("idx").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("lookup block %d transactions: %w", row.ID, err)
	}
	ids := make([]uint64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.TransactionID)
	}

	txs, err := r.transactionsByIDs(db.Session(&gorm.Session{NewDB: true}), ids)
	if err != nil {
		return nil, err
	}
	return materialize.Block(row, txs)
}

// transactionsByIDs loads transactions in the order of ids. Missing ids are skipped.
func (r *Repository) transactionsByIDs(db *gorm.DB, ids []uint64) ([]*model.Transaction, error) {
	byID := make(map[uint64]schema.Transaction, len(ids))
	for start := 0; start < len(ids); start += r.batchSize {
		end := min(start+r.batchSize, len(ids))

		var rows []schema.Transaction
		if err := db.Where("id IN ?", ids[start:end]).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("lookup transactions: %w", err)
		}
		for _, row := range rows {
			byID[row.ID] = row
		}
	}

	rows := make([]schema.Transaction, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			rows = append(rows, row)
		}
	}
	return r.loadTransactions(db, rows)
}

// loadTransactions attaches inputs, outputs and the containing MAIN block id
// to each row, keeping the order of rows.
func (r *Repository) loadTransactions(db *gorm.DB, rows []schema.Transaction) ([]*model.Transaction, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	inputs := make(map[uint64][]schema.Input, len(rows))
	outputs := make(map[uint64][]schema.Output, len(rows))
	blocks := make(map[uint64]uint64, len(rows))

	for start := 0; start < len(rows); start += r.batchSize {
		end := min(start+r.batchSize, len(rows))
		ids := make([]uint64, 0, end-start)
		for _, row := range rows[start:end] {
			ids = append(ids, row.ID)
		}

		var ins []schema.Input
		if err := db.Where("tx_id IN ?", ids).Order("tx_id, tx_idx").Find(&ins).Error; err != nil {
			return nil, fmt.Errorf("lookup inputs: %w", err)
		}
		for _, in := range ins {
			inputs[in.TransactionID] = append(inputs[in.TransactionID], in)
		}

		var outs []schema.Output
		if err := db.Where("tx_id IN ?", ids).Order("tx_id, tx_idx").Find(&outs).Error; err != nil {
			return nil, fmt.Errorf("lookup outputs: %w", err)
		}
		for _, out := range outs {
			outputs[out.TransactionID] = append(outputs[out.TransactionID], out)
		}

		var links []transactionBlock
		if err := db.Table("blk_tx").
			Select("blk_tx.tx_id AS tx_id, blk.id AS blk_id").
			Joins("JOIN blk ON blk.id = blk_tx.blk_id").
			Where("blk.chain = ? AND blk_tx.tx_id IN ?", model.ChainMain, ids).
			Order("blk.depth").
			Scan(&links).Error; err != nil {
			return nil, fmt.Errorf("lookup transaction blocks: %w", err)
		}
		for _, l := range links {
			if _, ok := blocks[l.TxID]; !ok {
				blocks[l.TxID] = l.BlkID
			}
		}
	}

	txs := make([]*model.Transaction, 0, len(rows))
	for _, row := range rows {
		var blockID *uint64
		if id, ok := blocks[row.ID]; ok {
			blockID = &id
		}
		tx, err := materialize.Transaction(row, blockID, inputs[row.ID], outputs[row.ID])
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
