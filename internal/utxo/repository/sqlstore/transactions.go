package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"gorm.io/gorm"
)

// HasTransaction reports whether a transaction with hash is stored.
func (r *Repository) HasTransaction(ctx context.Context, hash chainhash.Hash) (_ bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("has_transaction", err, start)
	}()

	var count int64
	if err := r.conn(ctx).Model(&schema.Transaction{}).
		Where("hash = ?", schema.HashBytes(hash)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("has transaction %s: %w", hash, err)
	}
	return count > 0, nil
}

// TransactionByHash returns the transaction with hash and its inputs and outputs, or nil.
func (r *Repository) TransactionByHash(ctx context.Context, hash chainhash.Hash) (_ *model.Transaction, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("transaction_by_hash", err, start)
	}()

	return r.loadTransaction(r.conn(ctx), "hash = ?", schema.HashBytes(hash))
}

// TransactionByID is TransactionByHash keyed by row id.
func (r *Repository) TransactionByID(ctx context.Context, id uint64) (_ *model.Transaction, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("transaction_by_id", err, start)
	}()

	return r.loadTransaction(r.conn(ctx), "id = ?", id)
}

// UnconfirmedTransactions returns the transactions not linked to any block,
// oldest first.
func (r *Repository) UnconfirmedTransactions(ctx context.Context) (_ []*model.Transaction, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("unconfirmed_transactions", err, start)
	}()

	db := r.conn(ctx)
	var rows []schema.Transaction
	if err := db.Model(&schema.Transaction{}).
		Select("tx.*").
		Joins("LEFT JOIN blk_tx ON blk_tx.tx_id = tx.id").
		Where("blk_tx.id IS NULL").
		Order("tx.id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lookup unconfirmed transactions: %w", err)
	}
	return r.loadTransactions(db.Session(&gorm.Session{NewDB: true}), rows)
}

func (r *Repository) loadTransaction(db *gorm.DB, query string, args ...any) (*model.Transaction, error) {
	var row schema.Transaction
	if err := db.Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}
	txs, err := r.loadTransactions(db.Session(&gorm.Session{NewDB: true}), []schema.Transaction{row})
	if err != nil {
		return nil, err
	}
	return txs[0], nil
}
