package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ValidationError reports a transaction rejected by the validator.
type ValidationError struct {
	Hash chainhash.Hash
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transaction %s rejected: %v", e.Hash, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StoreTransaction stores a transaction that is not part of a block and
// returns its id. A transaction already stored is not inserted again. With
// validate set, the configured Validator must accept msg before anything is written.
func (r *Repository) StoreTransaction(ctx context.Context, msg *wire.MsgTx, validate bool) (id uint64, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("store_transaction", err, start)
	}()

	hash := msg.TxHash()
	r.logger.Debug("storing tx", zap.Stringer("hash", hash), zap.Int("size", msg.SerializeSize()))

	if validate {
		if r.validator == nil {
			return 0, errors.New("transaction validation requested but no validator is configured")
		}
		if verr := r.validator.Validate(msg); verr != nil {
			return 0, &ValidationError{Hash: hash, Err: verr}
		}
	}

	err = r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var existing schema.Transaction
		err := tx.Select("id").Where("hash = ?", schema.HashBytes(hash)).First(&existing).Error
		if err == nil {
			id = existing.ID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup transaction: %w", err)
		}

		row, err := transactionRow(msg, hash)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		for idx, in := range msg.TxIn {
			if err := r.storeInput(tx, row.ID, idx, in); err != nil {
				return err
			}
		}
		for idx, out := range msg.TxOut {
			if err := r.storeOutput(tx, row.ID, idx, out); err != nil {
				return err
			}
		}
		id = row.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store transaction %s: %w", hash, err)
	}
	return id, nil
}

func (r *Repository) storeInput(tx *gorm.DB, txID uint64, idx int, in *wire.TxIn) error {
	row, err := inputRow(txID, idx, in)
	if err != nil {
		return err
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert input: %w", err)
	}
	return nil
}

// storeOutput inserts one output and indexes it. Classifier positions refer to
// the output index within its transaction.
func (r *Repository) storeOutput(tx *gorm.DB, txID uint64, idx int, out *wire.TxOut) error {
	c := r.classifier.Classify(out.PkScript, idx)
	row, err := outputRow(txID, idx, out, c.Type)
	if err != nil {
		return err
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert output: %w", err)
	}

	pairs := make([]addressPair, 0, len(c.Addresses))
	for _, a := range c.Addresses {
		pairs = append(pairs, addressPair{OutputID: row.ID, Hash160: a.Hash160})
	}
	if err := r.indexOutputs(tx, pairs); err != nil {
		return err
	}
	for _, n := range c.Names {
		if err := r.recordNameEvent(tx, n, row.ID); err != nil {
			return err
		}
	}
	return nil
}
