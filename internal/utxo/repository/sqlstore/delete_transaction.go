package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DeleteTransaction removes a transaction with its inputs and outputs, for use
// once every output is spent. Block links, address links and name records
// referencing it are left in place.
func (r *Repository) DeleteTransaction(ctx context.Context, hash chainhash.Hash) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("delete_transaction", err, start)
	}()

	r.logger.Debug("deleting tx since all its outputs are spent", zap.Stringer("hash", hash))
	err = r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var row schema.Transaction
		if err := tx.Select("id").Where("hash = ?", schema.HashBytes(hash)).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lookup transaction: %w", err)
		}
		if err := tx.Where("tx_id = ?", row.ID).Delete(&schema.Input{}).Error; err != nil {
			return fmt.Errorf("delete inputs: %w", err)
		}
		if err := tx.Where("tx_id = ?", row.ID).Delete(&schema.Output{}).Error; err != nil {
			return fmt.Errorf("delete outputs: %w", err)
		}
		if err := tx.Delete(&schema.Transaction{}, row.ID).Error; err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", hash, err)
	}
	return nil
}
