package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"gorm.io/gorm"
)

// BlockUpdate sets the non-nil attributes on every block in Hashes.
type BlockUpdate struct {
	Hashes []chainhash.Hash
	Chain  *model.Chain
	Depth  *int64
}

// UpdateBlocks applies updates in one transaction. The cached head is dropped
// afterwards since chain membership may have changed.
func (r *Repository) UpdateBlocks(ctx context.Context, updates []BlockUpdate) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("update_blocks", err, start)
	}()

	err = r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			attrs := make(map[string]any, 2)
			if u.Chain != nil {
				attrs["chain"] = *u.Chain
			}
			if u.Depth != nil {
				attrs["depth"] = *u.Depth
			}
			if len(attrs) == 0 || len(u.Hashes) == 0 {
				continue
			}
			if err := tx.Model(&schema.Block{}).
				Where("hash IN ?", schema.HashesBytes(u.Hashes)).
				Updates(attrs).Error; err != nil {
				return fmt.Errorf("update %d blocks: %w", len(u.Hashes), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update blocks: %w", err)
	}
	r.dropHead()
	return nil
}
