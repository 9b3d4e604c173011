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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconnectOrphans re-places every orphan descending from parents. It is the
// entry point for reconnection work deferred by PersistBlock.
func (r *Repository) ReconnectOrphans(ctx context.Context, parents []chainhash.Hash) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("reconnect_orphans", err, start)
	}()

	var effects commitEffects
	err = r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return r.reconnectOrphans(tx, parents, &effects)
	})
	if err != nil {
		return fmt.Errorf("reconnect orphans: %w", err)
	}
	r.apply(ctx, effects)
	return nil
}

// reconnectOrphans walks the orphan tree below seeds breadth first. Each orphan
// whose placement succeeds is updated in place and queued as a parent itself.
// Parents left over once the inline budget is spent are recorded in
// effects.deferred. A negative budget never runs out.
func (r *Repository) reconnectOrphans(tx *gorm.DB, seeds []chainhash.Hash, effects *commitEffects) error {
	ctx := tx.Statement.Context
	budget := r.inlineReconnectLimit
	queue := append([]chainhash.Hash(nil), seeds...)

	for len(queue) > 0 {
		parentHash := queue[0]
		queue = queue[1:]

		var orphans []schema.Block
		if err := tx.Where("prev_hash = ? AND chain = ?", schema.HashBytes(parentHash), model.ChainOrphan).
			Order("id").Find(&orphans).Error; err != nil {
			return fmt.Errorf("lookup orphans of %s: %w", parentHash, err)
		}
		if len(orphans) == 0 {
			continue
		}
		if budget == 0 {
			effects.deferred = append(effects.deferred, parentHash)
			continue
		}

		parent, err := r.blockHeader(tx, "hash = ?", schema.HashBytes(parentHash))
		if err != nil {
			return err
		}
		if parent == nil {
			continue
		}

		for _, row := range orphans {
			if budget == 0 {
				effects.deferred = append(effects.deferred, parentHash)
				break
			}
			if budget > 0 {
				budget--
			}

			connected, err := r.connectOrphan(ctx, tx, parent, row, effects)
			if err != nil {
				return err
			}
			if connected != nil {
				queue = append(queue, connected.Hash)
			}
		}
	}
	return nil
}

// connectOrphan asks the placer where row belongs and updates it. It returns
// nil when the block stays orphaned.
func (r *Repository) connectOrphan(ctx context.Context, tx *gorm.DB, parent *model.Block, row schema.Block, effects *commitEffects) (*model.Block, error) {
	orphan, err := materialize.Block(row, nil)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("connecting orphan", zap.Stringer("hash", orphan.Hash), zap.Stringer("parent", parent.Hash))

	placement, ok, err := r.placer.Place(withTx(ctx, tx), parent, orphan)
	if err != nil {
		return nil, fmt.Errorf("place orphan %s: %w", orphan.Hash, err)
	}
	if !ok {
		return nil, nil
	}

	row.Chain = placement.Chain
	row.Depth = placement.Depth
	row.Work = decimal.NewFromBigInt(cumulativeWork(placement.ParentWork, row.Bits), 0)
	if err := tx.Model(&schema.Block{}).Where("id = ?", row.ID).Updates(map[string]any{
		"chain": row.Chain,
		"depth": row.Depth,
		"work":  row.Work,
	}).Error; err != nil {
		return nil, fmt.Errorf("update orphan %s: %w", orphan.Hash, err)
	}

	connected, err := materialize.Block(row, nil)
	if err != nil {
		return nil, err
	}
	if connected.Chain == model.ChainMain && (effects.head == nil || connected.Depth >= effects.head.Depth) {
		effects.head = connected
	}
	return connected, nil
}

// deferReconnect hands parents whose orphans were not reconnected inline to the scheduler.
func (r *Repository) deferReconnect(ctx context.Context, parents []chainhash.Hash) {
	if r.scheduler == nil {
		r.logger.Warn("orphan reconnection exceeded inline limit and no scheduler is configured",
			zap.Int("parents", len(parents)))
		return
	}

	r.logger.Info("deferring orphan reconnection", zap.Int("parents", len(parents)))
	err := r.scheduler.Defer(ctx, "reconnect_orphans", func(ctx context.Context) error {
		return r.ReconnectOrphans(ctx, parents)
	})
	if err != nil {
		r.logger.Error("failed to defer orphan reconnection", zap.Error(err))
	}
}

// blockHeader loads a block without its transactions, or nil if none matches.
func (r *Repository) blockHeader(db *gorm.DB, query string, args ...any) (*model.Block, error) {
	var row schema.Block
	if err := db.Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup block: %w", err)
	}
	return materialize.Block(row, nil)
}
