package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"gorm.io/gorm"
)

// Head returns the MAIN chain block with the greatest depth, without its
// transactions, or nil for an empty chain. Inside a placement the cache is
// bypassed so the result reflects the uncommitted transaction.
func (r *Repository) Head(ctx context.Context) (_ *model.Block, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("head", err, start)
	}()

	_, inTx := boundTx(ctx)
	if r.cacheHead && !inTx {
		r.headMu.RLock()
		head := r.head
		r.headMu.RUnlock()
		if head != nil {
			return head, nil
		}
	}

	head, err := r.blockHeader(r.conn(ctx).Order("depth DESC"), "chain = ?", model.ChainMain)
	if err != nil {
		return nil, err
	}
	if head != nil && !inTx {
		r.setHead(head)
	}
	return head, nil
}

// Depth returns the depth of the MAIN chain head, -1 for an empty chain.
func (r *Repository) Depth(ctx context.Context) (int64, error) {
	head, err := r.Head(ctx)
	if err != nil {
		return 0, err
	}
	if head == nil {
		return -1, nil
	}
	return head.Depth, nil
}

func (r *Repository) setHead(head *model.Block) {
	if !r.cacheHead {
		return
	}
	r.headMu.Lock()
	r.head = head
	r.headMu.Unlock()
}

func (r *Repository) dropHead() {
	r.headMu.Lock()
	r.head = nil
	r.headMu.Unlock()
}

// mainDepth reads the MAIN chain depth inside tx, bypassing the head cache.
func mainDepth(tx *gorm.DB) (int64, error) {
	var depth sql.NullInt64
	if err := tx.Model(&schema.Block{}).
		Where("chain = ?", model.ChainMain).
		Select("MAX(depth)").
		Scan(&depth).Error; err != nil {
		return 0, fmt.Errorf("main chain depth: %w", err)
	}
	if !depth.Valid {
		return -1, nil
	}
	return depth.Int64, nil
}
