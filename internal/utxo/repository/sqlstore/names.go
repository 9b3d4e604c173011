package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/materialize"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"gorm.io/gorm"
)

// NameByOutputID returns the name record carried by an output.
func (r *Repository) NameByOutputID(ctx context.Context, outputID uint64) (_ *model.Name, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("name_by_output_id", err, start)
	}()

	return firstName(r.conn(ctx).Where("txout_id = ?", outputID).Order("id"))
}

// NameShow returns the current record of a name: the latest one with a value.
func (r *Repository) NameShow(ctx context.Context, name []byte) (_ *model.Name, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("name_show", err, start)
	}()

	return firstName(r.conn(ctx).
		Where("name = ? AND value IS NOT NULL", name).
		Order("txout_id DESC, id DESC"))
}

// NameHistory returns every resolved record of a name whose transaction is in
// a MAIN block, oldest first.
func (r *Repository) NameHistory(ctx context.Context, name []byte) (_ []*model.Name, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("name_history", err, start)
	}()

	var rows []schema.NameRecord
	err = r.conn(ctx).
		Select("names.*").
		Joins("JOIN txout ON txout.id = names.txout_id").
		Where("names.name = ? AND names.value IS NOT NULL", name).
		Where("EXISTS (SELECT 1 FROM blk_tx JOIN blk ON blk.id = blk_tx.blk_id WHERE blk_tx.tx_id = txout.tx_id AND blk.chain = ?)", model.ChainMain).
		Order("names.txout_id, names.id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("lookup name history: %w", err)
	}

	names := make([]*model.Name, 0, len(rows))
	for _, row := range rows {
		names = append(names, materialize.Name(row))
	}
	return names, nil
}

func firstName(db *gorm.DB) (*model.Name, error) {
	var row schema.NameRecord
	if err := db.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup name: %w", err)
	}
	return materialize.Name(row), nil
}
