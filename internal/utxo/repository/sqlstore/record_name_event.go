package sqlstore

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/script"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NameFirstUpdateLimit is how many blocks a name_new must be buried on the
// MAIN chain before a name_firstupdate may resolve it.
const NameFirstUpdateLimit = 12

// recordNameEvent updates the names index for a name operation carried by
// outputID. Operations that do not resolve are logged and skipped.
func (r *Repository) recordNameEvent(tx *gorm.DB, event script.NameEvent, outputID uint64) error {
	switch event.Op {
	case script.NameNew:
		r.logger.Info("name_new", zap.String("hash", hex.EncodeToString(event.NameHash)))
		return createName(tx, schema.NameRecord{
			OutputID: outputID,
			Hash:     schema.NullBytes(event.NameHash),
		})
	case script.NameFirstUpdate:
		return r.firstUpdate(tx, event, outputID)
	case script.NameUpdate:
		r.logger.Info("name_update", zap.ByteString("name", event.Name))
		return createName(tx, schema.NameRecord{
			OutputID: outputID,
			Name:     schema.NullBytes(nonNil(event.Name)),
			Value:    schema.NullBytes(nonNil(event.Value)),
		})
	default:
		return fmt.Errorf("unsupported name operation %s", event.Op)
	}
}

func (r *Repository) firstUpdate(tx *gorm.DB, event script.NameEvent, outputID uint64) error {
	hash := hex.EncodeToString(event.NameHash)

	var nameNew schema.NameRecord
	err := tx.Where("hash = ? AND name IS NULL", event.NameHash).Order("txout_id").First(&nameNew).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.Warn("name_new not found", zap.String("hash", hash))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup name_new: %w", err)
	}

	var blk schema.Block
	err = tx.Select("blk.*").
		Joins("JOIN blk_tx ON blk_tx.blk_id = blk.id").
		Joins("JOIN txout ON txout.tx_id = blk_tx.tx_id").
		Where("txout.id = ? AND blk.chain = ?", nameNew.OutputID, model.ChainMain).
		Order("blk.depth").
		First(&blk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.Warn("name_new not found on main chain", zap.String("hash", hash))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup name_new block: %w", err)
	}

	depth, err := mainDepth(tx)
	if err != nil {
		return err
	}
	if blk.Depth > depth-NameFirstUpdateLimit {
		r.logger.Warn("name_new not yet valid",
			zap.String("hash", hash),
			zap.Int64("name_new_depth", blk.Depth),
			zap.Int64("chain_depth", depth),
		)
		return nil
	}

	r.logger.Info("name_firstupdate", zap.ByteString("name", event.Name))
	name := schema.NullBytes(nonNil(event.Name))
	value := schema.NullBytes(nonNil(event.Value))
	if err := tx.Model(&schema.NameRecord{}).
		Where("txout_id = ? AND name IS NULL", nameNew.OutputID).
		Updates(map[string]any{"name": name, "value": value}).Error; err != nil {
		return fmt.Errorf("resolve name_new: %w", err)
	}
	return createName(tx, schema.NameRecord{
		OutputID: outputID,
		Hash:     schema.NullBytes(event.NameHash),
		Name:     name,
		Value:    value,
	})
}

func createName(tx *gorm.DB, row schema.NameRecord) error {
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("insert name: %w", err)
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
