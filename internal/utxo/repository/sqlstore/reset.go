package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"gorm.io/gorm"
)

// Reset deletes every stored row and forgets the cached head.
func (r *Repository) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("reset", err, start)
	}()

	err = r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for i := len(schema.Models) - 1; i >= 0; i-- {
			if err := all.Delete(schema.Models[i]).Error; err != nil {
				return fmt.Errorf("delete %T: %w", schema.Models[i], err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	r.dropHead()
	return nil
}
