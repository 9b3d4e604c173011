package sqlstore

import (
	"fmt"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// addressPair says that the output OutputID is owned by Hash160.
type addressPair struct {
	OutputID uint64
	Hash160  [20]byte
}

// indexOutputs links outputs to their addresses, creating missing address rows.
// Addresses are resolved once per distinct hash160 of the batch.
func (r *Repository) indexOutputs(tx *gorm.DB, pairs []addressPair) error {
	if len(pairs) == 0 {
		return nil
	}

	order := make([][20]byte, 0, len(pairs))
	outputs := make(map[[20]byte][]uint64, len(pairs))
	for _, p := range pairs {
		if _, ok := outputs[p.Hash160]; !ok {
			order = append(order, p.Hash160)
		}
		outputs[p.Hash160] = append(outputs[p.Hash160], p.OutputID)
	}

	ids, err := r.addressIDs(tx, order)
	if err != nil {
		return err
	}

	var missing [][20]byte
	for _, h := range order {
		if _, ok := ids[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		rows := make([]schema.Address, 0, len(missing))
		for _, h := range missing {
			rows = append(rows, schema.Address{Hash160: append([]byte(nil), h[:]...)})
		}
		// Rows created concurrently by another writer are skipped, so the ids
		// are read back rather than taken from the insert.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, r.batchSize).Error; err != nil {
			return fmt.Errorf("insert addresses: %w", err)
		}
		created, err := r.addressIDs(tx, missing)
		if err != nil {
			return err
		}
		for h, id := range created {
			ids[h] = id
		}
	}

	links := make([]schema.AddressOutput, 0, len(pairs))
	seen := make(map[schema.AddressOutput]struct{}, len(pairs))
	for _, h := range order {
		addrID, ok := ids[h]
		if !ok {
			return fmt.Errorf("address %x missing after insert", h)
		}
		for _, outputID := range outputs[h] {
			link := schema.AddressOutput{AddressID: addrID, OutputID: outputID}
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
		}
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&links, r.batchSize).Error; err != nil {
		return fmt.Errorf("insert address outputs: %w", err)
	}
	return nil
}

// addressIDs returns the ids of the stored addresses among hashes.
func (r *Repository) addressIDs(tx *gorm.DB, hashes [][20]byte) (map[[20]byte]uint64, error) {
	ids := make(map[[20]byte]uint64, len(hashes))
	for start := 0; start < len(hashes); start += r.batchSize {
		end := min(start+r.batchSize, len(hashes))

		keys := make([][]byte, 0, end-start)
		for _, h := range hashes[start:end] {
			keys = append(keys, append([]byte(nil), h[:]...))
		}
		var rows []schema.Address
		if err := tx.Where("hash160 IN ?", keys).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("lookup addresses: %w", err)
		}
		for _, row := range rows {
			var h [20]byte
			copy(h[:], row.Hash160)
			ids[h] = row.ID
		}
	}
	return ids, nil
}
