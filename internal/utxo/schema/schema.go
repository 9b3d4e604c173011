// Package schema defines the relational tables of the chain store.
//
// All 32-byte hashes are stored in display order, the byte-reversed form of
// chainhash.Hash. Use HashBytes and BytesToHash at every boundary.
package schema

import (
	"database/sql"

	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/script"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Block is a row of the blk table.
type Block struct {
	ID         uint64      `gorm:"primaryKey"`
	Hash       []byte      `gorm:"uniqueIndex;size:32;not null"`
	Depth      int64       `gorm:"index:idx_blk_chain_depth,priority:2"`
	Chain      model.Chain `gorm:"index:idx_blk_chain_depth,priority:1;not null"`
	Version    int32
	PrevHash   []byte `gorm:"index;size:32;not null"`
	MerkleRoot []byte `gorm:"size:32;not null"`
	Time       uint32
	Bits       uint32
	Nonce      uint32
	Size       uint32
	// Work is the cumulative chain work, too wide for native integers.
	Work decimal.Decimal `gorm:"type:text;not null"`
}

func (Block) TableName() string {
	return "blk"
}

// Transaction is a row of the tx table. Hash is unique across all blocks.
type Transaction struct {
	ID       uint64 `gorm:"primaryKey"`
	Hash     []byte `gorm:"uniqueIndex;size:32;not null"`
	Version  int32
	LockTime uint32
	Coinbase bool
	Size     uint32
}

func (Transaction) TableName() string {
	return "tx"
}

// BlockTransaction links a transaction to a block at position Idx.
type BlockTransaction struct {
	ID            uint64 `gorm:"primaryKey"`
	BlockID       uint64 `gorm:"column:blk_id;uniqueIndex:idx_blk_tx,priority:1;not null"`
	TransactionID uint64 `gorm:"column:tx_id;uniqueIndex:idx_blk_tx,priority:2;index;not null"`
	Idx           uint32
}

func (BlockTransaction) TableName() string {
	return "blk_tx"
}

// Input is a row of the txin table.
type Input struct {
	ID            uint64 `gorm:"primaryKey"`
	TransactionID uint64 `gorm:"column:tx_id;index;not null"`
	Idx           uint32 `gorm:"column:tx_idx"`
	PrevOut       []byte `gorm:"index:idx_txin_prev_out;size:32"`
	PrevOutIndex  uint32 `gorm:"index:idx_txin_prev_out"`
	ScriptSig     []byte
	Sequence      uint32
}

func (Input) TableName() string {
	return "txin"
}

// Output is a row of the txout table.
type Output struct {
	ID            uint64 `gorm:"primaryKey"`
	TransactionID uint64 `gorm:"column:tx_id;index;not null"`
	Idx           uint32 `gorm:"column:tx_idx"`
	Value         uint64
	PkScript      []byte      `gorm:"index"`
	Type          script.Type `gorm:"not null"`
}

func (Output) TableName() string {
	return "txout"
}

// Address is a row of the addr table.
type Address struct {
	ID      uint64 `gorm:"primaryKey"`
	Hash160 []byte `gorm:"column:hash160;uniqueIndex;size:20;not null"`
}

func (Address) TableName() string {
	return "addr"
}

// AddressOutput links an address to an output it owns.
type AddressOutput struct {
	ID        uint64 `gorm:"primaryKey"`
	AddressID uint64 `gorm:"column:addr_id;uniqueIndex:idx_addr_txout,priority:1;not null"`
	OutputID  uint64 `gorm:"column:txout_id;uniqueIndex:idx_addr_txout,priority:2;index;not null"`
}

func (AddressOutput) TableName() string {
	return "addr_txout"
}

// NameRecord is a row of the names table. Hash is NULL for name_update
// records; Name and Value stay NULL until known.
type NameRecord struct {
	ID       uint64           `gorm:"primaryKey"`
	OutputID uint64           `gorm:"column:txout_id;index;not null"`
	Hash     sql.Null[[]byte] `gorm:"type:blob;index"`
	Name     sql.Null[[]byte] `gorm:"type:blob;index"`
	Value    sql.Null[[]byte] `gorm:"type:blob"`
}

func (NameRecord) TableName() string {
	return "names"
}

// NullBytes wraps b for a nullable column; nil becomes NULL.
func NullBytes(b []byte) sql.Null[[]byte] {
	return sql.Null[[]byte]{V: b, Valid: b != nil}
}

// Models lists every table in creation order.
var Models = []any{
	&Block{},
	&Transaction{},
	&BlockTransaction{},
	&Input{},
	&Output{},
	&Address{},
	&AddressOutput{},
	&NameRecord{},
}

// AutoMigrate creates or updates the tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}
