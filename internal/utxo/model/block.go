package model

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Block is a stored block with its chain bookkeeping.
type Block struct {
	ID     uint64
	Hash   chainhash.Hash
	Depth  int64
	Chain  Chain
	Work   *big.Int
	Size   uint32
	Header wire.BlockHeader
	// Transactions is nil for header-only lookups such as the chain head.
	Transactions []*Transaction
}

// MsgBlock rebuilds the wire representation of the block.
func (b *Block) MsgBlock() *wire.MsgBlock {
	msg := wire.NewMsgBlock(&b.Header)
	msg.Transactions = make([]*wire.MsgTx, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		msg.Transactions = append(msg.Transactions, tx.MsgTx())
	}
	return msg
}
