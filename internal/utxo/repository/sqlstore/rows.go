package sqlstore

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/script"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/pkg/safe"
	"github.com/shopspring/decimal"
)

// cumulativeWork adds the proof-of-work of bits to parentWork.
func cumulativeWork(parentWork *big.Int, bits uint32) *big.Int {
	work := blockchain.CalcWork(bits)
	if parentWork != nil {
		work.Add(work, parentWork)
	}
	return work
}

func blockRow(blk *wire.MsgBlock, chain model.Chain, depth int64, parentWork *big.Int) (schema.Block, error) {
	timestamp, err := safe.Uint32(blk.Header.Timestamp.Unix())
	if err != nil {
		return schema.Block{}, fmt.Errorf("block time: %w", err)
	}
	size, err := safe.Uint32(blk.SerializeSize())
	if err != nil {
		return schema.Block{}, fmt.Errorf("block size: %w", err)
	}

	return schema.Block{
		Hash:       schema.HashBytes(blk.BlockHash()),
		Depth:      depth,
		Chain:      chain,
		Version:    blk.Header.Version,
		PrevHash:   schema.HashBytes(blk.Header.PrevBlock),
		MerkleRoot: schema.HashBytes(blk.Header.MerkleRoot),
		Time:       timestamp,
		Bits:       blk.Header.Bits,
		Nonce:      blk.Header.Nonce,
		Size:       size,
		Work:       decimal.NewFromBigInt(cumulativeWork(parentWork, blk.Header.Bits), 0),
	}, nil
}

func transactionRow(tx *wire.MsgTx, hash chainhash.Hash) (schema.Transaction, error) {
	size, err := safe.Uint32(tx.SerializeSize())
	if err != nil {
		return schema.Transaction{}, fmt.Errorf("tx %s size: %w", hash, err)
	}
	return schema.Transaction{
		Hash:     schema.HashBytes(hash),
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Coinbase: blockchain.IsCoinBaseTx(tx),
		Size:     size,
	}, nil
}

func inputRow(txID uint64, idx int, in *wire.TxIn) (schema.Input, error) {
	position, err := safe.Uint32(idx)
	if err != nil {
		return schema.Input{}, fmt.Errorf("input position: %w", err)
	}
	return schema.Input{
		TransactionID: txID,
		Idx:           position,
		PrevOut:       schema.HashBytes(in.PreviousOutPoint.Hash),
		PrevOutIndex:  in.PreviousOutPoint.Index,
		ScriptSig:     in.SignatureScript,
		Sequence:      in.Sequence,
	}, nil
}

func outputRow(txID uint64, idx int, out *wire.TxOut, scriptType script.Type) (schema.Output, error) {
	position, err := safe.Uint32(idx)
	if err != nil {
		return schema.Output{}, fmt.Errorf("output position: %w", err)
	}
	value, err := safe.Uint64(out.Value)
	if err != nil {
		return schema.Output{}, fmt.Errorf("output value: %w", err)
	}
	return schema.Output{
		TransactionID: txID,
		Idx:           position,
		Value:         value,
		PkScript:      out.PkScript,
		Type:          scriptType,
	}, nil
}
