// Package materialize rebuilds domain objects from stored rows.
package materialize

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/schema"
)

// Block rebuilds a block from its row and its transactions in position order.
// The block hash is recomputed from the header rather than read from the row.
func Block(row schema.Block, txs []*model.Transaction) (*model.Block, error) {
	prev, err := schema.BytesToHash(row.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("block %d prev hash: %w", row.ID, err)
	}
	merkle, err := schema.BytesToHash(row.MerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("block %d merkle root: %w", row.ID, err)
	}

	header := wire.BlockHeader{
		Version:    row.Version,
		PrevBlock:  prev,
		MerkleRoot: merkle,
		Timestamp:  time.Unix(int64(row.Time), 0),
		Bits:       row.Bits,
		Nonce:      row.Nonce,
	}

	return &model.Block{
		ID:           row.ID,
		Hash:         header.BlockHash(),
		Depth:        row.Depth,
		Chain:        row.Chain,
		Work:         row.Work.BigInt(),
		Size:         row.Size,
		Header:       header,
		Transactions: txs,
	}, nil
}

// Transaction rebuilds a transaction. The hash is recomputed from the
// serialized inputs and outputs.
func Transaction(row schema.Transaction, blockID *uint64, inputs []schema.Input, outputs []schema.Output) (*model.Transaction, error) {
	tx := &model.Transaction{
		ID:       row.ID,
		BlockID:  blockID,
		Version:  row.Version,
		LockTime: row.LockTime,
		Coinbase: row.Coinbase,
		Size:     row.Size,
		Inputs:   make([]model.TransactionInput, 0, len(inputs)),
		Outputs:  make([]model.TransactionOutput, 0, len(outputs)),
	}
	for _, in := range inputs {
		input, err := Input(in)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", row.ID, err)
		}
		tx.Inputs = append(tx.Inputs, input)
	}
	for _, out := range outputs {
		tx.Outputs = append(tx.Outputs, Output(out))
	}
	tx.Hash = tx.MsgTx().TxHash()
	return tx, nil
}

// Input rebuilds a transaction input.
func Input(row schema.Input) (model.TransactionInput, error) {
	prev, err := schema.BytesToHash(row.PrevOut)
	if err != nil {
		return model.TransactionInput{}, fmt.Errorf("input %d prev out: %w", row.ID, err)
	}
	return model.TransactionInput{
		ID:            row.ID,
		TransactionID: row.TransactionID,
		Index:         row.Idx,
		PrevOut:       prev,
		PrevOutIndex:  row.PrevOutIndex,
		ScriptSig:     row.ScriptSig,
		Sequence:      row.Sequence,
	}, nil
}

// Output rebuilds a transaction output.
func Output(row schema.Output) model.TransactionOutput {
	return model.TransactionOutput{
		ID:            row.ID,
		TransactionID: row.TransactionID,
		Index:         row.Idx,
		Value:         row.Value,
		PkScript:      row.PkScript,
		ScriptType:    row.Type,
	}
}

// Name rebuilds a name-registry record.
func Name(row schema.NameRecord) *model.Name {
	name := &model.Name{ID: row.ID, OutputID: row.OutputID}
	if row.Hash.Valid {
		name.Hash = row.Hash.V
	}
	if row.Name.Valid {
		name.Name = row.Name.V
	}
	if row.Value.Valid {
		name.Value = row.Value.V
	}
	return name
}
