package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/script"
)

// Transaction is a stored transaction with its inputs and outputs in position order.
type Transaction struct {
	ID uint64
	// BlockID references the MAIN chain block containing the transaction, nil when unconfirmed.
	BlockID  *uint64
	Hash     chainhash.Hash
	Version  int32
	LockTime uint32
	Coinbase bool
	Size     uint32
	Inputs   []TransactionInput
	Outputs  []TransactionOutput
}

// MsgTx rebuilds the wire representation of the transaction.
func (t *Transaction) MsgTx() *wire.MsgTx {
	msg := wire.NewMsgTx(t.Version)
	msg.LockTime = t.LockTime
	for _, in := range t.Inputs {
		msg.AddTxIn(in.TxIn())
	}
	for _, out := range t.Outputs {
		msg.AddTxOut(out.TxOut())
	}
	return msg
}

// TransactionInput references a previous transaction output.
type TransactionInput struct {
	ID            uint64
	TransactionID uint64
	Index         uint32
	PrevOut       chainhash.Hash
	PrevOutIndex  uint32
	ScriptSig     []byte
	Sequence      uint32
}

// IsCoinbase reports whether the input is the coinbase marker.
func (i TransactionInput) IsCoinbase() bool {
	return i.PrevOut == (chainhash.Hash{}) && i.PrevOutIndex == wire.MaxPrevOutIndex
}

// TxIn converts the input to its wire form.
func (i TransactionInput) TxIn() *wire.TxIn {
	in := wire.NewTxIn(wire.NewOutPoint(&i.PrevOut, i.PrevOutIndex), i.ScriptSig, nil)
	in.Sequence = i.Sequence
	return in
}

// TransactionOutput is an output together with its classified script type.
type TransactionOutput struct {
	ID            uint64
	TransactionID uint64
	Index         uint32
	Value         uint64
	PkScript      []byte
	ScriptType    script.Type
}

// TxOut converts the output to its wire form.
func (o TransactionOutput) TxOut() *wire.TxOut {
	return wire.NewTxOut(int64(o.Value), o.PkScript)
}

// Name is a name-registry record anchored to the output that carried it.
// Name and Value are nil until known.
type Name struct {
	ID       uint64
	OutputID uint64
	Hash     []byte
	Name     []byte
	Value    []byte
}
