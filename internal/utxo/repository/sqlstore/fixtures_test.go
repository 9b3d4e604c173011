package sqlstore

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const testBits = 0x207fffff

// Multiples of the secp256k1 generator, valid compressed public keys.
var testPubKeys = [][]byte{
	mustHex("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"),
	mustHex("02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"),
	mustHex("02f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"),
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func mustScript(b *txscript.ScriptBuilder) []byte {
	s, err := b.Script()
	if err != nil {
		panic(err)
	}
	return s
}

func addr(n byte) [20]byte {
	var h [20]byte
	for i := range h {
		h[i] = n
	}
	return h
}

func p2pkhBuilder(h [20]byte) *txscript.ScriptBuilder {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).AddData(h[:]).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG)
}

func p2pkh(h [20]byte) []byte {
	return mustScript(p2pkhBuilder(h))
}

func multisig(required int64, keys ...[]byte) []byte {
	b := txscript.NewScriptBuilder().AddInt64(required)
	for _, k := range keys {
		b.AddData(k)
	}
	return mustScript(b.AddInt64(int64(len(keys))).AddOp(txscript.OP_CHECKMULTISIG))
}

func nameNewScript(hash []byte, owner [20]byte) []byte {
	b := txscript.NewScriptBuilder().AddOp(txscript.OP_1).AddData(hash).AddOp(txscript.OP_2DROP)
	return append(mustScript(b), p2pkh(owner)...)
}

func nameFirstUpdateScript(name, rand, value []byte, owner [20]byte) []byte {
	b := txscript.NewScriptBuilder().AddOp(txscript.OP_2).
		AddData(name).AddData(rand).AddData(value).
		AddOp(txscript.OP_2DROP).AddOp(txscript.OP_2DROP)
	return append(mustScript(b), p2pkh(owner)...)
}

// coinbase builds a coinbase transaction made unique by tag.
func coinbase(tag uint32, outputs ...*wire.TxOut) *wire.MsgTx {
	sig := make([]byte, 4)
	binary.LittleEndian.PutUint32(sig, tag)

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: math.MaxUint32},
		SignatureScript:  sig,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	for _, out := range outputs {
		tx.AddTxOut(out)
	}
	return tx
}

func spend(prev *wire.MsgTx, index uint32, outputs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: prev.TxHash(), Index: index},
		SignatureScript:  []byte{txscript.OP_TRUE},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	for _, out := range outputs {
		tx.AddTxOut(out)
	}
	return tx
}

func newBlock(prev chainhash.Hash, nonce uint32, txs ...*wire.MsgTx) *wire.MsgBlock {
	blk := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: prev,
			Timestamp: time.Unix(1_600_000_000+int64(nonce)*600, 0),
			Bits:      testBits,
			Nonce:     nonce,
		},
	}
	if len(txs) > 0 {
		blk.Header.MerkleRoot = txs[0].TxHash()
	}
	for _, tx := range txs {
		blk.AddTransaction(tx)
	}
	return blk
}
