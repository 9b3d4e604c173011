// Package validator checks standalone transactions before they are stored.
package validator

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ErrStandaloneCoinbase rejects a coinbase transaction outside of a block.
var ErrStandaloneCoinbase = errors.New("coinbase transaction outside of a block")

// SanityValidator applies the context-free consensus checks: non-empty inputs
// and outputs, value ranges, size limits and duplicate inputs.
type SanityValidator struct{}

func NewSanityValidator() *SanityValidator {
	return &SanityValidator{}
}

// Validate returns nil when tx passes every check.
func (SanityValidator) Validate(tx *wire.MsgTx) error {
	if tx == nil {
		return errors.New("nil transaction")
	}
	if blockchain.IsCoinBaseTx(tx) {
		return ErrStandaloneCoinbase
	}
	if err := blockchain.CheckTransactionSanity(btcutil.NewTx(tx)); err != nil {
		return fmt.Errorf("sanity check: %w", err)
	}
	return nil
}
