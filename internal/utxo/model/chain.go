// Package model defines the domain objects reconstructed from the chain store.
package model

import "fmt"

// Chain tags the chain a stored block belongs to. Values are persisted as integers.
type Chain int8

const (
	// ChainMain marks blocks on the currently accepted best chain.
	ChainMain Chain = 0
	// ChainSide marks valid blocks that are not on the best chain.
	ChainSide Chain = 1
	// ChainOrphan marks blocks whose parent is not stored yet.
	ChainOrphan Chain = 2
)

func (c Chain) String() string {
	switch c {
	case ChainMain:
		return "main"
	case ChainSide:
		return "side"
	case ChainOrphan:
		return "orphan"
	default:
		return fmt.Sprintf("chain(%d)", int8(c))
	}
}
