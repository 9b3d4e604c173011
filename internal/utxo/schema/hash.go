package schema

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// HashBytes converts a hash to its stored (display order) form.
func HashBytes(h chainhash.Hash) []byte {
	b := make([]byte, chainhash.HashSize)
	for i := 0; i < chainhash.HashSize; i++ {
		b[i] = h[chainhash.HashSize-1-i]
	}
	return b
}

// BytesToHash converts a stored hash back to a chainhash.Hash.
func BytesToHash(b []byte) (chainhash.Hash, error) {
	var h chainhash.Hash
	if len(b) != chainhash.HashSize {
		return h, fmt.Errorf("invalid stored hash length %d", len(b))
	}
	for i := 0; i < chainhash.HashSize; i++ {
		h[i] = b[chainhash.HashSize-1-i]
	}
	return h, nil
}

// HashesBytes converts a list of hashes to their stored form.
func HashesBytes(hashes []chainhash.Hash) [][]byte {
	out := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, HashBytes(h))
	}
	return out
}
