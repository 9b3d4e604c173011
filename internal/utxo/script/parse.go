package script

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// ErrMalformed is returned by Parse for scripts that do not tokenize.
var ErrMalformed = errors.New("malformed script")

// Chunk is a single opcode with its pushed data, if any.
type Chunk struct {
	Opcode byte
	Data   []byte
}

// IsPush reports whether the chunk pushes data onto the stack.
func (c Chunk) IsPush() bool {
	return c.Opcode <= txscript.OP_PUSHDATA4
}

// Parsed is a tokenized script.
type Parsed struct {
	Raw    []byte
	Chunks []Chunk
}

// Parse tokenizes a script. Any tokenizer failure is reported as ErrMalformed.
func Parse(raw []byte) (*Parsed, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, raw)
	chunks := make([]Chunk, 0, 8)
	for tokenizer.Next() {
		chunks = append(chunks, Chunk{Opcode: tokenizer.Opcode(), Data: tokenizer.Data()})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &Parsed{Raw: raw, Chunks: chunks}, nil
}

// payToHashSuffix reports whether the last five chunks form a standard
// pay-to-pubkey-hash script and returns the embedded hash.
func (p *Parsed) payToHashSuffix() ([]byte, bool) {
	n := len(p.Chunks)
	if n < 5 {
		return nil, false
	}
	tail := p.Chunks[n-5:]
	if tail[0].Opcode != txscript.OP_DUP ||
		tail[1].Opcode != txscript.OP_HASH160 ||
		tail[2].Opcode != txscript.OP_DATA_20 ||
		tail[3].Opcode != txscript.OP_EQUALVERIFY ||
		tail[4].Opcode != txscript.OP_CHECKSIG {
		return nil, false
	}
	return tail[2].Data, true
}
