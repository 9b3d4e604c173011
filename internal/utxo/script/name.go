package script

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// Name-registry operations are prefixed to a pay-to-pubkey-hash script:
//
//	name_new:         OP_1 <hash> OP_2DROP <p2pkh>
//	name_firstupdate: OP_2 <name> <rand> <value> OP_2DROP OP_2DROP <p2pkh>
//	name_update:      OP_3 <name> <value> OP_2DROP OP_DROP <p2pkh>
const (
	opNameNew         = txscript.OP_1
	opNameFirstUpdate = txscript.OP_2
	opNameUpdate      = txscript.OP_3
)

// parseName recognizes a name-registry script and returns the event and the
// hash160 of the trailing pay-to-hash script.
func parseName(p *Parsed) (NameEvent, []byte, bool) {
	addr, ok := p.payToHashSuffix()
	if !ok {
		return NameEvent{}, nil, false
	}
	prefix := p.Chunks[:len(p.Chunks)-5]
	if len(prefix) == 0 {
		return NameEvent{}, nil, false
	}

	switch prefix[0].Opcode {
	case opNameNew:
		if !matches(prefix, opNameNew, 1, txscript.OP_2DROP) || len(prefix[1].Data) != 20 {
			return NameEvent{}, nil, false
		}
		return NameEvent{Op: NameNew, NameHash: prefix[1].Data}, addr, true
	case opNameFirstUpdate:
		if !matches(prefix, opNameFirstUpdate, 3, txscript.OP_2DROP, txscript.OP_2DROP) {
			return NameEvent{}, nil, false
		}
		name, rand, value := prefix[1].Data, prefix[2].Data, prefix[3].Data
		return NameEvent{
			Op:       NameFirstUpdate,
			NameHash: FirstUpdateHash(name, rand),
			Name:     name,
			Value:    value,
		}, addr, true
	case opNameUpdate:
		if !matches(prefix, opNameUpdate, 2, txscript.OP_2DROP, txscript.OP_DROP) {
			return NameEvent{}, nil, false
		}
		return NameEvent{Op: NameUpdate, Name: prefix[1].Data, Value: prefix[2].Data}, addr, true
	}
	return NameEvent{}, nil, false
}

// matches checks op, then pushes data chunks, then the trailing drop opcodes.
func matches(chunks []Chunk, op byte, pushes int, drops ...byte) bool {
	if len(chunks) != 1+pushes+len(drops) || chunks[0].Opcode != op {
		return false
	}
	for _, c := range chunks[1 : 1+pushes] {
		if !c.IsPush() {
			return false
		}
	}
	for i, d := range drops {
		if chunks[1+pushes+i].Opcode != d {
			return false
		}
	}
	return true
}

// FirstUpdateHash is the commitment a name_new publishes for a later name_firstupdate.
func FirstUpdateHash(name, rand []byte) []byte {
	buf := make([]byte, 0, len(rand)+len(name))
	buf = append(buf, rand...)
	buf = append(buf, name...)
	return btcutil.Hash160(buf)
}
