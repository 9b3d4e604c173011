package script

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"go.uber.org/zap"
)

// MaxScriptSize is the size at which scripts are classified as unknown without parsing.
const MaxScriptSize = 10_000

// AddressRef links the output at Position to an address hash160.
type AddressRef struct {
	Position int
	Hash160  [20]byte
}

// NameEvent is a name-registry operation carried by the output at Position.
type NameEvent struct {
	Position int
	Op       Type
	// NameHash is set for name_new and name_firstupdate.
	NameHash []byte
	Name     []byte
	Value    []byte
}

// Classification is the outcome of classifying one output script.
type Classification struct {
	Type      Type
	Addresses []AddressRef
	Names     []NameEvent
}

// Classifier turns output scripts into a Classification. It does not touch storage.
type Classifier struct {
	logger       *zap.Logger
	nameRegistry bool
}

// NewClassifier builds a Classifier. nameRegistry enables the name_* script types.
func NewClassifier(logger *zap.Logger, nameRegistry bool) *Classifier {
	return &Classifier{logger: logger, nameRegistry: nameRegistry}
}

// NameRegistry reports whether name scripts are recognized.
func (c *Classifier) NameRegistry() bool {
	return c.nameRegistry
}

// Classify classifies pkScript of the output found at position in the caller's output list.
func (c *Classifier) Classify(pkScript []byte, position int) Classification {
	if len(pkScript) >= MaxScriptSize {
		c.logger.Debug("skipping oversized script", zap.Int("position", position), zap.Int("size", len(pkScript)))
		return Classification{Type: Unknown}
	}

	parsed, err := Parse(pkScript)
	if err != nil {
		c.logger.Error("error parsing script", zap.Int("position", position), zap.Error(err))
		return Classification{Type: Unknown}
	}

	switch txscript.GetScriptClass(pkScript) {
	case txscript.PubKeyTy:
		return Classification{
			Type:      PubKey,
			Addresses: []AddressRef{{Position: position, Hash160: hash160(parsed.Chunks[0].Data)}},
		}
	case txscript.PubKeyHashTy:
		return Classification{
			Type:      Hash160,
			Addresses: []AddressRef{{Position: position, Hash160: toHash160(parsed.Chunks[2].Data)}},
		}
	case txscript.MultiSigTy:
		keys := parsed.Chunks[1 : len(parsed.Chunks)-2]
		refs := make([]AddressRef, 0, len(keys))
		for _, key := range keys {
			refs = append(refs, AddressRef{Position: position, Hash160: hash160(key.Data)})
		}
		return Classification{Type: Multisig, Addresses: refs}
	case txscript.ScriptHashTy:
		c.logger.Info("script has no indexable address", zap.Int("position", position), zap.Stringer("type", P2SH))
		return Classification{Type: P2SH}
	}

	if c.nameRegistry {
		if event, addr, ok := parseName(parsed); ok {
			event.Position = position
			return Classification{
				Type:      event.Op,
				Addresses: []AddressRef{{Position: position, Hash160: toHash160(addr)}},
				Names:     []NameEvent{event},
			}
		}
	}

	c.logger.Info("unknown script type", zap.Int("position", position))
	return Classification{Type: Unknown}
}

func hash160(data []byte) [20]byte {
	return toHash160(btcutil.Hash160(data))
}

func toHash160(data []byte) [20]byte {
	var h [20]byte
	copy(h[:], data)
	return h
}
