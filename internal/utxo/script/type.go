// Package script classifies output scripts and extracts the addresses and
// name-registry operations they carry.
package script

import "fmt"

// Type is the classified kind of an output script. The numeric values are
// persisted and must never be reordered.
type Type uint8

const (
	Unknown         Type = 0
	PubKey          Type = 1
	Hash160         Type = 2
	Multisig        Type = 3
	P2SH            Type = 4
	NameNew         Type = 5
	NameFirstUpdate Type = 6
	NameUpdate      Type = 7
)

var typeNames = map[Type]string{
	Unknown:         "unknown",
	PubKey:          "pubkey",
	Hash160:         "hash160",
	Multisig:        "multisig",
	P2SH:            "p2sh",
	NameNew:         "name_new",
	NameFirstUpdate: "name_firstupdate",
	NameUpdate:      "name_update",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// IsName reports whether t is one of the name-registry operations.
func (t Type) IsName() bool {
	return t == NameNew || t == NameFirstUpdate || t == NameUpdate
}
