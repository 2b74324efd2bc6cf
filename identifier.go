package dragonfly

import (
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"strings"

	"go.dedis.ch/kyber/v4/util/random"
)

// IdentifierLen is the length of a peer identifier (a link-layer address)
const IdentifierLen = 6

// Identifier is a fixed-length peer identifier
type Identifier [IdentifierLen]byte

// IdentifierPair is the ordered (local, peer) input of the derivation.
// Local is hashed first; swapping the two gives a different element.
type IdentifierPair struct {
	Local Identifier
	Peer  Identifier
}

// ParseIdentifier parses "AA:BB:CC:DD:EE:FF". Lowercase digits and '-'
// separators are accepted; one separator must be used throughout.
func ParseIdentifier(s string) (Identifier, error) {
	var id Identifier

	if len(s) != IdentifierLen*3-1 {
		return id, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	sep := s[2]
	if sep != ':' && sep != '-' {
		return id, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	for i := range id {
		off := i * 3
		if i < IdentifierLen-1 && s[off+2] != sep {
			return id, fmt.Errorf("%w: %q: mixed separators", ErrInvalidIdentifier, s)
		}
		b, err := hex.DecodeString(s[off : off+2])
		if err != nil {
			return id, fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, s, err)
		}
		id[i] = b[0]
	}
	return id, nil
}

// MustParseIdentifier is like ParseIdentifier but panics on malformed input
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IdentifierFromBytes copies a 6-byte slice into an Identifier
func IdentifierFromBytes(b []byte) (Identifier, error) {
	var id Identifier
	if len(b) != IdentifierLen {
		return id, fmt.Errorf("%w: %d bytes", ErrInvalidIdentifier, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// RandomIdentifier draws an identifier from the given stream, e.g. a spoofed
// client address.
func RandomIdentifier(rand cipher.Stream) Identifier {
	var id Identifier
	random.Bytes(id[:], rand)
	return id
}

// String renders the identifier as uppercase colon-separated hex
func (id Identifier) String() string {
	var sb strings.Builder
	for i, b := range id {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// Bytes returns a copy of the identifier bytes
func (id Identifier) Bytes() []byte {
	b := make([]byte, IdentifierLen)
	copy(b, id[:])
	return b
}

// NewIdentifierPair parses both identifiers of a pair
func NewIdentifierPair(local, peer string) (IdentifierPair, error) {
	l, err := ParseIdentifier(local)
	if err != nil {
		return IdentifierPair{}, fmt.Errorf("local identifier: %w", err)
	}
	p, err := ParseIdentifier(peer)
	if err != nil {
		return IdentifierPair{}, fmt.Errorf("peer identifier: %w", err)
	}
	return IdentifierPair{Local: l, Peer: p}, nil
}

// Swap returns the pair with local and peer exchanged
func (p IdentifierPair) Swap() IdentifierPair {
	return IdentifierPair{Local: p.Peer, Peer: p.Local}
}

func (p IdentifierPair) String() string {
	return p.Local.String() + "/" + p.Peer.String()
}
