package dragonfly

import (
	"crypto/cipher"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/backkem/dragonfly-go/internal/crypto"
	"go.dedis.ch/kyber/v4/util/random"
)

const (
	// MaxCounter is the last hunting-and-pecking counter; counters are one byte
	MaxCounter = 255

	// DefaultKMin is the minimum number of iterations of the fixed-effort generator
	DefaultKMin = 31

	// DefaultKMax is the iteration ceiling of the fixed-effort generator
	DefaultKMax = MaxCounter

	// DefaultPoolSize is the number of candidate elements the fixed-effort generator aims to collect
	DefaultPoolSize = 20
)

// Ciphersuite represents the algorithms used to derive the password element
type Ciphersuite struct {
	// Hash function used for the base hash and the seed stretch
	Hash func() hash.Hash

	// Group the element is derived in
	Group crypto.Group

	// Seed derivation function
	KDF func(hash func() hash.Hash, secret, local, peer []byte, counter byte, length int) []byte
}

// DefaultCiphersuite returns the MODP-1024-160 ciphersuite with SHA-512
func DefaultCiphersuite() *Ciphersuite {
	return &Ciphersuite{
		Hash:  sha512.New,
		Group: crypto.MODP1024S160(),
		KDF:   crypto.HuntingSeed,
	}
}

// Options represents configuration options for password element derivation
type Options struct {
	// The ciphersuite to use
	Ciphersuite *Ciphersuite

	// Minimum iterations of the fixed-effort generator. Absolute floor.
	KMin int

	// Iteration ceiling of the fixed-effort generator
	KMax int

	// Number of valid elements after which the fixed-effort generator may stop
	PoolSize int

	// Randomness used to draw the returned element from the pool.
	// Nil means a stream seeded from crypto/rand.
	Rand cipher.Stream
}

// DefaultOptions returns the default options
func DefaultOptions() *Options {
	return &Options{
		Ciphersuite: DefaultCiphersuite(),
		KMin:        DefaultKMin,
		KMax:        DefaultKMax,
		PoolSize:    DefaultPoolSize,
		Rand:        random.New(),
	}
}

// Validate checks the iteration bounds
func (o *Options) Validate() error {
	if o.Ciphersuite == nil || o.Ciphersuite.Group == nil || o.Ciphersuite.Hash == nil || o.Ciphersuite.KDF == nil {
		return fmt.Errorf("%w: incomplete ciphersuite", ErrInvalidOptions)
	}
	if o.KMin < 1 || o.KMax > MaxCounter || o.KMin > o.KMax {
		return fmt.Errorf("%w: need 1 <= kmin (%d) <= kmax (%d) <= %d", ErrInvalidOptions, o.KMin, o.KMax, MaxCounter)
	}
	if o.PoolSize < 0 {
		return fmt.Errorf("%w: negative pool size %d", ErrInvalidOptions, o.PoolSize)
	}
	return nil
}
