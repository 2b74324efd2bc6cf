package crypto

import (
	"errors"
	"fmt"
	"math/big"

	"go.dedis.ch/kyber/v4/group/mod"
)

// ErrInvalidGroup indicates that a parameter set fails the subgroup checks
var ErrInvalidGroup = errors.New("invalid group parameters")

// primalityRounds is the Miller-Rabin round count used when validating parameters
const primalityRounds = 32

// Group is a multiplicative MODP group with a prime-order subgroup
type Group interface {
	String() string

	Modulus() *big.Int
	Generator() *big.Int
	Order() *big.Int

	// ElementLen is the byte length of an element, ceil(bitlen(P)/8)
	ElementLen() int

	// Exp returns G^e mod P
	Exp(e *big.Int) *big.Int

	// IsMember reports whether 1 < x < P and x^Q = 1 mod P
	IsMember(x *big.Int) bool

	Validate() error
}

type modpGroup struct {
	name string
	p    *big.Int
	q    *big.Int
	g    *mod.Int
}

func (c *modpGroup) String() string {
	return c.name
}
func (c *modpGroup) Modulus() *big.Int {
	return new(big.Int).Set(c.p)
}
func (c *modpGroup) Generator() *big.Int {
	return new(big.Int).Set(&c.g.V)
}
func (c *modpGroup) Order() *big.Int {
	return new(big.Int).Set(c.q)
}
func (c *modpGroup) ElementLen() int {
	return (c.p.BitLen() + 7) / 8
}

// Exp computes the generator raised to e. This is variable-time.
func (c *modpGroup) Exp(e *big.Int) *big.Int {
	r := mod.NewInt(big.NewInt(0), c.p)
	r.Exp(c.g, e)
	return new(big.Int).Set(&r.V)
}

func (c *modpGroup) IsMember(x *big.Int) bool {
	if x == nil || x.Cmp(one) <= 0 || x.Cmp(c.p) >= 0 {
		return false
	}
	v := mod.NewInt(x, c.p)
	r := mod.NewInt(big.NewInt(0), c.p)
	r.Exp(v, c.q)
	return r.V.Cmp(one) == 0
}

// Validate checks that the parameters describe a subgroup of order Q mod P
func (c *modpGroup) Validate() error {
	return validateModP(c.p, &c.g.V, c.q)
}

var one = big.NewInt(1)

// NewModPGroup builds a group from explicit constants and rejects parameter
// sets that do not satisfy the subgroup invariant.
func NewModPGroup(name string, p, g, q *big.Int) (Group, error) {
	if p == nil || g == nil || q == nil {
		return nil, fmt.Errorf("%w: missing constant", ErrInvalidGroup)
	}
	if err := validateModP(p, g, q); err != nil {
		return nil, err
	}
	pc := new(big.Int).Set(p)
	return &modpGroup{
		name: name,
		p:    pc,
		q:    new(big.Int).Set(q),
		g:    mod.NewInt(g, pc),
	}, nil
}

func validateModP(p, g, q *big.Int) error {
	if p.Bit(0) == 0 || !p.ProbablyPrime(primalityRounds) {
		return fmt.Errorf("%w: modulus is not an odd prime", ErrInvalidGroup)
	}
	if !q.ProbablyPrime(primalityRounds) {
		return fmt.Errorf("%w: subgroup order is not prime", ErrInvalidGroup)
	}
	if g.Cmp(one) <= 0 || g.Cmp(p) >= 0 {
		return fmt.Errorf("%w: generator out of range", ErrInvalidGroup)
	}
	pm1 := new(big.Int).Sub(p, one)
	if new(big.Int).Mod(pm1, q).Sign() != 0 {
		return fmt.Errorf("%w: order does not divide P-1", ErrInvalidGroup)
	}
	if new(big.Int).Exp(g, q, p).Cmp(one) != 0 {
		return fmt.Errorf("%w: generator does not have order Q", ErrInvalidGroup)
	}
	return nil
}

// RFC 5114 section 2.1
const (
	modp1024S160P = "B10B8F96A080E01DDE92DE5EAE5D54EC52C99FBCFB06A3C6" +
		"9A6A9DCA52D23B616073E28675A23D189838EF1E2EE652C0" +
		"13ECB4AEA906112324975C3CD49B83BFACCBDD7D90C4BD70" +
		"98488E9C219A73724EFFD6FAE5644738FAA31A4FF55BCCC0" +
		"A151AF5F0DC8B4BD45BF37DF365C1A65E68CFDA76D4DA708" +
		"DF1FB2BC2E4A4371"
	modp1024S160G = "A4D1CBD5C3FD34126765A442EFB99905F8104DD258AC507F" +
		"D6406CFF14266D31266FEA1E5C41564B777E690F5504F213" +
		"160217B4B01B886A5E91547F9E2749F4D7FBD7D3B9A92EE1" +
		"909D0D2263F80A76A6A24C087A091F531DBF0A0169B6A28A" +
		"D662A4D18E73AFA32D779D5918D08BC8858F4DCEF97C2A24" +
		"855E6EEB22B3B2E5"
	modp1024S160Q = "F518AA8781A8DF278ABA4E7D64B7CB9D49462353"
)

var modp1024S160 Group

func init() {
	p, _ := new(big.Int).SetString(modp1024S160P, 16)
	g, _ := new(big.Int).SetString(modp1024S160G, 16)
	q, _ := new(big.Int).SetString(modp1024S160Q, 16)
	grp, err := NewModPGroup("MODP-1024-160", p, g, q)
	if err != nil {
		panic(fmt.Sprintf("crypto: built-in group: %v", err))
	}
	modp1024S160 = grp
}

// MODP1024S160 returns the 1024-bit MODP group with a 160-bit prime order subgroup
func MODP1024S160() Group {
	return modp1024S160
}
