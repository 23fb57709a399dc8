package srp

import (
	"errors"
	"math/big"

	"github.com/cronokirby/saferith"
)

var (
	ErrInvalidModulus   = errors.New("srp: modulus must be positive")
	ErrNegativeExponent = errors.New("srp: exponent must not be negative")
)

// Modm returns a mod n in the range [0, n), including when a is negative (the premaster-secret
// base B - k*g^x usually is).
func Modm(a, n *big.Int) (*big.Int, error) {
	if n == nil || n.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	// big.Int.Mod implements Euclidean modulus, so the result is never negative.
	return new(big.Int).Mod(a, n), nil
}

// PowMod returns g^x mod n using binary (square-and-multiply) exponentiation.
//
// The recursion walks x from its most significant bit: each level squares the result for x>>1
// and multiplies in g when the low bit of x is set. Products are reduced with saferith's
// constant-time modular arithmetic.
func PowMod(g, x, n *big.Int) (*big.Int, error) {
	if n == nil || n.Sign() <= 0 {
		return nil, ErrInvalidModulus
	}
	if x.Sign() < 0 {
		return nil, ErrNegativeExponent
	}
	reduced, err := Modm(g, n)
	if err != nil {
		return nil, err
	}
	modulus := saferith.ModulusFromBytes(n.Bytes())
	var base saferith.Nat
	base.SetBig(reduced, modulus.BitLen())
	return powmod(&base, x, modulus).Big(), nil
}

func powmod(g *saferith.Nat, x *big.Int, m *saferith.Modulus) *saferith.Nat {
	if x.Sign() == 0 {
		var one saferith.Nat
		return one.Mod(new(saferith.Nat).SetUint64(1), m)
	}
	r := powmod(g, new(big.Int).Rsh(x, 1), m)
	squared := new(saferith.Nat).ModMul(r, r, m)
	if x.Bit(0) == 1 {
		return new(saferith.Nat).ModMul(squared, g, m)
	}
	return squared
}
