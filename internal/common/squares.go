package common

import (
	"fmt"
	"io"
	"math/big"
)

// Threshold below which FourSquares uses exhaustive trial decomposition
// instead of the randomized Rabin-Shallit procedure.
const trialLimit = 1 << 22

// FourSquares writes delta as u1^2 + u2^2 + u3^2 + u4^2 (Lagrange). The
// randomized path follows Rabin-Shallit: peel off two squares, then hope the
// remainder is a prime congruent 1 mod 4 and split it with Hermite-Serret.
func FourSquares(rng io.Reader, delta *big.Int) ([4]*big.Int, error) {
	var out [4]*big.Int
	if delta.Sign() < 0 {
		return out, fmt.Errorf("negative value has no four-square decomposition")
	}
	if delta.IsUint64() && delta.Uint64() < trialLimit {
		return fourSquaresTrial(delta.Uint64())
	}
	return fourSquaresRabinShallit(rng, delta)
}

func fourSquaresTrial(delta uint64) ([4]*big.Int, error) {
	var out [4]*big.Int
	for u1 := isqrt64(delta); ; u1-- {
		r1 := delta - u1*u1
		for u2 := isqrt64(r1); ; u2-- {
			r2 := r1 - u2*u2
			for u3 := isqrt64(r2); ; u3-- {
				r3 := r2 - u3*u3
				u4 := isqrt64(r3)
				if u4*u4 == r3 {
					out[0] = new(big.Int).SetUint64(u1)
					out[1] = new(big.Int).SetUint64(u2)
					out[2] = new(big.Int).SetUint64(u3)
					out[3] = new(big.Int).SetUint64(u4)
					return out, nil
				}
				if u3 == 0 {
					break
				}
			}
			if u2 == 0 {
				break
			}
		}
		if u1 == 0 {
			break
		}
	}
	// Lagrange guarantees a decomposition exists; reaching here is an
	// invariant violation.
	panic("common: four-square trial search exhausted")
}

func isqrt64(n uint64) uint64 {
	r := new(big.Int).Sqrt(new(big.Int).SetUint64(n))
	return r.Uint64()
}

func fourSquaresRabinShallit(rng io.Reader, delta *big.Int) ([4]*big.Int, error) {
	var out [4]*big.Int
	root := new(big.Int).Sqrt(delta)
	bound := new(big.Int).Add(root, bigOne)

	rem := new(big.Int)
	for {
		u1, err := RandomInRange(rng, bound)
		if err != nil {
			return out, err
		}
		rem.Mul(u1, u1)
		rem.Sub(delta, rem)

		root2 := new(big.Int).Sqrt(rem)
		bound2 := new(big.Int).Add(root2, bigOne)
		u2, err := RandomInRange(rng, bound2)
		if err != nil {
			return out, err
		}
		p := new(big.Int).Mul(u2, u2)
		p.Sub(rem, p)

		if p.Sign() == 0 {
			out[0], out[1] = u1, u2
			out[2], out[3] = new(big.Int), new(big.Int)
			return out, nil
		}
		// p must be an odd prime = 1 mod 4 to split into two squares.
		if p.Bit(0) != 1 || p.Bit(1) != 0 {
			continue
		}
		if !p.ProbablyPrime(20) {
			continue
		}
		u3, u4, err := twoSquaresPrime(rng, p)
		if err != nil {
			continue
		}
		out[0], out[1], out[2], out[3] = u1, u2, u3, u4
		return out, nil
	}
}

// twoSquaresPrime splits a prime p = 1 mod 4 as a^2 + b^2 via the
// Hermite-Serret descent on a square root of -1 mod p.
func twoSquaresPrime(rng io.Reader, p *big.Int) (*big.Int, *big.Int, error) {
	x, err := sqrtMinusOne(rng, p)
	if err != nil {
		return nil, nil, err
	}
	// Euclidean descent: run gcd(p, x) until the remainder drops below
	// sqrt(p); that remainder is one root and sqrt(p - root^2) the other.
	root := new(big.Int).Sqrt(p)
	a := new(big.Int).Set(p)
	b := new(big.Int).Set(x)
	for b.Cmp(root) > 0 {
		a.Mod(a, b)
		a, b = b, a
	}
	bb := new(big.Int).Mul(b, b)
	cc := new(big.Int).Sub(p, bb)
	c := new(big.Int).Sqrt(cc)
	if new(big.Int).Mul(c, c).Cmp(cc) != 0 {
		return nil, nil, fmt.Errorf("descent failed")
	}
	return b, c, nil
}

// sqrtMinusOne finds x with x^2 = -1 mod p for prime p = 1 mod 4 by raising
// a random non-residue to the power (p-1)/4.
func sqrtMinusOne(rng io.Reader, p *big.Int) (*big.Int, error) {
	pm1 := new(big.Int).Sub(p, bigOne)
	e := new(big.Int).Rsh(pm1, 2)
	for {
		a, err := RandomInInterval(rng, bigTwo, p)
		if err != nil {
			return nil, err
		}
		if LegendreSymbol(a, p) != -1 {
			continue
		}
		x := new(big.Int).Exp(a, e, p)
		sq := new(big.Int).Mul(x, x)
		sq.Mod(sq, p)
		if sq.Cmp(pm1) == 0 {
			return x, nil
		}
	}
}
