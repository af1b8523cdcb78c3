package common

import (
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
)

// Number of Miller-Rabin rounds used for primality checks. 64 rounds keep
// the error probability below 2^-128 for the sizes handled here.
const mrRounds = 64

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// RandomBigInt returns a uniform integer in [0, 2^bits).
func RandomBigInt(rng io.Reader, bits uint) (*big.Int, error) {
	max := new(big.Int).Lsh(bigOne, bits)
	return RandomInRange(rng, max)
}

// RandomInRange returns a uniform integer in [0, max-1] using rejection
// sampling. The loop leaks only whether a candidate was in range, never the
// candidate itself.
func RandomInRange(rng io.Reader, max *big.Int) (*big.Int, error) {
	if max.Sign() <= 0 {
		return nil, fmt.Errorf("invalid sampling bound")
	}
	byteLen := (max.BitLen() + 7) / 8
	bits := max.BitLen() % 8
	mask := byte(0xFF)
	if bits > 0 {
		mask = byte((1 << bits) - 1)
	}

	b := make([]byte, byteLen)
	result := new(big.Int)
	for {
		if _, err := io.ReadFull(rng, b); err != nil {
			return nil, fmt.Errorf("failed to generate random bytes: %w", err)
		}
		b[0] &= mask
		result.SetBytes(b)
		if result.Cmp(max) < 0 {
			for i := range b {
				b[i] = 0
			}
			return result, nil
		}
	}
}

// RandomInInterval returns a uniform integer in [lo, hi).
func RandomInInterval(rng io.Reader, lo, hi *big.Int) (*big.Int, error) {
	width := new(big.Int).Sub(hi, lo)
	r, err := RandomInRange(rng, width)
	if err != nil {
		return nil, err
	}
	return r.Add(r, lo), nil
}

// RandomQR samples a uniform quadratic residue modulo n by squaring a
// uniform unit. Squaring is a 4-to-1 map onto QR(n) for an RSA modulus, so
// the output is uniform over the residues.
func RandomQR(rng io.Reader, n *big.Int) (*big.Int, error) {
	r, err := RandomInRange(rng, n)
	if err != nil {
		return nil, err
	}
	return r.Mul(r, r).Mod(r, n), nil
}

// RandomPrimeInRange returns a prime in [2^start, 2^start + 2^width).
func RandomPrimeInRange(rng io.Reader, start, width uint) (*big.Int, error) {
	lo := new(big.Int).Lsh(bigOne, start)
	span := new(big.Int).Lsh(bigOne, width)
	p := new(big.Int)
	for {
		r, err := RandomInRange(rng, span)
		if err != nil {
			return nil, err
		}
		p.Add(lo, r)
		p.SetBit(p, 0, 1)
		if p.ProbablyPrime(mrRounds) {
			return new(big.Int).Set(p), nil
		}
	}
}

// RandomSafePrime produces a safe prime p of the requested bit length, i.e.
// (p-1)/2 is also prime.
func RandomSafePrime(rng io.Reader, bits uint) (*big.Int, error) {
	p2 := new(big.Int)
	for {
		p, err := randomOddPrime(rng, bits)
		if err != nil {
			return nil, err
		}
		p2.Rsh(p, 1) // (p - 1)/2
		if p2.ProbablyPrime(20) {
			return p, nil
		}
	}
}

// randomOddPrime samples an odd prime of exactly the given bit length with
// the two top bits set, so products of two such primes keep full length.
func randomOddPrime(rng io.Reader, bits uint) (*big.Int, error) {
	p := new(big.Int)
	for {
		r, err := RandomBigInt(rng, bits)
		if err != nil {
			return nil, err
		}
		p.Set(r)
		p.SetBit(p, int(bits-1), 1)
		p.SetBit(p, int(bits-2), 1)
		p.SetBit(p, 0, 1)
		if p.ProbablyPrime(mrRounds) {
			return new(big.Int).Set(p), nil
		}
	}
}

// ModInverse returns the multiplicative inverse of a modulo n, and whether
// the inverse exists.
func ModInverse(a, n *big.Int) (*big.Int, bool) {
	inv := new(big.Int).ModInverse(a, n)
	if inv == nil {
		return nil, false
	}
	return inv, true
}

// ModPow computes base^exp mod n, accepting negative exponents when base is
// invertible modulo n.
func ModPow(base, exp, n *big.Int) (*big.Int, error) {
	if exp.Sign() >= 0 {
		return new(big.Int).Exp(base, exp, n), nil
	}
	inv, ok := ModInverse(base, n)
	if !ok {
		return nil, fmt.Errorf("modular inverse does not exist")
	}
	return new(big.Int).Exp(inv, new(big.Int).Neg(exp), n), nil
}

// LegendreSymbol computes the Legendre symbol (a/p) for an odd prime p.
func LegendreSymbol(a, p *big.Int) int {
	e := new(big.Int).Sub(p, bigOne)
	e.Rsh(e, 1)
	r := new(big.Int).Exp(a, e, p)
	if r.Cmp(bigOne) == 0 {
		return 1
	}
	if r.Sign() == 0 {
		return 0
	}
	return -1
}

// IntHashSHA256 hashes the input and interprets the digest as an unsigned
// big-endian integer.
func IntHashSHA256(data []byte) *big.Int {
	h := sha256.Sum256(data)
	return new(big.Int).SetBytes(h[:])
}

// AppendFixed appends x as unsigned big-endian zero-padded to size bytes.
// Values wider than size are an invariant violation.
func AppendFixed(buf []byte, x *big.Int, size int) []byte {
	b := x.Bytes()
	if len(b) > size {
		panic("common: integer exceeds its group encoding width")
	}
	for i := len(b); i < size; i++ {
		buf = append(buf, 0)
	}
	return append(buf, b...)
}
